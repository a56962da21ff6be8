package storageengine

import (
	"fmt"
	"time"

	"AnimeDB/btree"
	hashindex "AnimeDB/hash_index"
	heapfile "AnimeDB/heapfile_manager"
	"AnimeDB/types"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

/*
Index maintenance. Every index only references heap offsets, so all three can
be rebuilt from one scan of the heap file. The builds touch disjoint files and
run concurrently:

	Heap.Scan ──► entries ──┬── Tree.Build
	                        ├── Hash.Build
	                        └── Tokens.Reset + Insert per record
*/

// RebuildIndexes discards and rebuilds every index from the heap file. It is
// the only way out of the inconsistent state left by a failed mirror step.
func (se *StorageEngine) RebuildIndexes() error {
	se.mu.Lock()
	defer se.mu.Unlock()

	if err := se.rebuildIndexes(); err != nil {
		return types.WrapOp(types.OpRebuild, se.opts.Dir, err)
	}
	return nil
}

func (se *StorageEngine) rebuildIndexes() error {
	start := time.Now()

	var entries []heapfile.Entry
	if err := se.Heap.Scan(func(e heapfile.Entry) error {
		entries = append(entries, e)
		return nil
	}); err != nil {
		se.fault = err
		return fmt.Errorf("scan heap: %w", err)
	}

	if err := se.buildIndexes(entries); err != nil {
		se.fault = err
		return err
	}
	se.fault = nil

	se.log.Infow("indexes rebuilt",
		"records", humanize.Comma(int64(len(entries))),
		"heap", humanize.IBytes(uint64(se.Heap.Size())),
		"tree_pages", se.Tree.TotalPages(),
		"hash_depth", se.Hash.GlobalDepth(),
		"tokens", se.Tokens.Len(),
		"elapsed", time.Since(start))
	return nil
}

func (se *StorageEngine) buildIndexes(entries []heapfile.Entry) error {
	var g errgroup.Group

	g.Go(func() error {
		keys := make([]btree.Entry, len(entries))
		for i, e := range entries {
			keys[i] = btree.Entry{ID: e.Record.ID, HeapOffset: e.Offset}
		}
		if err := se.Tree.Build(keys); err != nil {
			return fmt.Errorf("tree: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		keys := make([]hashindex.Entry, len(entries))
		for i, e := range entries {
			keys[i] = hashindex.Entry{ID: e.Record.ID, HeapOffset: e.Offset}
		}
		if err := se.Hash.Build(keys); err != nil {
			return fmt.Errorf("hash: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := se.Tokens.Reset(); err != nil {
			return fmt.Errorf("postings: %w", err)
		}
		for _, e := range entries {
			if err := se.Tokens.Insert(e.Record, e.Offset); err != nil {
				return fmt.Errorf("postings: %w", err)
			}
		}
		return nil
	})

	return g.Wait()
}

// indexRecord adds a freshly written heap slot to every index.
func (se *StorageEngine) indexRecord(rec types.Record, offset int64) error {
	if err := se.Tree.Insert(rec.ID, offset); err != nil {
		return err
	}
	if err := se.Hash.Put(rec.ID, offset); err != nil {
		return err
	}
	return se.Tokens.Insert(rec, offset)
}
