package storageengine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"AnimeDB/btree"
	hashindex "AnimeDB/hash_index"
	heapfile "AnimeDB/heapfile_manager"
	invindex "AnimeDB/inverted_index"
	"AnimeDB/logging"
	"AnimeDB/types"
)

/*
The main file of the storage engine. Open brings up the heap file and the three
index files inside opts.Dir and rebuilds every index from the heap, since the
hash directory and the token map only live in memory. The index files are
derived data and are recreated empty, so a directory written with another tree
order or hash depth opens cleanly.

	Dir/
	 ├── records.db    heap file (header + slots)
	 ├── tree.idx      B-tree pages, root at offset 0
	 ├── buckets.idx   hash buckets
	 └── postings.idx  postings entries
*/

func Open(opts Options) (*StorageEngine, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	log := logging.OrNop(opts.Logger)
	se := &StorageEngine{opts: opts, log: log}

	var err error
	if se.Heap, err = heapfile.Open(filepath.Join(opts.Dir, HeapFileName), log); err != nil {
		return nil, err
	}
	if se.Tree, err = btree.Create(filepath.Join(opts.Dir, TreeFileName), opts.TreeOrder, opts.CacheMaxCost, log); err != nil {
		se.closeAll()
		return nil, err
	}
	if se.Hash, err = hashindex.Open(filepath.Join(opts.Dir, BucketFileName), opts.HashGlobalDepth, opts.MaxHashDepth, opts.CacheMaxCost, log); err != nil {
		se.closeAll()
		return nil, err
	}
	if se.Tokens, err = invindex.Open(filepath.Join(opts.Dir, PostingsFileName), opts.CacheMaxCost, log); err != nil {
		se.closeAll()
		return nil, err
	}

	if err := se.rebuildIndexes(); err != nil {
		se.closeAll()
		return nil, fmt.Errorf("failed to rebuild indexes: %w", err)
	}

	log.Infow("storage engine ready", "dir", opts.Dir, "order", opts.TreeOrder, "hash_depth", se.Hash.GlobalDepth())
	return se, nil
}

// Close flushes and closes every file.
func (se *StorageEngine) Close() error {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.closeAll()
}

func (se *StorageEngine) closeAll() error {
	var errs []error
	if se.Tokens != nil {
		errs = append(errs, se.Tokens.Close())
	}
	if se.Hash != nil {
		errs = append(errs, se.Hash.Close())
	}
	if se.Tree != nil {
		errs = append(errs, se.Tree.Close())
	}
	if se.Heap != nil {
		errs = append(errs, se.Heap.Close())
	}
	return errors.Join(errs...)
}

// Sync flushes every file to disk.
func (se *StorageEngine) Sync() error {
	se.mu.Lock()
	defer se.mu.Unlock()
	return errors.Join(se.Heap.Sync(), se.Tree.Sync(), se.Hash.Sync(), se.Tokens.Sync())
}

func (se *StorageEngine) Options() Options { return se.opts }

// Stats reports sizes and shapes of the heap and the indexes.
func (se *StorageEngine) Stats() (EngineStats, error) {
	se.mu.Lock()
	defer se.mu.Unlock()

	hs, err := se.Heap.Stats()
	if err != nil {
		return EngineStats{}, err
	}
	height, err := se.Tree.Height()
	if err != nil {
		return EngineStats{}, err
	}
	st := EngineStats{
		Heap:           hs,
		TreeOrder:      se.Tree.Order(),
		TreePages:      se.Tree.TotalPages(),
		TreeHeight:     height,
		HashDepth:      se.Hash.GlobalDepth(),
		HashBuckets:    se.Hash.BucketCount(),
		Tokens:         se.Tokens.Len(),
		PostingEntries: se.Tokens.Entries(),
	}
	for _, cs := range []func() (uint64, uint64){se.Tree.CacheStats, se.Hash.CacheStats, se.Tokens.CacheStats} {
		hits, misses := cs()
		st.CacheHits += hits
		st.CacheMisses += misses
	}
	return st, nil
}

// ready refuses work while the indexes are known to disagree with the heap.
func (se *StorageEngine) ready(op types.OperationType, key any) error {
	if se.fault == nil {
		return nil
	}
	return types.WrapOp(op, key, fmt.Errorf("%w: %v", types.ErrIndexInconsistent, se.fault))
}

// indexFailed records that the heap has moved on without an index.
func (se *StorageEngine) indexFailed(op types.OperationType, key any, err error) error {
	se.fault = err
	se.log.Errorw("index out of step with heap, rebuild required", "op", op.String(), "key", key, "error", err)
	return types.WrapOp(op, key, fmt.Errorf("%w: %w", types.ErrIndexInconsistent, err))
}
