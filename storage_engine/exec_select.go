package storageengine

import (
	"fmt"
	"slices"

	invindex "AnimeDB/inverted_index"
	"AnimeDB/types"
)

/*
This file contains the read paths.

	Get(id)          linear heap scan, no index
	TreeSearch(id)   Tree.Search  → Heap.ReadAt(offset)
	HashSearch(id)   Hash.Search  → Heap.ReadAt(offset)
	TokenSearch(t)   Tokens.Get   → Heap.ReadAt per offset, stale postings dropped
*/

// Get finds the record with id by scanning the heap file.
func (se *StorageEngine) Get(id int32) (types.Record, bool, error) {
	se.mu.Lock()
	defer se.mu.Unlock()

	if err := se.ready(types.OpGet, id); err != nil {
		return types.Record{}, false, err
	}

	e, ok, err := se.Heap.Get(id)
	if err != nil || !ok {
		return types.Record{}, false, err
	}
	return e.Record, true, nil
}

// TreeSearch resolves id through the B-tree.
func (se *StorageEngine) TreeSearch(id int32) (types.Record, bool, error) {
	se.mu.Lock()
	defer se.mu.Unlock()

	if err := se.ready(types.OpTreeSearch, id); err != nil {
		return types.Record{}, false, err
	}

	off, ok, err := se.Tree.Search(id)
	if err != nil || !ok {
		return types.Record{}, false, err
	}
	return se.resolve(types.OpTreeSearch, id, off)
}

// HashSearch resolves id through the extendible hash index.
func (se *StorageEngine) HashSearch(id int32) (types.Record, bool, error) {
	se.mu.Lock()
	defer se.mu.Unlock()

	if err := se.ready(types.OpHashSearch, id); err != nil {
		return types.Record{}, false, err
	}

	off, ok, err := se.Hash.Search(id)
	if err != nil || !ok {
		return types.Record{}, false, err
	}
	return se.resolve(types.OpHashSearch, id, off)
}

// resolve reads the slot an index pointed at. A slot that is dead or holds
// another record means the index and the heap disagree.
func (se *StorageEngine) resolve(op types.OperationType, id int32, off int64) (types.Record, bool, error) {
	rec, ok, err := se.Heap.ReadAt(off)
	if err != nil {
		return types.Record{}, false, types.WrapOp(op, id, err)
	}
	if !ok || rec.ID != id {
		return types.Record{}, false, se.indexFailed(op, id,
			fmt.Errorf("index points id %d at heap offset %d, which holds no such record", id, off))
	}
	return rec, true, nil
}

// TokenSearch returns the live records tagged with token, in posting order.
func (se *StorageEngine) TokenSearch(token string) ([]types.Record, error) {
	se.mu.Lock()
	defer se.mu.Unlock()

	if err := se.ready(types.OpTokenSearch, token); err != nil {
		return nil, err
	}

	offsets, err := se.Tokens.Get(token)
	if err != nil {
		return nil, err
	}
	return se.resolveTagged(offsets, token)
}

// TokenSearchAnd returns the live records tagged with both a and b, ordered
// by a's postings.
func (se *StorageEngine) TokenSearchAnd(a, b string) ([]types.Record, error) {
	se.mu.Lock()
	defer se.mu.Unlock()

	if err := se.ready(types.OpTokenSearch, a+" & "+b); err != nil {
		return nil, err
	}

	offsets, err := se.Tokens.GetAnd(a, b)
	if err != nil {
		return nil, err
	}
	return se.resolveTagged(offsets, a, b)
}

// resolveTagged reads each offset once and keeps the records that are still
// live and still carry every one of tokens. Postings left behind by deletes
// and updates fail one of those checks.
func (se *StorageEngine) resolveTagged(offsets []int64, tokens ...string) ([]types.Record, error) {
	want := make([]string, len(tokens))
	for i, t := range tokens {
		want[i] = invindex.Normalize(t)
	}

	seen := make(map[int64]struct{}, len(offsets))
	var out []types.Record
	for _, off := range offsets {
		if _, dup := seen[off]; dup {
			continue
		}
		seen[off] = struct{}{}

		rec, ok, err := se.Heap.ReadAt(off)
		if err != nil {
			return nil, types.WrapOp(types.OpTokenSearch, tokens[0], err)
		}
		if !ok || !carriesAll(rec, want) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func carriesAll(rec types.Record, tokens []string) bool {
	have := tokenSet(rec)
	return !slices.ContainsFunc(tokens, func(t string) bool {
		_, ok := have[t]
		return !ok
	})
}
