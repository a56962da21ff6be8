package storageengine

import (
	"fmt"

	hashindex "AnimeDB/hash_index"
	heapfile "AnimeDB/heapfile_manager"
	"AnimeDB/types"
)

/*
This file contains the insert and bulk load operations.

The heap write always comes first. Indexes follow in a fixed order, and any
failure after the heap write leaves the engine refusing work until
RebuildIndexes runs. Nothing is rolled back.

	StorageEngine.Insert(rec)
	     ├── Heap.Insert(rec)          → id = header + 1, slot appended
	     ├── Tree.Insert(id, offset)
	     ├── Hash.Put(id, offset)
	     └── Tokens.Insert(rec, offset) → one posting per genre / producer
*/

// Insert stores rec under a newly assigned identifier and returns the stored
// record. rec.ID is ignored.
func (se *StorageEngine) Insert(rec types.Record) (types.Record, error) {
	se.mu.Lock()
	defer se.mu.Unlock()

	if err := se.ready(types.OpInsert, rec.Name); err != nil {
		return types.Record{}, err
	}

	// ── Step 1: heap ─────────────────────────────────────────────────────────
	entry, err := se.Heap.Insert(rec)
	if err != nil {
		return types.Record{}, err
	}

	// ── Step 2: mirror into the indexes ──────────────────────────────────────
	if err := se.indexRecord(entry.Record, entry.Offset); err != nil {
		return types.Record{}, se.indexFailed(types.OpInsert, entry.Record.ID, err)
	}

	se.log.Debugw("record inserted", "id", entry.Record.ID, "offset", entry.Offset)
	return entry.Record, nil
}

// Load replaces the heap file with records, keeping their identifiers, and
// builds every index from the offsets the heap reports. Identifiers must be
// unique and must not need a hash directory deeper than MaxHashDepth; both
// are checked before the heap is touched. A successful load also clears an
// earlier index fault.
func (se *StorageEngine) Load(records []types.Record) error {
	se.mu.Lock()
	defer se.mu.Unlock()

	seen := make(map[int32]struct{}, len(records))
	ids := make([]int32, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			return types.WrapOp(types.OpLoad, r.ID, fmt.Errorf("%w: duplicate identifier", types.ErrInvalidArgument))
		}
		seen[r.ID] = struct{}{}
		ids = append(ids, r.ID)
	}
	if depth := hashindex.DepthFor(ids); depth > se.Hash.MaxDepth() {
		return types.WrapOp(types.OpLoad, len(records), fmt.Errorf(
			"%w: identifiers need hash depth %d, limit is %d", types.ErrInvalidArgument, depth, se.Hash.MaxDepth()))
	}

	offsets, err := se.Heap.Initialize(records)
	if err != nil {
		se.fault = err
		return types.WrapOp(types.OpLoad, len(records), err)
	}

	entries := make([]heapfile.Entry, len(records))
	for i, r := range records {
		entries[i] = heapfile.Entry{Offset: offsets[i], Record: r}
	}
	if err := se.buildIndexes(entries); err != nil {
		return se.indexFailed(types.OpLoad, len(records), err)
	}
	se.fault = nil

	se.log.Infow("loaded records", "records", len(records), "last_id", se.Heap.LastID())
	return nil
}
