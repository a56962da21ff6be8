package storageengine

import (
	invindex "AnimeDB/inverted_index"
	"AnimeDB/types"
)

/*
This file contains the update and delete operations.

Update:
	Heap.Update(rec)
	     ├── fits old slot  → payload rewritten in place, offset unchanged
	     │                    Tokens gets the offset only under newly added tags
	     └── larger         → old slot tombstoned, new slot appended
	                          Tree.Insert / Hash.Put re-point the id (both upsert)
	                          Tokens gets the new offset under every tag

Delete:
	Heap.Delete(id) → Tree.Delete(id) tombstones the key → Hash.Remove(id)

Postings are append only, so a tag dropped by an update or a deleted record
leaves a stale offset behind. Token searches filter those out.
*/

// Update rewrites the record with rec.ID. ok is false when no live record has
// that identifier.
func (se *StorageEngine) Update(rec types.Record) (bool, error) {
	se.mu.Lock()
	defer se.mu.Unlock()

	if err := se.ready(types.OpUpdate, rec.ID); err != nil {
		return false, err
	}

	res, ok, err := se.Heap.Update(rec)
	if err != nil || !ok {
		return false, err
	}

	if res.Relocated {
		if err := se.indexRecord(rec, res.NewOffset); err != nil {
			return false, se.indexFailed(types.OpUpdate, rec.ID, err)
		}
		se.log.Debugw("record relocated", "id", rec.ID, "from", res.Old.Offset, "to", res.NewOffset)
		return true, nil
	}

	added := addedTokens(res.Old.Record, rec)
	for _, token := range added {
		if err := se.Tokens.Append(token, res.NewOffset); err != nil {
			return false, se.indexFailed(types.OpUpdate, rec.ID, err)
		}
	}
	se.log.Debugw("record updated in place", "id", rec.ID, "offset", res.NewOffset, "new_tags", len(added))
	return true, nil
}

// Delete tombstones the record with id. ok is false when no live record has
// that identifier, including a second delete of the same id.
func (se *StorageEngine) Delete(id int32) (bool, error) {
	se.mu.Lock()
	defer se.mu.Unlock()

	if err := se.ready(types.OpDelete, id); err != nil {
		return false, err
	}

	entry, ok, err := se.Heap.Delete(id)
	if err != nil || !ok {
		return false, err
	}

	if _, err := se.Tree.Delete(id); err != nil {
		return false, se.indexFailed(types.OpDelete, id, err)
	}
	if _, err := se.Hash.Remove(id); err != nil {
		return false, se.indexFailed(types.OpDelete, id, err)
	}

	se.log.Debugw("record deleted", "id", id, "offset", entry.Offset)
	return true, nil
}

// addedTokens lists the normalized tags of updated that old did not carry.
func addedTokens(old, updated types.Record) []string {
	had := tokenSet(old)
	var out []string
	for token := range tokenSet(updated) {
		if _, ok := had[token]; !ok {
			out = append(out, token)
		}
	}
	return out
}

func tokenSet(rec types.Record) map[string]struct{} {
	set := make(map[string]struct{})
	for _, raw := range rec.Tokens() {
		if token := invindex.Normalize(raw); token != "" {
			set[token] = struct{}{}
		}
	}
	return set
}
