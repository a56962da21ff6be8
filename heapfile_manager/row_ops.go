package heapfile

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"AnimeDB/types"
)

// Get scans the file from the first slot for the valid record with id.
// Tombstones are skipped by their stored size without being decoded.
func (hf *HeapFile) Get(id int32) (Entry, bool, error) {
	hf.mu.RLock()
	defer hf.mu.RUnlock()

	e, _, ok, err := hf.find(id)
	if err != nil {
		return Entry{}, false, types.WrapOp(types.OpGet, id, err)
	}
	return e, ok, nil
}

// ReadAt decodes the slot at offset. ok is false for a tombstone.
func (hf *HeapFile) ReadAt(offset int64) (types.Record, bool, error) {
	hf.mu.RLock()
	defer hf.mu.RUnlock()

	if offset < HeaderSize || offset+SlotHeaderSize > hf.size {
		return types.Record{}, false, fmt.Errorf("%w: heap offset %d outside file of %d bytes",
			types.ErrCorrupt, offset, hf.size)
	}

	var hdr [SlotHeaderSize]byte
	if _, err := hf.file.ReadAt(hdr[:], offset); err != nil {
		return types.Record{}, false, fmt.Errorf("read slot header at %d: %w", offset, err)
	}
	if hdr[0] == 0 {
		return types.Record{}, false, nil
	}

	size := int32(binary.BigEndian.Uint32(hdr[1:]))
	if size < 0 || offset+SlotHeaderSize+int64(size) > hf.size {
		return types.Record{}, false, fmt.Errorf("%w: slot at %d declares %d bytes", types.ErrCorrupt, offset, size)
	}

	payload := make([]byte, size)
	if _, err := hf.file.ReadAt(payload, offset+SlotHeaderSize); err != nil {
		return types.Record{}, false, fmt.Errorf("read slot payload at %d: %w", offset, err)
	}
	rec, err := types.DecodeRecord(payload)
	if err != nil {
		return types.Record{}, false, fmt.Errorf("slot at %d: %w", offset, err)
	}
	return rec, true, nil
}

// Insert assigns rec the next identifier, persists the header and appends a
// valid slot at end of file. The returned record carries Released at the
// whole-second precision it is stored with.
func (hf *HeapFile) Insert(rec types.Record) (Entry, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	if hf.lastID == math.MaxInt32 {
		return Entry{}, types.WrapOp(types.OpInsert, rec.Name,
			fmt.Errorf("%w: identifier space exhausted at %d", types.ErrInvalidArgument, hf.lastID))
	}
	rec.ID = hf.lastID + 1
	rec.Released = rec.Released.Truncate(time.Second)
	payload, err := types.EncodeRecord(rec)
	if err != nil {
		return Entry{}, types.WrapOp(types.OpInsert, rec.ID, err)
	}

	if err := hf.writeHeader(rec.ID); err != nil {
		return Entry{}, types.WrapOp(types.OpInsert, rec.ID, err)
	}
	offset, err := hf.appendSlot(payload)
	if err != nil {
		return Entry{}, types.WrapOp(types.OpInsert, rec.ID, err)
	}

	hf.log.Debugw("inserted record", "id", rec.ID, "offset", offset, "bytes", len(payload))
	return Entry{Offset: offset, Record: rec}, nil
}

// Update rewrites the record whose identifier is rec.ID. A new encoding that
// fits the old slot is written in place (the slot size is kept); a larger one
// tombstones the old slot and is appended at end of file.
// ok is false when no valid record has that identifier.
func (hf *HeapFile) Update(rec types.Record) (UpdateResult, bool, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	old, hdr, ok, err := hf.find(rec.ID)
	if err != nil || !ok {
		return UpdateResult{}, false, types.WrapOp(types.OpUpdate, rec.ID, err)
	}

	payload, err := types.EncodeRecord(rec)
	if err != nil {
		return UpdateResult{}, false, types.WrapOp(types.OpUpdate, rec.ID, err)
	}

	res := UpdateResult{Old: old, NewOffset: old.Offset}
	if len(payload) <= int(hdr.size) {
		padded := make([]byte, hdr.size)
		copy(padded, payload)
		if _, err := hf.file.WriteAt(padded, old.Offset+SlotHeaderSize); err != nil {
			return UpdateResult{}, false, types.WrapOp(types.OpUpdate, rec.ID,
				fmt.Errorf("rewrite slot at %d: %w", old.Offset, err))
		}
		hf.log.Debugw("updated record in place", "id", rec.ID, "offset", old.Offset)
		return res, true, nil
	}

	if err := hf.markInvalid(old.Offset); err != nil {
		return UpdateResult{}, false, types.WrapOp(types.OpUpdate, rec.ID, err)
	}
	if res.NewOffset, err = hf.appendSlot(payload); err != nil {
		return UpdateResult{}, false, types.WrapOp(types.OpUpdate, rec.ID, err)
	}
	res.Relocated = true

	hf.log.Debugw("relocated record", "id", rec.ID, "from", old.Offset, "to", res.NewOffset)
	return res, true, nil
}

// Delete flips the validity flag of the record with id. No bytes are reclaimed.
// ok is false when no valid record has that identifier.
func (hf *HeapFile) Delete(id int32) (Entry, bool, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	e, _, ok, err := hf.find(id)
	if err != nil || !ok {
		return Entry{}, false, types.WrapOp(types.OpDelete, id, err)
	}
	if err := hf.markInvalid(e.Offset); err != nil {
		return Entry{}, false, types.WrapOp(types.OpDelete, id, err)
	}

	hf.log.Debugw("deleted record", "id", id, "offset", e.Offset)
	return e, true, nil
}

// Scan calls fn for every valid record in file order.
func (hf *HeapFile) Scan(fn func(Entry) error) error {
	hf.mu.RLock()
	defer hf.mu.RUnlock()

	return hf.walkSlots(func(h slotHeader, payload []byte) (bool, error) {
		if !h.valid {
			return false, nil
		}
		rec, err := types.DecodeRecord(payload)
		if err != nil {
			return false, fmt.Errorf("slot at %d: %w", h.offset, err)
		}
		return false, fn(Entry{Offset: h.offset, Record: rec})
	})
}
