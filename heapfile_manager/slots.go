package heapfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"AnimeDB/types"
)

type slotHeader struct {
	offset int64
	valid  bool
	size   int32
}

func encodeSlotHeader(valid bool, size int32) []byte {
	b := make([]byte, SlotHeaderSize)
	if valid {
		b[0] = 1
	}
	binary.BigEndian.PutUint32(b[1:], uint32(size))
	return b
}

// encodeSlot frames payload as a valid slot.
func encodeSlot(payload []byte) []byte {
	b := make([]byte, 0, SlotHeaderSize+len(payload))
	b = append(b, encodeSlotHeader(true, int32(len(payload)))...)
	return append(b, payload...)
}

// walkSlots visits every slot from the first one after the header. payload is
// nil for tombstones. Returning stop=true ends the walk early.
func (hf *HeapFile) walkSlots(fn func(h slotHeader, payload []byte) (stop bool, err error)) error {
	r := bufio.NewReaderSize(io.NewSectionReader(hf.file, HeaderSize, hf.size-HeaderSize), 64*1024)
	pos := int64(HeaderSize)
	var hdr [SlotHeaderSize]byte

	for pos < hf.size {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return fmt.Errorf("read slot header at %d: %w", pos, err)
		}
		h := slotHeader{
			offset: pos,
			valid:  hdr[0] != 0,
			size:   int32(binary.BigEndian.Uint32(hdr[1:])),
		}
		end := pos + SlotHeaderSize + int64(h.size)
		if h.size < 0 || end > hf.size {
			return fmt.Errorf("%w: slot at %d declares %d bytes, file is %d bytes",
				types.ErrCorrupt, pos, h.size, hf.size)
		}

		var payload []byte
		if h.valid {
			payload = make([]byte, h.size)
			if _, err := io.ReadFull(r, payload); err != nil {
				return fmt.Errorf("read slot payload at %d: %w", pos, err)
			}
		} else if _, err := r.Discard(int(h.size)); err != nil {
			return fmt.Errorf("skip tombstone at %d: %w", pos, err)
		}

		stop, err := fn(h, payload)
		if err != nil || stop {
			return err
		}
		pos = end
	}
	return nil
}

// find locates the valid slot holding id.
func (hf *HeapFile) find(id int32) (Entry, slotHeader, bool, error) {
	var (
		found Entry
		hdr   slotHeader
		ok    bool
	)
	err := hf.walkSlots(func(h slotHeader, payload []byte) (bool, error) {
		if !h.valid {
			return false, nil
		}
		rec, err := types.DecodeRecord(payload)
		if err != nil {
			return false, fmt.Errorf("slot at %d: %w", h.offset, err)
		}
		if rec.ID != id {
			return false, nil
		}
		found, hdr, ok = Entry{Offset: h.offset, Record: rec}, h, true
		return true, nil
	})
	return found, hdr, ok, err
}

// appendSlot writes payload as a valid slot at end of file.
func (hf *HeapFile) appendSlot(payload []byte) (int64, error) {
	offset := hf.size
	if _, err := hf.file.WriteAt(encodeSlot(payload), offset); err != nil {
		return 0, fmt.Errorf("append slot at %d: %w", offset, err)
	}
	hf.size += int64(SlotHeaderSize + len(payload))
	return offset, nil
}

func (hf *HeapFile) markInvalid(offset int64) error {
	if _, err := hf.file.WriteAt([]byte{0}, offset); err != nil {
		return fmt.Errorf("tombstone slot at %d: %w", offset, err)
	}
	return nil
}
