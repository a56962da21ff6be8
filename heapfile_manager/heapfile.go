package heapfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"AnimeDB/logging"
	"AnimeDB/types"

	"go.uber.org/zap"
)

// Open opens the heap file at path, creating it with an empty header if needed.
func Open(path string, log *zap.SugaredLogger) (*HeapFile, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open heap file %s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat heap file: %w", err)
	}

	hf := &HeapFile{
		file:     file,
		filePath: path,
		size:     stat.Size(),
		log:      logging.OrNop(log).With("heap", path),
	}

	switch {
	case hf.size == 0:
		if err := hf.writeHeader(0); err != nil {
			file.Close()
			return nil, err
		}
		hf.size = HeaderSize
		hf.log.Infow("created heap file")
	case hf.size < HeaderSize:
		file.Close()
		return nil, fmt.Errorf("%w: heap file %s is %d bytes, shorter than its header",
			types.ErrCorrupt, path, hf.size)
	default:
		if hf.lastID, err = hf.readHeader(); err != nil {
			file.Close()
			return nil, err
		}
		hf.log.Infow("opened heap file", "lastID", hf.lastID, "bytes", hf.size)
	}

	return hf, nil
}

// Initialize discards the current contents and writes records as valid slots,
// in order. The header becomes the highest identifier among them. The returned
// offsets line up with records.
func (hf *HeapFile) Initialize(records []types.Record) ([]int64, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	var maxID int32
	for _, r := range records {
		maxID = max(maxID, r.ID)
	}

	if err := hf.file.Truncate(0); err != nil {
		return nil, fmt.Errorf("truncate heap file: %w", err)
	}
	hf.size = 0
	if err := hf.writeHeader(maxID); err != nil {
		return nil, err
	}
	hf.size = HeaderSize

	w := bufio.NewWriterSize(io.NewOffsetWriter(hf.file, HeaderSize), 64*1024)
	offsets := make([]int64, 0, len(records))
	pos := int64(HeaderSize)

	for _, r := range records {
		payload, err := types.EncodeRecord(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", r.ID, err)
		}
		if _, err := w.Write(encodeSlot(payload)); err != nil {
			return nil, fmt.Errorf("write record %d: %w", r.ID, err)
		}
		offsets = append(offsets, pos)
		pos += int64(SlotHeaderSize + len(payload))
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush heap file: %w", err)
	}
	hf.size = pos

	hf.log.Infow("initialized heap file", "records", len(records), "lastID", maxID)
	return offsets, nil
}

// Truncate drops every slot and keeps the header.
func (hf *HeapFile) Truncate() error {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	if err := hf.file.Truncate(HeaderSize); err != nil {
		return fmt.Errorf("truncate heap file: %w", err)
	}
	hf.size = HeaderSize
	return nil
}

// AppendRaw appends an already encoded record payload as a valid slot.
func (hf *HeapFile) AppendRaw(payload []byte) (int64, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.appendSlot(payload)
}

func (hf *HeapFile) LastID() int32 {
	hf.mu.RLock()
	defer hf.mu.RUnlock()
	return hf.lastID
}

func (hf *HeapFile) Path() string { return hf.filePath }

// Size is the file length in bytes, header included.
func (hf *HeapFile) Size() int64 {
	hf.mu.RLock()
	defer hf.mu.RUnlock()
	return hf.size
}

func (hf *HeapFile) Stats() (Stats, error) {
	hf.mu.RLock()
	defer hf.mu.RUnlock()

	st := Stats{Bytes: hf.size, LastID: hf.lastID}
	err := hf.walkSlots(func(h slotHeader, _ []byte) (bool, error) {
		if h.valid {
			st.ValidSlots++
		} else {
			st.DeletedSlots++
		}
		return false, nil
	})
	return st, err
}

func (hf *HeapFile) Sync() error {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	if hf.file == nil {
		return fmt.Errorf("heap file is closed")
	}
	return hf.file.Sync()
}

// Close syncs and closes the file. Closing twice is a no-op.
func (hf *HeapFile) Close() error {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	if hf.file == nil {
		return nil
	}
	if err := hf.file.Sync(); err != nil {
		hf.file.Close()
		hf.file = nil
		return fmt.Errorf("failed to sync before close: %w", err)
	}
	err := hf.file.Close()
	hf.file = nil
	return err
}

func (hf *HeapFile) readHeader() (int32, error) {
	var b [HeaderSize]byte
	if _, err := hf.file.ReadAt(b[:], 0); err != nil {
		return 0, fmt.Errorf("unable to read heap file header: %w", err)
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

func (hf *HeapFile) writeHeader(lastID int32) error {
	var b [HeaderSize]byte
	binary.BigEndian.PutUint32(b[:], uint32(lastID))
	if _, err := hf.file.WriteAt(b[:], 0); err != nil {
		return fmt.Errorf("unable to write heap file header: %w", err)
	}
	hf.lastID = lastID
	return nil
}
