package heapfile

import (
	"os"
	"sync"

	"AnimeDB/types"

	"go.uber.org/zap"
)

/*
Heap file layout (big-endian):

	int32 lastAssignedID
	slot*  = { byte valid; int32 size; byte[size] payload }

A slot's size is always correct, even when valid == 0, so a scan can hop over a
tombstone without decoding it. Slots are never removed; only Truncate drops them.
*/
const (
	HeaderSize     = 4
	SlotHeaderSize = 5 // valid flag + size
)

// HeapFile is the primary record file. Records are addressed by the byte
// offset of their slot.
type HeapFile struct {
	file     *os.File
	filePath string
	lastID   int32 // mirror of the on-disk header
	size     int64 // file length in bytes
	log      *zap.SugaredLogger
	mu       sync.RWMutex
}

// Entry is a decoded record and the offset of the slot holding it.
type Entry struct {
	Offset int64
	Record types.Record
}

// UpdateResult describes where an updated record ended up.
type UpdateResult struct {
	Old       Entry
	NewOffset int64
	Relocated bool // old slot tombstoned, record appended at end of file
}

// Stats summarises the slots of a heap file.
type Stats struct {
	ValidSlots   int
	DeletedSlots int
	Bytes        int64
	LastID       int32
}
