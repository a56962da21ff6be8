// Structure of the extendible hash index
/*
Directory (memory only, 2^globalDepth slots)
 ├── slot i -> bucket offset in the bucket file
 │      several slots share a bucket whose localDepth < globalDepth
 └── slot for id = uint32(id) & (2^globalDepth - 1)

Bucket (fixed 87 bytes)
 - count(1) localDepth(2) then BucketCapacity pairs of id(4) heapOffset(8)
 - pairs sorted by id, unused pairs zero
*/
package hashindex

import (
	"sync"

	"AnimeDB/pager"

	"go.uber.org/zap"
)

const (
	BucketCapacity = 7
	bucketHeader   = 1 + 2
	pairSize       = 4 + 8
	BucketSize     = bucketHeader + BucketCapacity*pairSize

	MaxGlobalDepth = 31
)

// Entry maps a record id to the heap offset of its slot.
type Entry struct {
	ID         int32
	HeapOffset int64
}

type bucket struct {
	offset     int64
	localDepth int
	entries    []Entry
}

type HashIndex struct {
	pager        *pager.Pager
	directory    []int64
	globalDepth  int
	initialDepth int
	maxDepth     int // the directory never doubles past this depth
	log          *zap.SugaredLogger
	mu           sync.RWMutex
}

func slotFor(id int32, depth int) int {
	return int(uint32(id) & (uint32(1)<<depth - 1))
}
