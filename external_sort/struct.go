// Package extsort reorders the heap file by episode count with a balanced
// four-file merge sort that keeps at most Limit records in memory.
/*
Scratch directory sort-<uuid>/ holds tmp0..tmp3. Each file is a sequence of
frames { int32 size; byte[size] payload } with the heap's record payloads.

  distribution: Limit-sized batches, quicksorted, written alternately to tmp0/tmp1
  merge pass:   two sources -> two destinations, run pairs merged and written
                alternately; sources and destinations swap roles every pass
  done:         one destination received everything; it is copied back to the heap
*/
package extsort

import (
	heapfile "AnimeDB/heapfile_manager"

	"go.uber.org/zap"
)

const auxFiles = 4

// Heap is the record file being sorted.
type Heap interface {
	Scan(fn func(heapfile.Entry) error) error
	Truncate() error
	AppendRaw(payload []byte) (int64, error)
}

type Config struct {
	Limit     int  // records per in-memory batch, and the initial run width
	Optimized bool // natural merge: runs extend across already ordered boundaries
	TempDir   string
	Log       *zap.SugaredLogger
}

// Stats describes a finished sort.
type Stats struct {
	Records     int
	Bytes       int64 // payload bytes copied back
	InitialRuns int
	Passes      int
}

// item is one record in flight: its sort key and encoded payload.
type item struct {
	key     int32
	payload []byte
}
