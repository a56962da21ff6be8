package storageengine

import (
	"fmt"
	"sync"

	"AnimeDB/btree"
	hashindex "AnimeDB/hash_index"
	heapfile "AnimeDB/heapfile_manager"
	invindex "AnimeDB/inverted_index"
	"AnimeDB/types"

	"go.uber.org/zap"
)

const (
	HeapFileName     = "records.db"
	TreeFileName     = "tree.idx"
	BucketFileName   = "buckets.idx"
	PostingsFileName = "postings.idx"

	DefaultTreeOrder       = 8
	DefaultHashGlobalDepth = 2
	DefaultMaxHashDepth    = 20
	DefaultCacheMaxCost    = 4 << 20

	maxInitialHashDepth = 16
)

type Options struct {
	Dir       string
	TreeOrder int

	// HashGlobalDepth is the initial directory depth. Zero selects
	// DefaultHashGlobalDepth, so a single-bucket directory (depth 0) is
	// requested with any negative value.
	HashGlobalDepth int

	// MaxHashDepth caps directory doubling. Zero selects DefaultMaxHashDepth.
	// Ids that would need a deeper directory are rejected with
	// ErrInvalidArgument.
	MaxHashDepth int

	CacheMaxCost int64 // page cache budget in bytes per index file, negative disables
	Logger       *zap.SugaredLogger
}

// withDefaults fills unset fields.
func (o Options) withDefaults() Options {
	if o.TreeOrder == 0 {
		o.TreeOrder = DefaultTreeOrder
	}
	if o.MaxHashDepth == 0 {
		o.MaxHashDepth = DefaultMaxHashDepth
	}
	switch {
	case o.HashGlobalDepth == 0:
		o.HashGlobalDepth = DefaultHashGlobalDepth
	case o.HashGlobalDepth < 0:
		o.HashGlobalDepth = 0
	}
	if o.CacheMaxCost == 0 {
		o.CacheMaxCost = DefaultCacheMaxCost
	}
	return o
}

func (o Options) validate() error {
	if o.Dir == "" {
		return fmt.Errorf("%w: data directory is required", types.ErrInvalidArgument)
	}
	if o.TreeOrder < btree.MinOrder || o.TreeOrder > btree.MaxOrder {
		return fmt.Errorf("%w: tree order %d outside [%d, %d]",
			types.ErrInvalidArgument, o.TreeOrder, btree.MinOrder, btree.MaxOrder)
	}
	if o.HashGlobalDepth > maxInitialHashDepth {
		return fmt.Errorf("%w: initial hash depth %d above %d",
			types.ErrInvalidArgument, o.HashGlobalDepth, maxInitialHashDepth)
	}
	if o.MaxHashDepth < o.HashGlobalDepth || o.MaxHashDepth > hashindex.MaxGlobalDepth {
		return fmt.Errorf("%w: maximum hash depth %d outside [%d, %d]",
			types.ErrInvalidArgument, o.MaxHashDepth, o.HashGlobalDepth, hashindex.MaxGlobalDepth)
	}
	return nil
}

// StorageEngine keeps the heap file and its three indexes in step. Every
// public method holds mu for its whole duration.
type StorageEngine struct {
	Heap   *heapfile.HeapFile
	Tree   *btree.BTree
	Hash   *hashindex.HashIndex
	Tokens *invindex.InvertedIndex

	opts Options
	log  *zap.SugaredLogger

	// fault is set when a heap mutation succeeded but an index could not
	// follow it. Only RebuildIndexes and Close run while it is set.
	fault error

	mu sync.Mutex
}

// EngineStats summarises the files of an open engine.
type EngineStats struct {
	Heap           heapfile.Stats
	TreeOrder      int
	TreePages      int64
	TreeHeight     int
	HashDepth      int
	HashBuckets    int64
	Tokens         int
	PostingEntries int64

	// page cache counters summed over the three index files
	CacheHits   uint64
	CacheMisses uint64
}
