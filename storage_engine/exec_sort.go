package storageengine

import (
	"errors"

	extsort "AnimeDB/external_sort"
	"AnimeDB/types"
)

// Sort physically reorders the heap file by episode count, keeping at most
// batchSize records in memory, then rebuilds every index since each record
// has moved. Deleted slots do not survive a sort.
//
// A failed sort leaves the heap in an unknown state and the engine refusing
// work until RebuildIndexes succeeds.
func (se *StorageEngine) Sort(batchSize int, optimized bool) (extsort.Stats, error) {
	se.mu.Lock()
	defer se.mu.Unlock()

	if err := se.ready(types.OpSort, batchSize); err != nil {
		return extsort.Stats{}, err
	}

	stats, err := extsort.Sort(se.Heap, extsort.Config{
		Limit:     batchSize,
		Optimized: optimized,
		TempDir:   se.opts.Dir,
		Log:       se.log,
	})
	if err != nil {
		if errors.Is(err, types.ErrInvalidArgument) {
			return stats, err
		}
		return stats, se.indexFailed(types.OpSort, batchSize, err)
	}

	if err := se.rebuildIndexes(); err != nil {
		return stats, se.indexFailed(types.OpSort, batchSize, err)
	}
	return stats, nil
}
