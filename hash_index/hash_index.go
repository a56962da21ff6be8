package hashindex

import (
	"fmt"
	"slices"

	"AnimeDB/logging"
	"AnimeDB/pager"
	"AnimeDB/types"

	"go.uber.org/zap"
)

// Open opens the bucket file at path and resets it to 2^globalDepth empty
// buckets. The directory lives only in memory, so buckets left by an earlier
// process cannot be addressed and are discarded; callers rebuild with Build.
// maxDepth caps directory growth: a split that would need a deeper directory
// fails with ErrInvalidArgument.
func Open(path string, globalDepth, maxDepth int, cacheCost int64, log *zap.SugaredLogger) (*HashIndex, error) {
	if maxDepth < 0 || maxDepth > MaxGlobalDepth {
		return nil, fmt.Errorf("%w: maximum depth %d outside [0, %d]",
			types.ErrInvalidArgument, maxDepth, MaxGlobalDepth)
	}
	if globalDepth < 0 || globalDepth > maxDepth {
		return nil, fmt.Errorf("%w: global depth %d outside [0, %d]",
			types.ErrInvalidArgument, globalDepth, maxDepth)
	}

	p, err := pager.Open(path, BucketSize, cacheCost)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket file: %w", err)
	}

	h := &HashIndex{
		pager:        p,
		initialDepth: globalDepth,
		maxDepth:     maxDepth,
		log:          logging.OrNop(log).With("buckets", path),
	}
	if err := h.reset(); err != nil {
		p.Close()
		return nil, err
	}
	return h, nil
}

// Reset drops every bucket and restores the initial global depth.
func (h *HashIndex) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reset()
}

func (h *HashIndex) reset() error {
	if err := h.pager.Truncate(); err != nil {
		return err
	}

	h.globalDepth = h.initialDepth
	h.directory = make([]int64, 1<<h.globalDepth)
	for i := range h.directory {
		off, err := h.appendBucket(&bucket{localDepth: h.globalDepth})
		if err != nil {
			return fmt.Errorf("failed to allocate bucket %d: %w", i, err)
		}
		h.directory[i] = off
	}
	return nil
}

// Build resets the index and adds every entry.
func (h *HashIndex) Build(entries []Entry) error {
	if err := h.Reset(); err != nil {
		return fmt.Errorf("reset hash index: %w", err)
	}
	for _, e := range entries {
		if err := h.Put(e.ID, e.HeapOffset); err != nil {
			return err
		}
	}
	h.log.Infow("built hash index",
		"keys", len(entries), "global_depth", h.GlobalDepth(), "buckets", h.BucketCount())
	return nil
}

// Put maps id to heapOffset, overwriting an existing mapping. A full bucket
// is split, doubling the directory first when its local depth has caught up
// with the global depth, until the id fits.
func (h *HashIndex) Put(id int32, heapOffset int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.put(id, heapOffset); err != nil {
		return types.WrapOp(types.OpInsert, id, fmt.Errorf("hash index: %w", err))
	}
	return nil
}

func (h *HashIndex) put(id int32, heapOffset int64) error {
	for {
		b, err := h.bucketFor(id)
		if err != nil {
			return err
		}

		idx, found := slices.BinarySearchFunc(b.entries, id, compareID)
		if found {
			b.entries[idx].HeapOffset = heapOffset
			return h.writeBucket(b)
		}
		if len(b.entries) < BucketCapacity {
			b.entries = slices.Insert(b.entries, idx, Entry{ID: id, HeapOffset: heapOffset})
			return h.writeBucket(b)
		}

		if err := h.split(b); err != nil {
			return err
		}
	}
}

// split divides a full bucket on bit localDepth of the hash. The bucket keeps
// the entries with that bit clear and a new sibling takes the rest.
func (h *HashIndex) split(b *bucket) error {
	if b.localDepth > h.globalDepth {
		return fmt.Errorf("%w: bucket at %d has local depth %d above global depth %d",
			types.ErrCorrupt, b.offset, b.localDepth, h.globalDepth)
	}
	if b.localDepth == h.globalDepth {
		if err := h.doubleDirectory(); err != nil {
			return err
		}
	}

	bit := uint32(1) << b.localDepth
	b.localDepth++

	sibling := &bucket{localDepth: b.localDepth}
	kept := b.entries[:0]
	for _, e := range b.entries {
		if uint32(e.ID)&bit != 0 {
			sibling.entries = append(sibling.entries, e)
		} else {
			kept = append(kept, e)
		}
	}
	b.entries = kept

	siblingOff, err := h.appendBucket(sibling)
	if err != nil {
		return err
	}
	if err := h.writeBucket(b); err != nil {
		return err
	}

	for i, off := range h.directory {
		if off == b.offset && uint32(i)&bit != 0 {
			h.directory[i] = siblingOff
		}
	}

	h.log.Debugw("bucket split",
		"bucket", b.offset, "sibling", siblingOff, "local_depth", b.localDepth,
		"kept", len(b.entries), "moved", len(sibling.entries))
	return nil
}

func (h *HashIndex) doubleDirectory() error {
	if h.globalDepth >= h.maxDepth {
		return fmt.Errorf("%w: directory would grow past depth %d", types.ErrInvalidArgument, h.maxDepth)
	}
	h.directory = append(h.directory, h.directory...)
	h.globalDepth++
	h.log.Infow("directory doubled", "global_depth", h.globalDepth, "slots", len(h.directory))
	return nil
}

// Search returns the heap offset stored for id.
func (h *HashIndex) Search(id int32) (int64, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	b, err := h.bucketFor(id)
	if err != nil {
		return -1, false, types.WrapOp(types.OpHashSearch, id, err)
	}
	for _, e := range b.entries {
		if e.ID == id {
			return e.HeapOffset, true, nil
		}
	}
	return -1, false, nil
}

// Remove deletes the mapping for id. Buckets are never merged.
func (h *HashIndex) Remove(id int32) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, err := h.bucketFor(id)
	if err != nil {
		return false, types.WrapOp(types.OpDelete, id, err)
	}
	idx, found := slices.BinarySearchFunc(b.entries, id, compareID)
	if !found {
		return false, nil
	}
	b.entries = slices.Delete(b.entries, idx, idx+1)
	if err := h.writeBucket(b); err != nil {
		return false, types.WrapOp(types.OpDelete, id, err)
	}
	return true, nil
}

// DepthFor returns the global depth a directory starting at depth 0 reaches
// once it holds ids: the smallest depth at which no BucketCapacity+1 ids share
// their low bits. Splits depend only on those bits, so insertion order does
// not matter. Duplicate ids are counted once.
func DepthFor(ids []int32) int {
	for depth := 0; depth < 32; depth++ {
		counts := make(map[int]int, len(ids))
		seen := make(map[int32]struct{}, len(ids))
		fits := true
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			slot := slotFor(id, depth)
			if counts[slot]++; counts[slot] > BucketCapacity {
				fits = false
				break
			}
		}
		if fits {
			return depth
		}
	}
	return 32
}

func (h *HashIndex) MaxDepth() int { return h.maxDepth }

func (h *HashIndex) GlobalDepth() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.globalDepth
}

// Directory returns a copy of the slot -> bucket offset table.
func (h *HashIndex) Directory() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.directory)
}

func (h *HashIndex) BucketCount() int64 { return h.pager.TotalPages() }

func (h *HashIndex) CacheStats() (hits, misses uint64) { return h.pager.CacheStats() }

func (h *HashIndex) Sync() error { return h.pager.Sync() }

func (h *HashIndex) Close() error { return h.pager.Close() }

func (h *HashIndex) bucketFor(id int32) (*bucket, error) {
	slot := slotFor(id, h.globalDepth)
	if slot >= len(h.directory) {
		return nil, fmt.Errorf("%w: directory slot %d out of %d", types.ErrCorrupt, slot, len(h.directory))
	}
	return h.readBucket(h.directory[slot])
}

func (h *HashIndex) readBucket(offset int64) (*bucket, error) {
	buf, err := h.pager.ReadPage(offset)
	if err != nil {
		return nil, err
	}
	return decodeBucket(buf, offset)
}

func (h *HashIndex) writeBucket(b *bucket) error {
	buf, err := encodeBucket(b)
	if err != nil {
		return err
	}
	return h.pager.WritePage(b.offset, buf)
}

func (h *HashIndex) appendBucket(b *bucket) (int64, error) {
	buf, err := encodeBucket(b)
	if err != nil {
		return 0, err
	}
	off, err := h.pager.AppendPage(buf)
	if err != nil {
		return 0, err
	}
	b.offset = off
	return off, nil
}

func compareID(e Entry, id int32) int {
	switch {
	case e.ID < id:
		return -1
	case e.ID > id:
		return 1
	}
	return 0
}
