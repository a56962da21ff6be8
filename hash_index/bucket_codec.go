package hashindex

import (
	"encoding/binary"
	"fmt"

	"AnimeDB/types"
)

func encodeBucket(b *bucket) ([]byte, error) {
	if len(b.entries) > BucketCapacity {
		return nil, fmt.Errorf("%w: bucket holds %d entries, capacity %d",
			types.ErrCorrupt, len(b.entries), BucketCapacity)
	}

	buf := make([]byte, BucketSize)
	buf[0] = byte(len(b.entries))
	binary.BigEndian.PutUint16(buf[1:], uint16(b.localDepth))

	off := bucketHeader
	for _, e := range b.entries {
		binary.BigEndian.PutUint32(buf[off:], uint32(e.ID))
		binary.BigEndian.PutUint64(buf[off+4:], uint64(e.HeapOffset))
		off += pairSize
	}
	return buf, nil
}

func decodeBucket(buf []byte, offset int64) (*bucket, error) {
	if len(buf) != BucketSize {
		return nil, fmt.Errorf("bucket size mismatch: expected %d, got %d", BucketSize, len(buf))
	}

	count := int(buf[0])
	if count > BucketCapacity {
		return nil, fmt.Errorf("%w: bucket at %d reports %d entries", types.ErrCorrupt, offset, count)
	}
	depth := int(int16(binary.BigEndian.Uint16(buf[1:])))
	if depth < 0 || depth > MaxGlobalDepth {
		return nil, fmt.Errorf("%w: bucket at %d has local depth %d", types.ErrCorrupt, offset, depth)
	}

	b := &bucket{
		offset:     offset,
		localDepth: depth,
		entries:    make([]Entry, count, BucketCapacity+1),
	}
	off := bucketHeader
	for i := range b.entries {
		b.entries[i] = Entry{
			ID:         int32(binary.BigEndian.Uint32(buf[off:])),
			HeapOffset: int64(binary.BigEndian.Uint64(buf[off+4:])),
		}
		off += pairSize
	}
	return b, nil
}
