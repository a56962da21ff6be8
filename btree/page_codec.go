package btree

import (
	"encoding/binary"
	"fmt"

	"AnimeDB/types"
)

// encodePage serializes p into a page of PageSize(order) bytes
// Format (big-endian):
//   - parent(8) count(1) leaf(1) leftmost(8)
//   - order-1 key slots of id(4) heapOffset(8) right(8); unused slots are zero
func encodePage(p *Page, order int) ([]byte, error) {
	if len(p.keys) > order-1 {
		return nil, fmt.Errorf("%w: page holds %d keys, order %d allows %d",
			types.ErrCorrupt, len(p.keys), order, order-1)
	}

	buf := make([]byte, PageSize(order))
	binary.BigEndian.PutUint64(buf[0:], uint64(p.parent))
	buf[8] = byte(len(p.keys))
	if p.leaf {
		buf[9] = 1
	}
	binary.BigEndian.PutUint64(buf[10:], uint64(p.leftmost))

	off := pageHeaderSize
	for _, k := range p.keys {
		binary.BigEndian.PutUint32(buf[off:], uint32(k.ID))
		binary.BigEndian.PutUint64(buf[off+4:], uint64(k.HeapOffset))
		binary.BigEndian.PutUint64(buf[off+12:], uint64(k.Right))
		off += keySize
	}
	return buf, nil
}

// decodePage deserializes the page stored at offset.
func decodePage(buf []byte, offset int64, order int) (*Page, error) {
	if len(buf) != PageSize(order) {
		return nil, fmt.Errorf("page size mismatch: expected %d, got %d", PageSize(order), len(buf))
	}

	count := int(buf[8])
	if count > order-1 {
		return nil, fmt.Errorf("%w: page at %d reports %d keys, order %d allows %d",
			types.ErrCorrupt, offset, count, order, order-1)
	}

	p := &Page{
		offset:   offset,
		parent:   int64(binary.BigEndian.Uint64(buf[0:])),
		leaf:     buf[9] != 0,
		leftmost: int64(binary.BigEndian.Uint64(buf[10:])),
		keys:     make([]Key, count, order),
	}

	off := pageHeaderSize
	for i := range p.keys {
		p.keys[i] = Key{
			ID:         int32(binary.BigEndian.Uint32(buf[off:])),
			HeapOffset: int64(binary.BigEndian.Uint64(buf[off+4:])),
			Right:      int64(binary.BigEndian.Uint64(buf[off+12:])),
		}
		off += keySize
	}
	return p, nil
}
