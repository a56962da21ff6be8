package btree

import (
	"fmt"
	"slices"

	"AnimeDB/types"
)

// Insert maps id to heapOffset. An id already in the tree has its offset
// overwritten, which is how a relocated record is re-pointed.
func (t *BTree) Insert(id int32, heapOffset int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.insert(id, heapOffset); err != nil {
		return types.WrapOp(types.OpInsert, id, fmt.Errorf("tree: %w", err))
	}
	return nil
}

func (t *BTree) insert(id int32, heapOffset int64) error {
	// offsets of the internal pages above the current one, root first
	var path []int64

	off := RootOffset
	for depth := 0; ; depth++ {
		if depth >= maxDepth {
			return fmt.Errorf("%w: descent deeper than %d pages", types.ErrCorrupt, maxDepth)
		}

		p, err := t.readPage(off)
		if err != nil {
			return err
		}

		idx, match := p.locate(id)
		if match >= 0 {
			p.keys[match].HeapOffset = heapOffset
			return t.writePage(p)
		}

		if p.leaf {
			p.keys = slices.Insert(p.keys, idx, Key{ID: id, HeapOffset: heapOffset, Right: NoPage})
			if len(p.keys) <= t.order-1 {
				return t.writePage(p)
			}
			return t.split(path, p)
		}

		next := p.child(idx)
		if next == NoPage {
			return fmt.Errorf("%w: internal page at %d has no child at %d", types.ErrCorrupt, off, idx)
		}
		path = append(path, off)
		off = next
	}
}

// insertSorted places k in p's key list by id.
func (p *Page) insertSorted(k Key) {
	idx, _ := p.locate(k.ID)
	p.keys = slices.Insert(p.keys, idx, k)
}
