package btree

import (
	"fmt"

	"AnimeDB/types"
)

// maxDepth bounds a descent so a corrupt child pointer cycle cannot loop forever.
const maxDepth = 64

// locate scans p's keys linearly. idx is the position of the first key whose
// id exceeds id; match is the index of an equal key, or -1.
func (p *Page) locate(id int32) (idx, match int) {
	match = -1
	for idx < len(p.keys) && p.keys[idx].ID <= id {
		if p.keys[idx].ID == id {
			match = idx
		}
		idx++
	}
	return idx, match
}

// child returns the subtree to descend into for a key that sorts before
// position idx: the predecessor key's right child, or the leftmost child.
func (p *Page) child(idx int) int64 {
	if idx == 0 {
		return p.leftmost
	}
	return p.keys[idx-1].Right
}

// Search returns the heap offset stored for id.
func (t *BTree) Search(id int32) (int64, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	off := RootOffset
	for depth := 0; depth < maxDepth; depth++ {
		p, err := t.readPage(off)
		if err != nil {
			return NoOffset, false, types.WrapOp(types.OpTreeSearch, id, err)
		}

		idx, match := p.locate(id)
		if match >= 0 {
			heapOff := p.keys[match].HeapOffset
			return heapOff, heapOff != NoOffset, nil
		}
		if p.leaf {
			return NoOffset, false, nil
		}

		next := p.child(idx)
		if next == NoPage {
			return NoOffset, false, types.WrapOp(types.OpTreeSearch, id,
				fmt.Errorf("%w: internal page at %d has no child at %d", types.ErrCorrupt, off, idx))
		}
		off = next
	}
	return NoOffset, false, types.WrapOp(types.OpTreeSearch, id,
		fmt.Errorf("%w: descent deeper than %d pages", types.ErrCorrupt, maxDepth))
}

// Height is the number of pages on a root-to-leaf path.
func (t *BTree) Height() (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	off := RootOffset
	for h := 1; h <= maxDepth; h++ {
		p, err := t.readPage(off)
		if err != nil {
			return 0, err
		}
		if p.leaf {
			return h, nil
		}
		off = p.leftmost
	}
	return 0, fmt.Errorf("%w: descent deeper than %d pages", types.ErrCorrupt, maxDepth)
}
