package btree

import (
	"fmt"

	"AnimeDB/types"
)

// Delete tombstones id: its key stays in place with a NoOffset heap offset so
// Search reports it absent. Pages are never merged. ok is false when id is not
// in the tree or already tombstoned.
func (t *BTree) Delete(id int32) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	off := RootOffset
	for depth := 0; depth < maxDepth; depth++ {
		p, err := t.readPage(off)
		if err != nil {
			return false, types.WrapOp(types.OpDelete, id, err)
		}

		idx, match := p.locate(id)
		if match >= 0 {
			if p.keys[match].HeapOffset == NoOffset {
				return false, nil
			}
			p.keys[match].HeapOffset = NoOffset
			if err := t.writePage(p); err != nil {
				return false, types.WrapOp(types.OpDelete, id, err)
			}
			return true, nil
		}
		if p.leaf {
			return false, nil
		}
		if off = p.child(idx); off == NoPage {
			return false, types.WrapOp(types.OpDelete, id,
				fmt.Errorf("%w: internal page at %d has no child at %d", types.ErrCorrupt, p.offset, idx))
		}
	}
	return false, types.WrapOp(types.OpDelete, id,
		fmt.Errorf("%w: descent deeper than %d pages", types.ErrCorrupt, maxDepth))
}
