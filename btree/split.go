package btree

import (
	"fmt"
	"slices"

	"AnimeDB/types"
)

// split divides an overflowing page (order keys) and pushes the pivot up,
// repeating while the receiving parent overflows. path holds the offsets of
// the pages above p, root first.
//
// The key at (order-1)/2 becomes the pivot. Keys before it stay in p, keys
// after it move to a new right page whose leftmost child is the pivot's old
// right subtree. The pivot then points at the new right page.
func (t *BTree) split(path []int64, p *Page) error {
	for {
		mid := (t.order - 1) / 2
		pivot := p.keys[mid]

		right := &Page{
			parent:   p.parent,
			leftmost: pivot.Right,
			leaf:     pivot.Right == NoPage,
			keys:     slices.Clone(p.keys[mid+1:]),
		}
		p.keys = slices.Clone(p.keys[:mid])

		if p.offset == RootOffset {
			return t.splitRoot(p, pivot, right)
		}

		if len(path) == 0 {
			return fmt.Errorf("%w: non-root page at %d has no parent on the descent path", types.ErrCorrupt, p.offset)
		}
		parentOff := path[len(path)-1]
		path = path[:len(path)-1]

		right.parent = parentOff
		if err := t.appendPage(right); err != nil {
			return err
		}
		if err := t.writePage(p); err != nil {
			return err
		}
		if err := t.reparentChildren(right); err != nil {
			return err
		}

		pivot.Right = right.offset

		parent, err := t.readPage(parentOff)
		if err != nil {
			return err
		}
		parent.insertSorted(pivot)
		if len(parent.keys) <= t.order-1 {
			return t.writePage(parent)
		}
		p = parent
	}
}

// splitRoot moves both halves of the old root to new pages and rewrites
// offset 0 as a new root holding only the pivot.
func (t *BTree) splitRoot(left *Page, pivot Key, right *Page) error {
	left.parent = RootOffset
	right.parent = RootOffset

	if err := t.appendPage(left); err != nil {
		return err
	}
	if err := t.appendPage(right); err != nil {
		return err
	}
	if err := t.reparentChildren(left); err != nil {
		return err
	}
	if err := t.reparentChildren(right); err != nil {
		return err
	}

	pivot.Right = right.offset
	root := &Page{
		offset:   RootOffset,
		parent:   NoPage,
		leaf:     false,
		leftmost: left.offset,
		keys:     []Key{pivot},
	}
	if err := t.writePage(root); err != nil {
		return err
	}

	t.log.Debugw("root split", "pivot", pivot.ID, "left", left.offset, "right", right.offset)
	return nil
}

// reparentChildren points every child of p back at p's offset.
func (t *BTree) reparentChildren(p *Page) error {
	if p.leaf {
		return nil
	}

	children := make([]int64, 0, len(p.keys)+1)
	children = append(children, p.leftmost)
	for _, k := range p.keys {
		children = append(children, k.Right)
	}

	for _, off := range children {
		if off == NoPage {
			return fmt.Errorf("%w: internal page at %d has a missing child", types.ErrCorrupt, p.offset)
		}
		c, err := t.readPage(off)
		if err != nil {
			return err
		}
		if c.parent == p.offset {
			continue
		}
		c.parent = p.offset
		if err := t.writePage(c); err != nil {
			return err
		}
	}
	return nil
}
