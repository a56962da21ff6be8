// Structure of the B-tree index file
/*
Tree (root always at offset 0)
 ├── Internal page: leftmost child + keys, each key carrying the child to its right
 │      └── Child pages ...
 │             └── Leaf pages (children are NoPage)

- keys: sorted ascending by record id, at most order-1 per page
- key i's Right subtree holds ids > key i and < key i+1 (unbounded for the last key)
- leftmost subtree holds ids < key 0
- every key maps a record id to the heap offset of its slot
*/
package btree

import (
	"sync"

	"AnimeDB/pager"

	"go.uber.org/zap"
)

const (
	RootOffset int64 = 0
	NoPage     int64 = -1 // no parent / no child
	NoOffset   int64 = -1 // tombstoned key, or not found

	MinOrder = 3
	MaxOrder = 256 // element count is stored in one byte

	pageHeaderSize = 8 + 1 + 1 + 8 // parent, count, leaf, leftmost
	keySize        = 4 + 8 + 8     // id, heap offset, right child
)

type Key struct {
	ID         int32
	HeapOffset int64
	Right      int64
}

type Page struct {
	offset   int64
	parent   int64
	leaf     bool
	leftmost int64
	keys     []Key
}

type BTree struct {
	order int
	pager *pager.Pager
	log   *zap.SugaredLogger
	mu    sync.RWMutex
}

// PageSize is the on-disk size of one page for the given order.
func PageSize(order int) int {
	return pageHeaderSize + keySize*(order-1)
}

func newLeaf(parent int64) *Page {
	return &Page{parent: parent, leaf: true, leftmost: NoPage}
}
