// Tree file inspection for debugging.
// Use InspectTreeFile(path, order) to print a human-readable dump of a tree file.

package btree

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
)

// InspectTreeFile opens a tree file and prints its structure to stdout.
func InspectTreeFile(path string, order int) error {
	return InspectTreeFileTo(os.Stdout, path, order)
}

// InspectTreeFileTo writes the pages of the tree file to w breadth first,
// one level at a time. Tombstoned keys print their heap offset as "deleted".
func InspectTreeFileTo(w io.Writer, path string, order int) error {
	t, err := Open(path, order, 0, nil)
	if err != nil {
		return err
	}
	defer t.Close()

	return t.Dump(w)
}

// Dump writes every reachable page of t to w, level by level.
func (t *BTree) Dump(w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p := func(format string, args ...interface{}) { fmt.Fprintf(w, format, args...) }

	size := t.pager.Size()
	p("Tree file: %s\n", t.pager.Path())
	p("  order=%d page=%d bytes pages=%d size=%s\n",
		t.order, PageSize(t.order), t.pager.TotalPages(), humanize.IBytes(uint64(size)))

	queue := []int64{RootOffset}
	for level := 0; len(queue) > 0; level++ {
		if level >= maxDepth {
			return fmt.Errorf("tree deeper than %d levels", maxDepth)
		}
		p("  Level %d:\n", level)

		n := len(queue)
		for _, off := range queue[:n] {
			page, err := t.readPage(off)
			if err != nil {
				p("    [page %d] read error: %v\n", off, err)
				continue
			}

			kind := "INTERNAL"
			if page.leaf {
				kind = "LEAF"
			}
			p("    [page %d] %s parent=%d keys=%d leftmost=%d\n",
				off, kind, page.parent, len(page.keys), page.leftmost)

			for _, k := range page.keys {
				heap := fmt.Sprintf("%d", k.HeapOffset)
				if k.HeapOffset == NoOffset {
					heap = "deleted"
				}
				p("      id=%d -> heap %s right=%d\n", k.ID, heap, k.Right)
			}

			if !page.leaf {
				queue = append(queue, page.leftmost)
				for _, k := range page.keys {
					queue = append(queue, k.Right)
				}
			}
		}
		queue = queue[n:]
	}
	return nil
}
