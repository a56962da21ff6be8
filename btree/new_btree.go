package btree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"AnimeDB/logging"
	"AnimeDB/pager"
	"AnimeDB/types"

	"go.uber.org/zap"
)

// Entry is one (id, heap offset) pair fed to Build.
type Entry struct {
	ID         int32
	HeapOffset int64
}

// Open opens or creates the tree file at path. A new file gets an empty root
// leaf at offset 0.
func Open(path string, order int, cacheCost int64, log *zap.SugaredLogger) (*BTree, error) {
	if err := checkOrder(order); err != nil {
		return nil, err
	}

	p, err := pager.Open(path, PageSize(order), cacheCost)
	if err != nil {
		return nil, fmt.Errorf("failed to open tree file: %w", err)
	}

	t := &BTree{
		order: order,
		pager: p,
		log:   logging.OrNop(log).With("tree", path),
	}

	if p.TotalPages() == 0 {
		if err := t.writeEmptyRoot(); err != nil {
			p.Close()
			return nil, err
		}
	} else if _, err := t.readPage(RootOffset); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to read root page: %w", err)
	}
	return t, nil
}

// Create opens the tree file at path after discarding whatever it held, so a
// file written with another order is replaced by an empty root leaf.
func Create(path string, order int, cacheCost int64, log *zap.SugaredLogger) (*BTree, error) {
	if err := checkOrder(order); err != nil {
		return nil, err
	}
	if err := os.Truncate(path, 0); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to truncate tree file: %w", err)
	}
	return Open(path, order, cacheCost, log)
}

func checkOrder(order int) error {
	if order < MinOrder || order > MaxOrder {
		return fmt.Errorf("%w: b-tree order %d outside [%d, %d]",
			types.ErrInvalidArgument, order, MinOrder, MaxOrder)
	}
	return nil
}

// Reset discards every page and leaves an empty root.
func (t *BTree) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.pager.Truncate(); err != nil {
		return err
	}
	return t.writeEmptyRoot()
}

// Build resets the tree and inserts every entry.
func (t *BTree) Build(entries []Entry) error {
	if err := t.Reset(); err != nil {
		return fmt.Errorf("reset tree: %w", err)
	}
	for _, e := range entries {
		if err := t.Insert(e.ID, e.HeapOffset); err != nil {
			return err
		}
	}
	t.log.Infow("built tree", "keys", len(entries), "pages", t.pager.TotalPages())
	return nil
}

func (t *BTree) Order() int { return t.order }

func (t *BTree) TotalPages() int64 { return t.pager.TotalPages() }

// CacheStats reports page cache hits and misses for the tree file.
func (t *BTree) CacheStats() (hits, misses uint64) { return t.pager.CacheStats() }

func (t *BTree) Sync() error { return t.pager.Sync() }

func (t *BTree) Close() error { return t.pager.Close() }

func (t *BTree) writeEmptyRoot() error {
	root := newLeaf(NoPage)
	buf, err := encodePage(root, t.order)
	if err != nil {
		return err
	}
	off, err := t.pager.AppendPage(buf)
	if err != nil {
		return fmt.Errorf("failed to write root page: %w", err)
	}
	if off != RootOffset {
		return fmt.Errorf("%w: root written at %d", types.ErrCorrupt, off)
	}
	return nil
}

func (t *BTree) readPage(offset int64) (*Page, error) {
	buf, err := t.pager.ReadPage(offset)
	if err != nil {
		return nil, err
	}
	return decodePage(buf, offset, t.order)
}

func (t *BTree) writePage(p *Page) error {
	buf, err := encodePage(p, t.order)
	if err != nil {
		return err
	}
	return t.pager.WritePage(p.offset, buf)
}

// appendPage writes p at end of file and records its new offset in p.
func (t *BTree) appendPage(p *Page) error {
	buf, err := encodePage(p, t.order)
	if err != nil {
		return err
	}
	off, err := t.pager.AppendPage(buf)
	if err != nil {
		return err
	}
	p.offset = off
	return nil
}
