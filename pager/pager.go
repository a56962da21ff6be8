// Package pager stores fixed-size pages in a single file, addressed by byte offset.
// B-tree pages, hash buckets and postings entries all live in pager-managed files.
package pager

import (
	"fmt"
	"os"
	"sync"

	"AnimeDB/types"
)

// Pager implements page I/O for one file. Pages start at multiples of pageSize.
type Pager struct {
	file     *os.File
	filePath string
	pageSize int
	size     int64 // current file length in bytes
	cache    *Cache
	mu       sync.RWMutex
}

// Open opens or creates the page file at path. cacheCost is the read cache
// budget in bytes; zero or less disables caching.
func Open(path string, pageSize int, cacheCost int64) (*Pager, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: page size %d", types.ErrInvalidArgument, pageSize)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open page file %s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat page file: %w", err)
	}
	if stat.Size()%int64(pageSize) != 0 {
		file.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes, not a multiple of page size %d",
			types.ErrCorrupt, path, stat.Size(), pageSize)
	}

	cache, err := NewCache(cacheCost, pageSize)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Pager{
		file:     file,
		filePath: path,
		pageSize: pageSize,
		size:     stat.Size(),
		cache:    cache,
	}, nil
}

func (p *Pager) PageSize() int { return p.pageSize }

func (p *Pager) Path() string { return p.filePath }

// ReadPage returns a copy of the page starting at offset.
func (p *Pager) ReadPage(offset int64) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkOffset(offset); err != nil {
		return nil, err
	}

	if data, ok := p.cache.Get(offset); ok {
		return data, nil
	}

	page := make([]byte, p.pageSize)
	if _, err := p.file.ReadAt(page, offset); err != nil {
		return nil, fmt.Errorf("failed to read page at %d: %w", offset, err)
	}
	p.cache.Put(offset, page)
	return page, nil
}

// WritePage overwrites the page starting at offset.
func (p *Pager) WritePage(offset int64, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return fmt.Errorf("pager file is closed")
	}
	if len(data) != p.pageSize {
		return fmt.Errorf("data size %d does not match page size %d", len(data), p.pageSize)
	}
	if err := p.checkOffset(offset); err != nil {
		return err
	}

	if _, err := p.file.WriteAt(data, offset); err != nil {
		p.cache.Invalidate(offset)
		return fmt.Errorf("failed to write page at %d: %w", offset, err)
	}
	p.cache.Put(offset, data)
	return nil
}

// AppendPage writes data as a new page at end of file.
func (p *Pager) AppendPage(data []byte) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return 0, fmt.Errorf("pager file is closed")
	}
	if len(data) != p.pageSize {
		return 0, fmt.Errorf("data size %d does not match page size %d", len(data), p.pageSize)
	}

	offset := p.size
	if _, err := p.file.WriteAt(data, offset); err != nil {
		return 0, fmt.Errorf("failed to append page at %d: %w", offset, err)
	}
	p.size += int64(p.pageSize)
	p.cache.Put(offset, data)
	return offset, nil
}

// Truncate drops every page.
func (p *Pager) Truncate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return fmt.Errorf("pager file is closed")
	}
	if err := p.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", p.filePath, err)
	}
	p.size = 0
	p.cache.Clear()
	return nil
}

// Size is the file length in bytes.
func (p *Pager) Size() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.size
}

func (p *Pager) TotalPages() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.size / int64(p.pageSize)
}

// CacheStats reports read cache hits and misses.
func (p *Pager) CacheStats() (hits, misses uint64) {
	return p.cache.Stats()
}

// Sync flushes all pending writes to disk
func (p *Pager) Sync() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return fmt.Errorf("pager file is closed")
	}
	return p.file.Sync()
}

// Close syncs and closes the file. Closing twice is a no-op.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return nil
	}
	p.cache.Close()

	err := p.file.Sync()
	if err != nil {
		p.file.Close()
		p.file = nil
		return fmt.Errorf("failed to sync before close: %w", err)
	}

	err = p.file.Close()
	p.file = nil
	return err
}

func (p *Pager) checkOffset(offset int64) error {
	if p.file == nil {
		return fmt.Errorf("pager file is closed")
	}
	if offset < 0 || offset%int64(p.pageSize) != 0 || offset+int64(p.pageSize) > p.size {
		return fmt.Errorf("%w: page offset %d outside %s (%d bytes, page size %d)",
			types.ErrCorrupt, offset, p.filePath, p.size, p.pageSize)
	}
	return nil
}
