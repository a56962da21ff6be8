package extsort

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"AnimeDB/types"
)

// auxFile is one scratch file. It is written front to back during one pass
// and read front to back during the next.
type auxFile struct {
	path    string
	file    *os.File
	records int
}

func createAux(path string) (*auxFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	return &auxFile{path: path, file: f}, nil
}

// reset empties the file for a new pass as a destination.
func (a *auxFile) reset() error {
	if err := a.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate %s: %w", a.path, err)
	}
	if _, err := a.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	a.records = 0
	return nil
}

func (a *auxFile) writer() *runWriter {
	return &runWriter{aux: a, w: bufio.NewWriter(a.file)}
}

func (a *auxFile) reader() (*runReader, error) {
	if _, err := a.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	rr := &runReader{path: a.path, r: bufio.NewReader(a.file)}
	if err := rr.advance(); err != nil {
		return nil, err
	}
	return rr, nil
}

type runWriter struct {
	aux   *auxFile
	w     *bufio.Writer
	bytes int64
}

func (rw *runWriter) write(it item) error {
	if len(it.payload) > math.MaxInt32 {
		return fmt.Errorf("%w: payload of %d bytes", types.ErrInvalidArgument, len(it.payload))
	}
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(it.payload)))
	if _, err := rw.w.Write(size[:]); err != nil {
		return fmt.Errorf("write %s: %w", rw.aux.path, err)
	}
	if _, err := rw.w.Write(it.payload); err != nil {
		return fmt.Errorf("write %s: %w", rw.aux.path, err)
	}
	rw.aux.records++
	rw.bytes += int64(len(it.payload))
	return nil
}

func (rw *runWriter) flush() error {
	if err := rw.w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", rw.aux.path, err)
	}
	return nil
}

// runReader reads frames with one record of lookahead in head.
type runReader struct {
	path string
	r    *bufio.Reader
	head *item // nil at end of file
}

func (rr *runReader) advance() error {
	var size [4]byte
	if _, err := io.ReadFull(rr.r, size[:]); err != nil {
		if errors.Is(err, io.EOF) {
			rr.head = nil
			return nil
		}
		return fmt.Errorf("%w: %s: short frame header: %v", types.ErrCorrupt, rr.path, err)
	}

	n := int32(binary.BigEndian.Uint32(size[:]))
	if n < 0 {
		return fmt.Errorf("%w: %s: negative frame size %d", types.ErrCorrupt, rr.path, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(rr.r, payload); err != nil {
		return fmt.Errorf("%w: %s: short frame: %v", types.ErrCorrupt, rr.path, err)
	}

	it, err := newItem(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", rr.path, err)
	}
	rr.head = &it
	return nil
}

func newItem(payload []byte) (item, error) {
	rec, err := types.DecodeRecord(payload)
	if err != nil {
		return item{}, err
	}
	return item{key: rec.Episodes, payload: payload}, nil
}

// run is the current run of one source during a merge. A fixed run ends
// after width records; a natural run ends at the first descent.
type run struct {
	src     *runReader
	width   int
	natural bool
	taken   int
	last    int32
}

func newRun(src *runReader, width int, natural bool) *run {
	return &run{src: src, width: width, natural: natural}
}

func (r *run) more() bool {
	if r.src.head == nil {
		return false
	}
	if r.natural {
		return r.taken == 0 || r.src.head.key >= r.last
	}
	return r.taken < r.width
}

func (r *run) key() int32 { return r.src.head.key }

func (r *run) take() (item, error) {
	it := *r.src.head
	r.taken++
	r.last = it.key
	return it, r.src.advance()
}
