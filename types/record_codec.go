package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

/*
Record payload layout (big-endian), fields in a fixed order:

	id        int32
	name      uint16 len + bytes
	score     float32 bits
	genres    uint16 count + (uint16 len + bytes) per tag
	episodes  int32
	producers uint16 count + (uint16 len + bytes) per tag
	released  int64 unix seconds (UTC)

The decoder reads fields in sequence and ignores trailing bytes, so a payload
rewritten in place inside a larger slot still decodes.
*/

const maxStringLen = math.MaxUint16

// EncodeRecord serializes r into its payload bytes.
func EncodeRecord(r Record) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(EncodedSizeHint(r))

	var scratch [8]byte

	binary.BigEndian.PutUint32(scratch[:4], uint32(r.ID))
	buf.Write(scratch[:4])

	if err := writeString(buf, r.Name); err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}

	binary.BigEndian.PutUint32(scratch[:4], math.Float32bits(r.Score))
	buf.Write(scratch[:4])

	if err := writeStrings(buf, r.Genres); err != nil {
		return nil, fmt.Errorf("genres: %w", err)
	}

	binary.BigEndian.PutUint32(scratch[:4], uint32(r.Episodes))
	buf.Write(scratch[:4])

	if err := writeStrings(buf, r.Producers); err != nil {
		return nil, fmt.Errorf("producers: %w", err)
	}

	binary.BigEndian.PutUint64(scratch[:], uint64(r.Released.Unix()))
	buf.Write(scratch[:])

	return buf.Bytes(), nil
}

// DecodeRecord parses a payload produced by EncodeRecord.
func DecodeRecord(b []byte) (Record, error) {
	d := decoder{buf: b}
	var r Record

	r.ID = int32(d.uint32())
	r.Name = d.string()
	r.Score = math.Float32frombits(d.uint32())
	r.Genres = d.strings()
	r.Episodes = int32(d.uint32())
	r.Producers = d.strings()
	r.Released = time.Unix(int64(d.uint64()), 0).UTC()

	if d.err != nil {
		return Record{}, fmt.Errorf("decode record: %w", d.err)
	}
	return r, nil
}

// EncodedSizeHint is the exact payload length EncodeRecord produces for r.
func EncodedSizeHint(r Record) int {
	n := 4 + 2 + len(r.Name) + 4 + 2 + 4 + 2 + 8
	for _, g := range r.Genres {
		n += 2 + len(g)
	}
	for _, p := range r.Producers {
		n += 2 + len(p)
	}
	return n
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > maxStringLen {
		return fmt.Errorf("%w: string of %d bytes exceeds %d", ErrInvalidArgument, len(s), maxStringLen)
	}
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(s)))
	buf.Write(l[:])
	buf.WriteString(s)
	return nil
}

func writeStrings(buf *bytes.Buffer, ss []string) error {
	if len(ss) > maxStringLen {
		return fmt.Errorf("%w: %d tags exceeds %d", ErrInvalidArgument, len(ss), maxStringLen)
	}
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(ss)))
	buf.Write(l[:])
	for _, s := range ss {
		if err := writeString(buf, s); err != nil {
			return err
		}
	}
	return nil
}

// decoder keeps the first error and returns zero values after it.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.buf) {
		d.err = fmt.Errorf("%w: need %d bytes at %d, payload is %d", ErrCorrupt, n, d.off, len(d.buf))
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) uint16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (d *decoder) uint32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (d *decoder) uint64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (d *decoder) string() string {
	n := int(d.uint16())
	b := d.take(n)
	if b == nil {
		return ""
	}
	return string(b)
}

func (d *decoder) strings() []string {
	n := int(d.uint16())
	if d.err != nil {
		return nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.string())
	}
	return out
}
