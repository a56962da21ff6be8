package types

import (
	"math"
	"slices"
	"time"
)

// Record is one entity stored in the heap file.
// ID is assigned by the engine on insert and is never user supplied.
// Released is stored as whole Unix seconds and decodes in UTC, so sub-second
// precision and the location do not survive a round trip.
type Record struct {
	ID        int32
	Name      string
	Score     float32
	Genres    []string
	Episodes  int32 // sort key used by the external sorter
	Producers []string
	Released  time.Time
}

// Equal reports whether two records hold the same values.
// Scores are compared bit for bit so NaN equals itself.
func (r Record) Equal(o Record) bool {
	return r.ID == o.ID &&
		r.Name == o.Name &&
		math.Float32bits(r.Score) == math.Float32bits(o.Score) &&
		slices.Equal(r.Genres, o.Genres) &&
		r.Episodes == o.Episodes &&
		slices.Equal(r.Producers, o.Producers) &&
		r.Released.Equal(o.Released)
}

// Tokens returns the genre tags followed by the producer tags.
func (r Record) Tokens() []string {
	out := make([]string, 0, len(r.Genres)+len(r.Producers))
	out = append(out, r.Genres...)
	return append(out, r.Producers...)
}

func (r Record) Clone() Record {
	c := r
	c.Genres = slices.Clone(r.Genres)
	c.Producers = slices.Clone(r.Producers)
	return c
}
