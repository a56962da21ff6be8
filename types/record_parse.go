package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the text form of Record.Released.
const DateLayout = "2006-01-02"

// UnknownScore marks a record whose score was not given.
const UnknownScore float32 = -1

// ParseRecordFields builds a record from its text fields in stored order:
// name, score, genres, episodes, producers, release date. List fields are
// comma separated. An empty or "Unknown" score becomes UnknownScore, an empty
// episode count zero and an empty date the zero time.
func ParseRecordFields(id int32, fields []string) (Record, error) {
	if len(fields) != 6 {
		return Record{}, fmt.Errorf("%w: record needs 6 fields, got %d", ErrInvalidArgument, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	r := Record{
		ID:        id,
		Name:      fields[0],
		Score:     UnknownScore,
		Genres:    splitList(fields[2]),
		Producers: splitList(fields[4]),
	}

	if s := fields[1]; s != "" && !strings.EqualFold(s, "unknown") {
		score, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Record{}, fmt.Errorf("%w: score %q", ErrInvalidArgument, s)
		}
		r.Score = float32(score)
	}

	if s := fields[3]; s != "" && !strings.EqualFold(s, "unknown") {
		eps, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Record{}, fmt.Errorf("%w: episodes %q", ErrInvalidArgument, s)
		}
		r.Episodes = int32(eps)
	}

	if s := fields[5]; s != "" {
		released, err := time.Parse(DateLayout, s)
		if err != nil {
			return Record{}, fmt.Errorf("%w: release date %q", ErrInvalidArgument, s)
		}
		r.Released = released
	}
	return r, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
