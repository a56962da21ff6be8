package extsort

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	heapfile "AnimeDB/heapfile_manager"
	"AnimeDB/logging"
	"AnimeDB/types"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sorter struct {
	cfg   Config
	heap  Heap
	dir   string
	aux   [auxFiles]*auxFile
	stats Stats
	log   *zap.SugaredLogger
}

// Sort rewrites heap so its valid records appear in non-decreasing episode
// order. Deleted slots are dropped. The scratch directory is removed only
// when the sort succeeds; on failure it is left behind and its path logged.
func Sort(heap Heap, cfg Config) (Stats, error) {
	if cfg.Limit < 1 {
		return Stats{}, types.WrapOp(types.OpSort, cfg.Limit,
			fmt.Errorf("%w: batch size must be at least 1", types.ErrInvalidArgument))
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	s := &sorter{
		cfg:  cfg,
		heap: heap,
		dir:  filepath.Join(cfg.TempDir, "sort-"+uuid.NewString()),
		log:  logging.OrNop(cfg.Log),
	}

	start := time.Now()
	s.log.Infow("sort started", "limit", cfg.Limit, "optimized", cfg.Optimized, "scratch", s.dir)

	result, err := s.run()
	s.closeAux()
	if err != nil {
		s.log.Errorw("sort failed", "error", err, "scratch", s.dir)
		return s.stats, types.WrapOp(types.OpSort, cfg.Limit, err)
	}

	if err := os.RemoveAll(s.dir); err != nil {
		s.log.Warnw("failed to remove sort scratch directory", "dir", s.dir, "error", err)
	}

	s.log.Infow("sort finished",
		"records", humanize.Comma(int64(s.stats.Records)),
		"bytes", humanize.IBytes(uint64(s.stats.Bytes)),
		"initial_runs", s.stats.InitialRuns,
		"passes", s.stats.Passes,
		"result", result,
		"elapsed", time.Since(start))
	return s.stats, nil
}

func (s *sorter) run() (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	for i := range s.aux {
		a, err := createAux(filepath.Join(s.dir, fmt.Sprintf("tmp%d", i)))
		if err != nil {
			return "", err
		}
		s.aux[i] = a
	}

	if err := s.distribute(); err != nil {
		return "", fmt.Errorf("distribution: %w", err)
	}

	result, err := s.merge()
	if err != nil {
		return "", err
	}

	if err := s.copyBack(result); err != nil {
		return "", fmt.Errorf("copy back: %w", err)
	}
	return result.path, nil
}

// distribute reads Limit records at a time, sorts each batch in memory and
// writes it as one run, alternating between tmp0 and tmp1.
func (s *sorter) distribute() error {
	writers := [2]*runWriter{s.aux[0].writer(), s.aux[1].writer()}
	batch := make([]item, 0, min(s.cfg.Limit, 1<<16))
	dest := 0

	spill := func() error {
		if len(batch) == 0 {
			return nil
		}
		quickSort(batch)
		for _, it := range batch {
			if err := writers[dest].write(it); err != nil {
				return err
			}
		}
		s.stats.InitialRuns++
		dest ^= 1
		batch = batch[:0]
		return nil
	}

	err := s.heap.Scan(func(e heapfile.Entry) error {
		payload, err := types.EncodeRecord(e.Record)
		if err != nil {
			return fmt.Errorf("record %d: %w", e.Record.ID, err)
		}
		batch = append(batch, item{key: e.Record.Episodes, payload: payload})
		s.stats.Records++
		if len(batch) == s.cfg.Limit {
			return spill()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := spill(); err != nil {
		return err
	}

	for _, w := range writers {
		if err := w.flush(); err != nil {
			return err
		}
	}
	s.log.Debugw("distributed runs", "records", s.stats.Records, "runs", s.stats.InitialRuns)
	return nil
}

// merge runs passes until a single file holds every record and returns it.
func (s *sorter) merge() (*auxFile, error) {
	if s.stats.InitialRuns <= 1 {
		return s.aux[0], nil
	}

	src := [2]*auxFile{s.aux[0], s.aux[1]}
	dst := [2]*auxFile{s.aux[2], s.aux[3]}
	width := s.cfg.Limit

	for {
		if err := s.mergePass(src, dst, width); err != nil {
			return nil, fmt.Errorf("merge pass %d: %w", s.stats.Passes+1, err)
		}
		s.stats.Passes++

		s.log.Debugw("merge pass done",
			"pass", s.stats.Passes, "width", width,
			"out0", dst[0].records, "out1", dst[1].records)

		switch {
		case dst[1].records == 0:
			return dst[0], nil
		case dst[0].records == 0:
			return dst[1], nil
		}

		if width <= math.MaxInt/2 {
			width *= 2
		}
		src, dst = dst, src
	}
}

// mergePass merges run pairs from the two sources, writing each merged run
// to the destinations in turn.
func (s *sorter) mergePass(src, dst [2]*auxFile, width int) error {
	a, err := src[0].reader()
	if err != nil {
		return err
	}
	b, err := src[1].reader()
	if err != nil {
		return err
	}
	for _, d := range dst {
		if err := d.reset(); err != nil {
			return err
		}
	}
	writers := [2]*runWriter{dst[0].writer(), dst[1].writer()}

	out := 0
	for a.head != nil || b.head != nil {
		ra := newRun(a, width, s.cfg.Optimized)
		rb := newRun(b, width, s.cfg.Optimized)
		if err := mergeRuns(ra, rb, writers[out]); err != nil {
			return err
		}
		out ^= 1
	}

	for _, w := range writers {
		if err := w.flush(); err != nil {
			return err
		}
	}

	total := dst[0].records + dst[1].records
	if total != s.stats.Records {
		return fmt.Errorf("%w: pass wrote %d records, expected %d", types.ErrCorrupt, total, s.stats.Records)
	}
	return nil
}

// mergeRuns writes the smaller head of the two runs until both are spent.
// Ties go to a.
func mergeRuns(a, b *run, w *runWriter) error {
	for a.more() && b.more() {
		next := a
		if b.key() < a.key() {
			next = b
		}
		it, err := next.take()
		if err != nil {
			return err
		}
		if err := w.write(it); err != nil {
			return err
		}
	}
	for _, r := range []*run{a, b} {
		for r.more() {
			it, err := r.take()
			if err != nil {
				return err
			}
			if err := w.write(it); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyBack replaces the heap's slots with the records of result, in order.
func (s *sorter) copyBack(result *auxFile) error {
	rr, err := result.reader()
	if err != nil {
		return err
	}
	if err := s.heap.Truncate(); err != nil {
		return err
	}

	copied := 0
	for rr.head != nil {
		if _, err := s.heap.AppendRaw(rr.head.payload); err != nil {
			return err
		}
		copied++
		s.stats.Bytes += int64(len(rr.head.payload))
		if err := rr.advance(); err != nil {
			return err
		}
	}
	if copied != s.stats.Records {
		return fmt.Errorf("%w: copied %d records back, expected %d", types.ErrCorrupt, copied, s.stats.Records)
	}
	return nil
}

func (s *sorter) closeAux() {
	for _, a := range s.aux {
		if a != nil && a.file != nil {
			a.file.Close()
		}
	}
}
