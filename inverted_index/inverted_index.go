package invindex

import (
	"encoding/binary"
	"fmt"
	"strings"

	"AnimeDB/logging"
	"AnimeDB/pager"
	"AnimeDB/types"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/google/btree"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Normalize trims surrounding whitespace and puts token in NFC form so the
// same tag typed with different code point sequences maps to one list.
func Normalize(token string) string {
	return norm.NFC.String(strings.TrimSpace(token))
}

// Open opens the postings file at path and empties it. The token map is not
// persisted, so an old postings file cannot be reached and is discarded.
func Open(path string, cacheCost int64, log *zap.SugaredLogger) (*InvertedIndex, error) {
	p, err := pager.Open(path, EntrySize, cacheCost)
	if err != nil {
		return nil, fmt.Errorf("failed to open postings file: %w", err)
	}
	if err := p.Truncate(); err != nil {
		p.Close()
		return nil, err
	}

	return &InvertedIndex{
		pager:  p,
		tokens: btree.NewG(tokenMapDegree, lessToken),
		log:    logging.OrNop(log).With("postings", path),
	}, nil
}

// Reset forgets every token and empties the postings file.
func (ix *InvertedIndex) Reset() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.pager.Truncate(); err != nil {
		return err
	}
	ix.tokens.Clear(false)
	return nil
}

// Insert appends heapOffset to the list of every genre and producer of rec.
// A tag repeated within one record is posted once.
func (ix *InvertedIndex) Insert(rec types.Record, heapOffset int64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	posted := make(map[string]struct{})
	for _, raw := range rec.Tokens() {
		token := Normalize(raw)
		if token == "" {
			continue
		}
		if _, dup := posted[token]; dup {
			continue
		}
		posted[token] = struct{}{}

		if err := ix.appendToken(token, heapOffset); err != nil {
			return types.WrapOp(types.OpInsert, rec.ID, fmt.Errorf("postings for %q: %w", token, err))
		}
	}
	return nil
}

// Append adds heapOffset at the tail of token's list, creating the list when
// the token is new.
func (ix *InvertedIndex) Append(token string, heapOffset int64) error {
	token = Normalize(token)
	if token == "" {
		return fmt.Errorf("%w: empty token", types.ErrInvalidArgument)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.appendToken(token, heapOffset)
}

func (ix *InvertedIndex) appendToken(token string, heapOffset int64) error {
	th, seen := ix.tokens.Get(tokenHead{token: token})
	if !seen {
		off, err := ix.appendEntry(posting{heapOffset: heapOffset, next: NoEntry})
		if err != nil {
			return err
		}
		ix.tokens.ReplaceOrInsert(tokenHead{token: token, head: off})
		return nil
	}

	tailOff := th.head
	var tail posting
	err := ix.walk(th.head, func(off int64, p posting) {
		tailOff, tail = off, p
	})
	if err != nil {
		return err
	}

	off, err := ix.appendEntry(posting{heapOffset: heapOffset, next: NoEntry})
	if err != nil {
		return err
	}
	tail.next = off
	return ix.writeEntry(tailOff, tail)
}

// Get returns the heap offsets in token's list, oldest first. An unknown
// token yields an empty list.
func (ix *InvertedIndex) Get(token string) ([]int64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	offsets, err := ix.get(Normalize(token))
	if err != nil {
		return nil, types.WrapOp(types.OpTokenSearch, token, err)
	}
	return offsets, nil
}

func (ix *InvertedIndex) get(token string) ([]int64, error) {
	th, ok := ix.tokens.Get(tokenHead{token: token})
	if !ok {
		return nil, nil
	}

	var offsets []int64
	err := ix.walk(th.head, func(_ int64, p posting) {
		offsets = append(offsets, p.heapOffset)
	})
	return offsets, err
}

// GetAnd returns the offsets present in both lists, in a's list order and
// without repeats.
func (ix *InvertedIndex) GetAnd(a, b string) ([]int64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	key := a + " & " + b
	left, err := ix.get(Normalize(a))
	if err != nil {
		return nil, types.WrapOp(types.OpTokenSearch, key, err)
	}
	if len(left) == 0 {
		return nil, nil
	}
	right, err := ix.get(Normalize(b))
	if err != nil {
		return nil, types.WrapOp(types.OpTokenSearch, key, err)
	}

	members := roaring64.New()
	for _, off := range right {
		members.Add(uint64(off))
	}

	emitted := roaring64.New()
	var out []int64
	for _, off := range left {
		u := uint64(off)
		if members.Contains(u) && emitted.CheckedAdd(u) {
			out = append(out, off)
		}
	}
	return out, nil
}

// Tokens lists the known tokens in ascending order.
func (ix *InvertedIndex) Tokens() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]string, 0, ix.tokens.Len())
	ix.tokens.Ascend(func(th tokenHead) bool {
		out = append(out, th.token)
		return true
	})
	return out
}

func (ix *InvertedIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tokens.Len()
}

// Entries is the number of postings in the file.
func (ix *InvertedIndex) Entries() int64 { return ix.pager.TotalPages() }

func (ix *InvertedIndex) CacheStats() (hits, misses uint64) { return ix.pager.CacheStats() }

func (ix *InvertedIndex) Sync() error { return ix.pager.Sync() }

func (ix *InvertedIndex) Close() error { return ix.pager.Close() }

// walk visits every entry of the list starting at head. A list longer than
// the file has entries can only come from a next pointer cycle.
func (ix *InvertedIndex) walk(head int64, fn func(off int64, p posting)) error {
	limit := ix.pager.TotalPages()
	off := head
	for steps := int64(0); off != NoEntry; steps++ {
		if steps > limit {
			return fmt.Errorf("%w: postings list at %d loops", types.ErrCorrupt, head)
		}
		p, err := ix.readEntry(off)
		if err != nil {
			return err
		}
		fn(off, p)
		off = p.next
	}
	return nil
}

func (ix *InvertedIndex) readEntry(off int64) (posting, error) {
	buf, err := ix.pager.ReadPage(off)
	if err != nil {
		return posting{}, err
	}
	return posting{
		heapOffset: int64(binary.BigEndian.Uint64(buf[0:])),
		next:       int64(binary.BigEndian.Uint64(buf[8:])),
	}, nil
}

func (ix *InvertedIndex) writeEntry(off int64, p posting) error {
	return ix.pager.WritePage(off, encodeEntry(p))
}

func (ix *InvertedIndex) appendEntry(p posting) (int64, error) {
	return ix.pager.AppendPage(encodeEntry(p))
}

func encodeEntry(p posting) []byte {
	buf := make([]byte, EntrySize)
	binary.BigEndian.PutUint64(buf[0:], uint64(p.heapOffset))
	binary.BigEndian.PutUint64(buf[8:], uint64(p.next))
	return buf
}
