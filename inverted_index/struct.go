// Structure of the inverted index
/*
Token map (memory only, ordered by token)
 └── token -> offset of the first postings entry

Postings file
 - fixed 16 byte entries: heapOffset(8) next(8), next = NoEntry at the tail
 - a token's entries form a singly linked list in insertion order
 - entries are appended and never removed
*/
package invindex

import (
	"sync"

	"AnimeDB/pager"

	"github.com/google/btree"
	"go.uber.org/zap"
)

const (
	EntrySize       = 8 + 8
	NoEntry   int64 = -1

	tokenMapDegree = 16
)

type posting struct {
	heapOffset int64
	next       int64
}

type tokenHead struct {
	token string
	head  int64
}

type InvertedIndex struct {
	pager  *pager.Pager
	tokens *btree.BTreeG[tokenHead]
	log    *zap.SugaredLogger
	mu     sync.RWMutex
}

func lessToken(a, b tokenHead) bool { return a.token < b.token }
