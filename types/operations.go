package types

type OperationType byte

const (
	OpGet OperationType = iota + 1
	OpInsert
	OpUpdate
	OpDelete
	OpSort
	OpTreeSearch
	OpHashSearch
	OpTokenSearch
	OpLoad
	OpRebuild
)

func (op OperationType) String() string {
	switch op {
	case OpGet:
		return "get"
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpSort:
		return "sort"
	case OpTreeSearch:
		return "tree search"
	case OpHashSearch:
		return "hash search"
	case OpTokenSearch:
		return "token search"
	case OpLoad:
		return "load"
	case OpRebuild:
		return "rebuild indexes"
	}
	return "unknown"
}
