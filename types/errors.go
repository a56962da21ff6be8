package types

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt marks a structural invariant violation in one of the files
	// (impossible element count, slot running past EOF, directory index out of range).
	// The file cannot be trusted after it is returned.
	ErrCorrupt = errors.New("structural invariant violated")

	// ErrIndexInconsistent is returned once a heap mutation succeeded but an index
	// could not mirror it. The engine refuses work until the indexes are rebuilt.
	ErrIndexInconsistent = errors.New("indexes out of sync with heap file")

	ErrInvalidArgument = errors.New("invalid argument")
)

// OpError tags an I/O failure with the operation and key that were attempted.
type OpError struct {
	Op  OperationType
	Key any
	Err error
}

func (e *OpError) Error() string {
	if e.Key == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %v: %v", e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// WrapOp returns nil for a nil err, otherwise an *OpError.
func WrapOp(op OperationType, key any, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Key: key, Err: err}
}
