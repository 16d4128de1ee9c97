package pool

import (
	"errors"
	"fmt"

	"github.com/kysee/zkpool/zk-pool/merkle"
)

var (
	ErrInvalidProof  = errors.New("invalid transaction proof")
	ErrStaleRoot     = errors.New("invalid merkle root")
	ErrDoubleSpend   = errors.New("input is already spent")
	ErrLimitExceeded = errors.New("amount limit exceeded")
	ErrUnauthorized  = errors.New("unauthorized caller")

	// ErrTreeFull is returned once the accumulator cannot hold another
	// transaction's outputs. The pool accepts no further transactions.
	ErrTreeFull = fmt.Errorf("pool exhausted: %w", merkle.ErrTreeFull)

	ErrBadDisclosure = errors.New("disclosure does not match the log")
	ErrInvalidConfig = errors.New("invalid pool config")
)

// TxError is a rejected transaction together with the state it was in when it was rejected.
type TxError struct {
	State State
	Err   error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}
