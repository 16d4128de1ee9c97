package verifier

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/kysee/zkpool/zk-pool/types"
)

var (
	ErrProofRejected    = errors.New("proof rejected")
	ErrUnsupportedArity = errors.New("no verifier for input arity")
	ErrSignalCount      = errors.New("unexpected number of public signals")
)

// Verifier checks a proof against its public signals.
type Verifier interface {
	Verify(proof []byte, signals []fr.Element) error
}

// Func adapts a function to the Verifier interface.
type Func func(proof []byte, signals []fr.Element) error

func (f Func) Verify(proof []byte, signals []fr.Element) error {
	return f(proof, signals)
}

// Variant names one of the two circuit shapes.
type Variant uint8

const (
	TwoInput Variant = iota
	SixteenInput
)

func (v Variant) Arity() int {
	if v == SixteenInput {
		return types.Arity16
	}
	return types.Arity2
}

func (v Variant) String() string {
	return fmt.Sprintf("verifier%d", v.Arity())
}

// NumSignals is the signal count of a circuit with the given input arity.
func NumSignals(arity int) int {
	return 3 + arity + types.NumOutput
}

// VariantOf maps an input count to its circuit variant.
func VariantOf(arity int) (Variant, error) {
	switch arity {
	case types.Arity2:
		return TwoInput, nil
	case types.Arity16:
		return SixteenInput, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedArity, arity)
	}
}

// Set holds one verifier per circuit variant.
type Set struct {
	Two     Verifier
	Sixteen Verifier
}

func (s *Set) Select(v Variant) (Verifier, error) {
	var out Verifier
	switch v {
	case TwoInput:
		out = s.Two
	case SixteenInput:
		out = s.Sixteen
	}
	if out == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedArity, v.Arity())
	}
	return out, nil
}

// Verify dispatches on the number of input nullifiers.
func (s *Set) Verify(proof []byte, arity int, signals []fr.Element) error {
	v, err := VariantOf(arity)
	if err != nil {
		return err
	}
	if len(signals) != NumSignals(arity) {
		return fmt.Errorf("%w: expected(%d), got(%d)", ErrSignalCount, NumSignals(arity), len(signals))
	}
	vf, err := s.Select(v)
	if err != nil {
		return err
	}
	return vf.Verify(proof, signals)
}
