package types

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const HashLength = 32

// Hash is a big-endian encoded BN254 scalar field element.
type Hash [HashLength]byte

func HashFromElement(e fr.Element) Hash {
	return Hash(e.Bytes())
}

func HashFromUint64(v uint64) Hash {
	var e fr.Element
	e.SetUint64(v)
	return HashFromElement(e)
}

// BytesToHash left-pads b to 32 bytes; longer inputs keep their trailing 32 bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// Element returns h as a field element, reducing it if it is not canonical.
func (h Hash) Element() fr.Element {
	var e fr.Element
	e.SetBytes(h[:])
	return e
}

func (h Hash) Big() *big.Int {
	return new(big.Int).SetBytes(h[:])
}

// IsCanonical reports whether h is strictly below the field modulus.
func (h Hash) IsCanonical() bool {
	return h.Big().Cmp(FieldSize) < 0
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) Hex() string {
	return hexutil.Encode(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

func ElementsOf(hs ...Hash) []fr.Element {
	out := make([]fr.Element, len(hs))
	for i, h := range hs {
		out[i] = h.Element()
	}
	return out
}
