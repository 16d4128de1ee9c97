package utils

import (
	"hash"
	"math/big"
	"os"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/rs/zerolog"
)

// FieldModulus returns the BN254 scalar field modulus.
// Every commitment, nullifier and Merkle node lives in this field.
func FieldModulus() *big.Int {
	return fr.Modulus()
}

func MiMCHasher() hash.Hash {
	return mimc.NewMiMC()
}

// MiMCHash hashes arbitrary byte strings. Each input is cut into 32-byte blocks
// and every block is reduced into the field before it is absorbed, so inputs
// that exceed the modulus (compressed points, raw signatures) are accepted.
func MiMCHash(ins ...[]byte) []byte {
	hasher := MiMCHasher()

	blockSize := hasher.Size()

	hasher.Reset()
	for _, in := range ins {
		for i := 0; i < len(in); i += blockSize {
			end := i + blockSize
			if end > len(in) {
				end = len(in)
			}

			// this value may be greater than the modulus; convert to fr.Element
			var elem fr.Element
			elem.SetBytes(in[i:end])
			chunk := elem.Marshal()
			if _, err := hasher.Write(chunk); err != nil {
				panic(err)
			}
		}
	}
	return hasher.Sum(nil)
}

// HashElements absorbs field elements in order and returns the MiMC digest as an element.
func HashElements(elems ...fr.Element) fr.Element {
	hasher := MiMCHasher()
	for i := range elems {
		b := elems[i].Bytes()
		if _, err := hasher.Write(b[:]); err != nil {
			// canonical encodings are always accepted
			panic(err)
		}
	}
	var out fr.Element
	out.SetBytes(hasher.Sum(nil))
	return out
}

// ReduceBytes interprets b as a big-endian integer and reduces it into the field.
func ReduceBytes(b []byte) fr.Element {
	var e fr.Element
	e.SetBytes(b)
	return e
}

// ReduceBig reduces a (possibly negative) integer into the field.
func ReduceBig(v *big.Int) fr.Element {
	m := new(big.Int).Mod(v, fr.Modulus())
	var e fr.Element
	e.SetBigInt(m)
	return e
}

func Uint64Element(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

// NewLogger returns the console logger used by the pool components.
func NewLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

// ReducingHasher returns a MiMC hasher that accepts arbitrary byte input.
// Every Write is cut into 32-byte chunks and each chunk is reduced into the
// field, so short writes such as one-byte domain prefixes are accepted.
func ReducingHasher() hash.Hash {
	return &reducingWrapper{inner: MiMCHasher()}
}

type reducingWrapper struct {
	inner hash.Hash
}

func (w *reducingWrapper) Write(p []byte) (n int, err error) {
	const blockSize = fr.Bytes

	for i := 0; i < len(p); i += blockSize {
		end := i + blockSize
		if end > len(p) {
			end = len(p)
		}
		var elem fr.Element
		elem.SetBytes(p[i:end])
		if _, err := w.inner.Write(elem.Marshal()); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *reducingWrapper) Sum(b []byte) []byte {
	return w.inner.Sum(b)
}

func (w *reducingWrapper) Reset() {
	w.inner.Reset()
}

func (w *reducingWrapper) Size() int {
	return w.inner.Size()
}

func (w *reducingWrapper) BlockSize() int {
	return w.inner.BlockSize()
}
