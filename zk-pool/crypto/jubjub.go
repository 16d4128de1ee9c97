package crypto

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"

	tedwards "github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	jubjub "github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"golang.org/x/crypto/blake2s"
)

// PubKeySize is the size of a compressed public key on the BN254 twisted-Edwards curve.
const PubKeySize = 32

var (
	ErrNotOnCurve  = errors.New("point is not on curve")
	ErrKDFOverflow = errors.New("KDF counter overflow")
)

func NewKey() (*jubjub.PrivateKey, error) {
	return jubjub.GenerateKey(crand.Reader)
}

// ParsePub decompresses a public key and checks that it lies on the curve.
func ParsePub(bz []byte) (*jubjub.PublicKey, error) {
	if len(bz) != PubKeySize {
		return nil, fmt.Errorf("invalid public key size: expected(%d), got(%d)", PubKeySize, len(bz))
	}
	pub := new(jubjub.PublicKey)
	if _, err := pub.SetBytes(bz); err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	if !pub.A.IsOnCurve() {
		return nil, ErrNotOnCurve
	}
	return pub, nil
}

// PrivScalar returns the secret scalar of the key; the public key is scalar * Base.
func PrivScalar(privateKey *jubjub.PrivateKey) *big.Int {
	bz := privateKey.Bytes()
	return new(big.Int).SetBytes(bz[32:64])
}

// ECDHEComputeSharedSecret computes the ECDHE shared secret
// sharedSecret = blake2s(X(privateKey * otherPublicKey))
func ECDHEComputeSharedSecret(privateKey *jubjub.PrivateKey, otherPublicKey *jubjub.PublicKey) ([]byte, error) {
	if !otherPublicKey.A.IsOnCurve() {
		return nil, fmt.Errorf("other public key: %w", ErrNotOnCurve)
	}

	var sharedSecret tedwards.PointAffine
	sharedSecret.ScalarMultiplication(&otherPublicKey.A, PrivScalar(privateKey))

	if !sharedSecret.IsOnCurve() {
		return nil, fmt.Errorf("shared secret: %w", ErrNotOnCurve)
	}

	hasher, err := blake2s.New256(nil)
	if err != nil {
		return nil, err
	}
	ax := sharedSecret.X.Bytes()
	hasher.Write(ax[:])
	return hasher.Sum(nil), nil
}

// SaplingKDF derives a key stream of outputLen bytes from a 32-byte shared secret.
// It follows PRF^expand of the Sapling note encryption: BLAKE2s personalized with
// "Zcash_ExpandSeed" over (secret || counter), counter starting at 1.
func SaplingKDF(sharedSecret []byte, outputLen int) ([]byte, error) {
	if len(sharedSecret) != 32 {
		return nil, fmt.Errorf("sharedSecret must be 32 bytes")
	}

	personalization := []byte("Zcash_ExpandSeed")

	var keyStream []byte
	var counter byte = 1
	for len(keyStream) < outputLen {
		// fresh state per block
		h, err := blake2s.New256(personalization)
		if err != nil {
			return nil, fmt.Errorf("failed to create blake2s hash: %w", err)
		}
		h.Write(sharedSecret)
		h.Write([]byte{counter})
		keyStream = append(keyStream, h.Sum(nil)...)

		counter++
		if counter == 0 {
			return nil, ErrKDFOverflow
		}
	}
	return keyStream[:outputLen], nil
}
