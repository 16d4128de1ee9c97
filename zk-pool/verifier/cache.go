package verifier

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached remembers proofs that already verified, keyed by the proof and its signals.
// Rejections are never cached.
type Cached struct {
	inner Verifier
	seen  *lru.Cache[string, struct{}]
}

func NewCached(inner Verifier, size int) (*Cached, error) {
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, seen: seen}, nil
}

func cacheKey(proof []byte, signals []fr.Element) string {
	bz := make([]byte, 0, len(proof)+len(signals)*fr.Bytes)
	bz = append(bz, proof...)
	for i := range signals {
		b := signals[i].Bytes()
		bz = append(bz, b[:]...)
	}
	return string(crypto.Keccak256(bz))
}

func (c *Cached) Verify(proof []byte, signals []fr.Element) error {
	key := cacheKey(proof, signals)
	if c.seen.Contains(key) {
		return nil
	}
	if err := c.inner.Verify(proof, signals); err != nil {
		return err
	}
	c.seen.Add(key, struct{}{})
	return nil
}

func (c *Cached) Len() int {
	return c.seen.Len()
}
