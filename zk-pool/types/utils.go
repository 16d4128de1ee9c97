package types

import (
	crand "crypto/rand"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

func RandBytes(n int) []byte {
	rbz := make([]byte, n)
	_, _ = crand.Read(rbz)
	return rbz
}

// RandomField returns a uniformly random field element, used for note blindings.
func RandomField() Hash {
	var e fr.Element
	if _, err := e.SetRandom(); err != nil {
		panic(err)
	}
	return HashFromElement(e)
}
