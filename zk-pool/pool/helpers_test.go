package pool

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/kysee/zkpool/zk-pool/verifier"
)

func acceptAll() *verifier.Set {
	ok := verifier.Func(func([]byte, []fr.Element) error { return nil })
	return &verifier.Set{Two: ok, Sixteen: ok}
}
