package types

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/kysee/zkpool/zk-pool/crypto"
)

const (
	addrPrefix = "zp"
	addrVer    = 0x01
)

// EncodeAddress returns the shielded address form of a compressed public key.
func EncodeAddress(payload []byte) string {
	return addrPrefix + base58.CheckEncode(payload, addrVer)
}

func DecodeAddress(addr string) ([]byte, error) {
	if !strings.HasPrefix(addr, addrPrefix) {
		got := addr
		if len(got) > len(addrPrefix) {
			got = got[:len(addrPrefix)]
		}
		return nil, fmt.Errorf("wrong prefix: got(%s)", got)
	}
	bz, ver, err := base58.CheckDecode(addr[len(addrPrefix):])
	if err != nil {
		return nil, err
	}
	if ver != addrVer {
		return nil, fmt.Errorf("wrong version: expected(%d), got(%d)", addrVer, ver)
	}
	return bz, nil
}

func Pub2Addr(pubKey *eddsa.PublicKey) string {
	return EncodeAddress(pubKey.Bytes())
}

func Addr2Pub(addr string) (*eddsa.PublicKey, error) {
	bz, err := DecodeAddress(addr)
	if err != nil {
		return nil, err
	}
	return crypto.ParsePub(bz)
}
