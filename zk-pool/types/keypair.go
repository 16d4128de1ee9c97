package types

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/kysee/zkpool/utils"
	"github.com/kysee/zkpool/zk-pool/crypto"
)

// Keypair owns notes. A keypair imported from an address holds only the public
// key: it can be encrypted to and can verify, but it cannot sign or decrypt.
type Keypair struct {
	priv *eddsa.PrivateKey
	pub  *eddsa.PublicKey
}

func NewKeypair() (*Keypair, error) {
	priv, err := crypto.NewKey()
	if err != nil {
		return nil, err
	}
	return &Keypair{priv: priv, pub: &priv.PublicKey}, nil
}

// KeypairFromPrivate restores a keypair from the encoding returned by PrivateBytes.
func KeypairFromPrivate(bz []byte) (*Keypair, error) {
	priv := new(eddsa.PrivateKey)
	if _, err := priv.SetBytes(bz); err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrInvalidEncoding, err)
	}
	return &Keypair{priv: priv, pub: &priv.PublicKey}, nil
}

func KeypairFromAddress(addr string) (*Keypair, error) {
	pub, err := Addr2Pub(addr)
	if err != nil {
		return nil, err
	}
	return &Keypair{pub: pub}, nil
}

func (k *Keypair) PublicKey() *eddsa.PublicKey {
	return k.pub
}

func (k *Keypair) PubBytes() []byte {
	return k.pub.Bytes()
}

func (k *Keypair) Address() string {
	return Pub2Addr(k.pub)
}

func (k *Keypair) HasPrivate() bool {
	return k.priv != nil
}

func (k *Keypair) PrivateBytes() []byte {
	if k.priv == nil {
		return nil
	}
	return k.priv.Bytes()
}

// Owns reports whether pub is this keypair's public key.
func (k *Keypair) Owns(pub *eddsa.PublicKey) bool {
	return pub != nil && k.pub.Equal(pub)
}

// signMessage binds a signature to one leaf: MiMC(commitment, index).
func signMessage(commitment Hash, index uint64) []byte {
	m := utils.HashElements(commitment.Element(), utils.Uint64Element(index))
	b := m.Bytes()
	return b[:]
}

// Sign signs (commitment, index). EdDSA nonces are derived from the key and
// the message, so the signature is deterministic.
func (k *Keypair) Sign(commitment Hash, index uint64) ([]byte, error) {
	if k.priv == nil {
		return nil, ErrNoPrivateKey
	}
	return k.priv.Sign(signMessage(commitment, index), utils.MiMCHasher())
}

func VerifySignature(pub *eddsa.PublicKey, commitment Hash, index uint64, sig []byte) bool {
	ok, err := pub.Verify(sig, signMessage(commitment, index), utils.MiMCHasher())
	return err == nil && ok
}

// Encrypt encrypts plaintext to this keypair's own public key.
func (k *Keypair) Encrypt(plaintext []byte) ([]byte, error) {
	return EncryptTo(k.pub, plaintext)
}

func (k *Keypair) Decrypt(ciphertext []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, ErrNoPrivateKey
	}
	return DecryptWith(k.priv, ciphertext)
}
