package types

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/kysee/zkpool/zk-pool/crypto"
)

// EncryptTo encrypts plaintext for the holder of pub.
// Layout: ephemeral public key (32 bytes) || ChaCha20-Poly1305 ciphertext.
// The ephemeral key is authenticated as additional data.
func EncryptTo(pub *eddsa.PublicKey, plaintext []byte) ([]byte, error) {
	eph, err := crypto.NewKey()
	if err != nil {
		return nil, err
	}
	shared, err := crypto.ECDHEComputeSharedSecret(eph, pub)
	if err != nil {
		return nil, err
	}
	key, nonce, err := crypto.DeriveNoteKey(shared)
	if err != nil {
		return nil, err
	}
	epk := eph.PublicKey.Bytes()
	ct, err := crypto.EncryptNote(key, nonce, plaintext, epk)
	if err != nil {
		return nil, err
	}
	return append(epk, ct...), nil
}

// DecryptWith reverses EncryptTo. Every failure is reported as ErrDecryption.
func DecryptWith(priv *eddsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) <= crypto.PubKeySize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryption)
	}
	epk := ciphertext[:crypto.PubKeySize]
	ephPub, err := crypto.ParsePub(epk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	shared, err := crypto.ECDHEComputeSharedSecret(priv, ephPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	key, nonce, err := crypto.DeriveNoteKey(shared)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	pt, err := crypto.DecryptNote(key, nonce, ciphertext[crypto.PubKeySize:], epk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return pt, nil
}

// EncryptNote encrypts the opening of note to its owner.
func EncryptNote(note *Note, memo []byte) ([]byte, error) {
	return EncryptTo(note.PubKey, note.ToSecretNote(memo).Bytes())
}

// DecryptNote decrypts an output ciphertext with kp and rebuilds the note it opens.
// The returned note is owned by kp.
func DecryptNote(kp *Keypair, ciphertext []byte) (*Note, []byte, error) {
	pt, err := kp.Decrypt(ciphertext)
	if err != nil {
		return nil, nil, err
	}
	sn, err := SecretNoteFromBytes(pt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return sn.ToNoteOf(kp.PublicKey()), sn.Memo, nil
}
