package crypto

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyMaterialSize is the KDF output consumed by one note: a ChaCha20-Poly1305 key followed by its nonce.
const KeyMaterialSize = chacha20poly1305.KeySize + chacha20poly1305.NonceSize

// DeriveNoteKey expands an ECDH shared secret into the AEAD key and nonce.
// Every note uses a fresh ephemeral key, so the nonce never repeats under a key.
func DeriveNoteKey(sharedSecret []byte) (key, nonce []byte, err error) {
	material, err := SaplingKDF(sharedSecret, KeyMaterialSize)
	if err != nil {
		return nil, nil, err
	}
	return material[:chacha20poly1305.KeySize], material[chacha20poly1305.KeySize:], nil
}

// EncryptNote encrypts the note plaintext using the ChaCha20-Poly1305 AEAD scheme.
//
// Parameters:
//   - key: A 32-byte symmetric key, as returned by DeriveNoteKey.
//   - nonce: A 12-byte nonce. It must never repeat under the same key.
//   - plaintext: The data to be encrypted (the serialized SecretNote).
//   - additionalData: Data authenticated but not encrypted. Note encryption
//     passes the ephemeral public key, binding it to the ciphertext.
//
// Returns the ciphertext, which includes the 16-byte authentication tag.
func EncryptNote(key, nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("invalid key size: must be %d bytes", chacha20poly1305.KeySize)
	}
	if len(nonce) != chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("invalid nonce size: must be %d bytes", chacha20poly1305.NonceSize)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 AEAD: %w", err)
	}
	return aead.Seal(nil, nonce, plaintext, additionalData), nil
}

// DecryptNote decrypts a ciphertext produced by EncryptNote.
//
// Parameters:
//   - key: The 32-byte symmetric key used for encryption.
//   - nonce: The 12-byte nonce used for encryption.
//   - ciphertext: The encrypted data, including the authentication tag.
//   - additionalData: The associated data that was authenticated. It must
//     match the data used during encryption.
//
// Returns the plaintext if authentication succeeds.
func DecryptNote(key, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("invalid key size: must be %d bytes", chacha20poly1305.KeySize)
	}
	if len(nonce) != chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("invalid nonce size: must be %d bytes", chacha20poly1305.NonceSize)
	}
	if len(ciphertext) < chacha20poly1305.Overhead {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(ciphertext))
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 AEAD: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		// wrong key, or the ciphertext / additional data was tampered with
		return nil, fmt.Errorf("failed to decrypt note: %w", err)
	}
	return plaintext, nil
}
