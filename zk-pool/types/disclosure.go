package types

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/zk-pool/crypto"
)

// Disclosure is what a note owner hands to an auditor: the opening of one
// note, its leaf index and the signature behind its nullifier.
type Disclosure struct {
	Amount    *uint256.Int
	PubKey    []byte
	Blinding  Hash
	LeafIndex uint64
	Signature []byte
}

// Disclose prepares the disclosure of note, stored at index and owned by kp.
func Disclose(note *Note, index uint64, kp *Keypair) (*Disclosure, error) {
	if !kp.Owns(note.PubKey) {
		return nil, ErrKeyMismatch
	}
	sig, err := kp.Sign(note.Commitment(), index)
	if err != nil {
		return nil, err
	}
	return &Disclosure{
		Amount:    new(uint256.Int).Set(note.Amount),
		PubKey:    note.PubKey.Bytes(),
		Blinding:  note.Blinding,
		LeafIndex: index,
		Signature: sig,
	}, nil
}

func (d *Disclosure) Note() (*Note, error) {
	pub, err := crypto.ParsePub(d.PubKey)
	if err != nil {
		return nil, err
	}
	return &Note{Amount: d.Amount, PubKey: pub, Blinding: d.Blinding}, nil
}

// Recompute returns the commitment and nullifier implied by the disclosure.
// It fails if the signature was not produced by the disclosed key.
func (d *Disclosure) Recompute() (commitment, nullifier Hash, err error) {
	note, err := d.Note()
	if err != nil {
		return Hash{}, Hash{}, err
	}
	commitment = note.Commitment()
	if !VerifySignature(note.PubKey, commitment, d.LeafIndex, d.Signature) {
		return Hash{}, Hash{}, fmt.Errorf("%w: disclosed signature does not verify", ErrKeyMismatch)
	}
	nullifier, err = RecomputeNullifier(commitment, d.LeafIndex, d.Signature)
	return commitment, nullifier, err
}
