package types

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/utils"
)

const SecretNoteVersion = 1

type Note struct {
	Amount   *uint256.Int
	PubKey   *eddsa.PublicKey
	Blinding Hash
}

// NewNote creates a note for pub with a fresh random blinding.
func NewNote(amount *uint256.Int, pub *eddsa.PublicKey) *Note {
	return &Note{
		Amount:   new(uint256.Int).Set(amount),
		PubKey:   pub,
		Blinding: RandomField(),
	}
}

// NewZeroNote returns a zero-value note under a fresh keypair. Zero notes pad
// transactions to the arity of the circuit.
func NewZeroNote() (*Note, *Keypair, error) {
	kp, err := NewKeypair()
	if err != nil {
		return nil, nil, err
	}
	return NewNote(uint256.NewInt(0), kp.PublicKey()), kp, nil
}

func (n *Note) Validate() error {
	if n.Amount == nil || n.PubKey == nil {
		return errors.New("incomplete note")
	}
	if n.Amount.ToBig().Cmp(MaxExtAmount) >= 0 {
		return ErrAmountTooLarge
	}
	return nil
}

// Commitment = MiMC(amount, pubKey.X, pubKey.Y, blinding)
func (n *Note) Commitment() Hash {
	var amount fr.Element
	amount.SetBigInt(n.Amount.ToBig())
	return HashFromElement(utils.HashElements(
		amount,
		n.PubKey.A.X,
		n.PubKey.A.Y,
		n.Blinding.Element(),
	))
}

// Nullifier derives the nullifier of the note stored at leaf index. kp must own the note.
// The signature is returned as well; disclosing it lets a third party recompute the nullifier.
func (n *Note) Nullifier(index uint64, kp *Keypair) (Hash, []byte, error) {
	if !kp.Owns(n.PubKey) {
		return Hash{}, nil, ErrKeyMismatch
	}
	commitment := n.Commitment()
	sig, err := kp.Sign(commitment, index)
	if err != nil {
		return Hash{}, nil, err
	}
	nf, err := RecomputeNullifier(commitment, index, sig)
	if err != nil {
		return Hash{}, nil, err
	}
	return nf, sig, nil
}

// RecomputeNullifier = MiMC(commitment, index, sig.R.X, sig.R.Y, sig.S).
// It needs no key and is what a compliance checker runs on disclosed data.
func RecomputeNullifier(commitment Hash, index uint64, sig []byte) (Hash, error) {
	var s eddsa.Signature
	if _, err := s.SetBytes(sig); err != nil {
		return Hash{}, fmt.Errorf("%w: signature: %v", ErrInvalidEncoding, err)
	}
	var sElem fr.Element
	sElem.SetBytes(s.S[:])
	return HashFromElement(utils.HashElements(
		commitment.Element(),
		utils.Uint64Element(index),
		s.R.X,
		s.R.Y,
		sElem,
	)), nil
}

// VerifyNullifier checks that sig is owner's signature over (commitment, index)
// and that it derives nullifier.
func VerifyNullifier(owner *eddsa.PublicKey, commitment Hash, index uint64, sig []byte, nullifier Hash) bool {
	if !VerifySignature(owner, commitment, index, sig) {
		return false
	}
	nf, err := RecomputeNullifier(commitment, index, sig)
	return err == nil && nf == nullifier
}

func (n *Note) ToSecretNote(memo []byte) *SecretNote {
	return &SecretNote{
		Version:  SecretNoteVersion,
		Amount:   new(uint256.Int).Set(n.Amount),
		Blinding: n.Blinding,
		Memo:     memo,
	}
}

// SecretNote is the plaintext of an encrypted output: everything the recipient
// needs besides its own public key to open the commitment.
type SecretNote struct {
	Version  byte
	Amount   *uint256.Int
	Blinding Hash
	Memo     []byte
}

func SecretNoteFromBytes(bz []byte) (*SecretNote, error) {
	sn := new(SecretNote)
	if err := rlp.DecodeBytes(bz, sn); err != nil {
		return nil, err
	}
	return sn, nil
}

// Bytes returns the RLP encoding of the SecretNote. It panics if the encoding fails.
func (sn *SecretNote) Bytes() []byte {
	b, err := rlp.EncodeToBytes(sn)
	if err != nil {
		panic(fmt.Sprintf("failed to RLP encode SecretNote: %v", err))
	}
	return b
}

func (sn *SecretNote) ToNoteOf(pub *eddsa.PublicKey) *Note {
	return &Note{
		Amount:   new(uint256.Int).Set(sn.Amount),
		PubKey:   pub,
		Blinding: sn.Blinding,
	}
}

// EncodeRLP implements rlp.Encoder.
func (sn *SecretNote) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, []interface{}{
		sn.Version,
		sn.Amount.ToBig(),
		sn.Blinding,
		sn.Memo,
	})
}

// DecodeRLP implements rlp.Decoder.
func (sn *SecretNote) DecodeRLP(s *rlp.Stream) error {
	var temp struct {
		Version  byte
		Amount   *big.Int
		Blinding Hash
		Memo     []byte
	}
	if err := s.Decode(&temp); err != nil {
		return err
	}
	if temp.Version != SecretNoteVersion {
		return fmt.Errorf("unknown secret note version %d", temp.Version)
	}

	amount, overflow := uint256.FromBig(temp.Amount)
	if overflow {
		return fmt.Errorf("amount value overflows uint256")
	}

	sn.Version = temp.Version
	sn.Amount = amount
	sn.Blinding = temp.Blinding
	sn.Memo = temp.Memo
	return nil
}
