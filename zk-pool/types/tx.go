package types

import (
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/utils"
)

const (
	Arity2    = 2
	Arity16   = 16
	NumOutput = 2
)

// PublicInputs are the values a transaction proof is checked against.
type PublicInputs struct {
	Root              Hash
	InputNullifiers   []Hash
	OutputCommitments []Hash

	// ExtAmount is positive for a deposit into the pool and negative for a withdrawal.
	ExtAmount *big.Int
	Fee       *uint256.Int
}

// ExtData is the part of a transaction the circuit only sees through its hash.
type ExtData struct {
	Recipient        common.Address
	Relayer          common.Address
	EncryptedOutputs [][]byte
	IsL1Withdrawal   bool
}

type Transaction struct {
	Proof []byte
	Args  PublicInputs
	Ext   ExtData
}

func (p *PublicInputs) Arity() int {
	return len(p.InputNullifiers)
}

// CheckShape validates the input and output counts, and that the root,
// nullifiers and commitments are below the field modulus. The verifier sees
// them reduced, so n and n+FieldSize would pass as the same nullifier.
func (tx *Transaction) CheckShape() error {
	if n := tx.Args.Arity(); n != Arity2 && n != Arity16 {
		return fmt.Errorf("%w: %d", ErrInvalidArity, n)
	}
	if len(tx.Args.OutputCommitments) != NumOutput || len(tx.Ext.EncryptedOutputs) != NumOutput {
		return ErrInvalidOutputs
	}
	if tx.Args.ExtAmount == nil || tx.Args.Fee == nil {
		return fmt.Errorf("%w: missing external amount or fee", ErrInvalidEncoding)
	}
	if !tx.Args.Root.IsCanonical() {
		return fmt.Errorf("%w: root %s", ErrNonCanonical, tx.Args.Root)
	}
	for i, nf := range tx.Args.InputNullifiers {
		if !nf.IsCanonical() {
			return fmt.Errorf("%w: input nullifier %d", ErrNonCanonical, i)
		}
	}
	for i, c := range tx.Args.OutputCommitments {
		if !c.IsCanonical() {
			return fmt.Errorf("%w: output commitment %d", ErrNonCanonical, i)
		}
	}
	return nil
}

// PublicAmount = (extAmount - fee) mod FieldSize.
func PublicAmount(extAmount *big.Int, fee *uint256.Int) fr.Element {
	v := new(big.Int).Sub(extAmount, fee.ToBig())
	return utils.ReduceBig(v)
}

// ExtDataHash = Keccak256(RLP(recipient, extAmount, relayer, fee, encryptedOutputs, isL1Withdrawal)) mod FieldSize.
// The external amount and fee are hashed in so a relayer cannot shift value between them.
func ExtDataHash(args *PublicInputs, ext *ExtData) Hash {
	neg, abs := splitSigned(args.ExtAmount)
	bz, err := rlp.EncodeToBytes([]interface{}{
		ext.Recipient,
		neg,
		abs,
		ext.Relayer,
		args.Fee.ToBig(),
		ext.EncryptedOutputs,
		ext.IsL1Withdrawal,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to RLP encode ExtData: %v", err))
	}
	return HashFromElement(utils.ReduceBytes(ethcrypto.Keccak256(bz)))
}

// Signals lays out the public signals handed to the verifier:
// [root, publicAmount, extDataHash, inputNullifiers..., outputCommitments...]
func Signals(root Hash, publicAmount fr.Element, extDataHash Hash, nullifiers, commitments []Hash) []fr.Element {
	out := make([]fr.Element, 0, 3+len(nullifiers)+len(commitments))
	out = append(out, root.Element(), publicAmount, extDataHash.Element())
	out = append(out, ElementsOf(nullifiers...)...)
	out = append(out, ElementsOf(commitments...)...)
	return out
}

// Signals returns the public signals of tx.
func (tx *Transaction) Signals() []fr.Element {
	return Signals(
		tx.Args.Root,
		PublicAmount(tx.Args.ExtAmount, tx.Args.Fee),
		ExtDataHash(&tx.Args, &tx.Ext),
		tx.Args.InputNullifiers,
		tx.Args.OutputCommitments,
	)
}

func (tx *Transaction) Bytes() ([]byte, error) {
	return rlp.EncodeToBytes(tx)
}

func TransactionFromBytes(bz []byte) (*Transaction, error) {
	tx := new(Transaction)
	if err := rlp.DecodeBytes(bz, tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return tx, nil
}

func splitSigned(v *big.Int) (bool, *big.Int) {
	if v == nil {
		return false, new(big.Int)
	}
	return v.Sign() < 0, new(big.Int).Abs(v)
}

type rlpPublicInputs struct {
	Root              Hash
	InputNullifiers   []Hash
	OutputCommitments []Hash
	ExtNegative       bool
	ExtAbs            *big.Int
	Fee               *big.Int
}

// EncodeRLP implements rlp.Encoder. RLP has no signed integers, so the
// external amount travels as a sign flag and a magnitude.
func (p *PublicInputs) EncodeRLP(w io.Writer) error {
	neg, abs := splitSigned(p.ExtAmount)
	fee := new(big.Int)
	if p.Fee != nil {
		fee = p.Fee.ToBig()
	}
	return rlp.Encode(w, &rlpPublicInputs{
		Root:              p.Root,
		InputNullifiers:   p.InputNullifiers,
		OutputCommitments: p.OutputCommitments,
		ExtNegative:       neg,
		ExtAbs:            abs,
		Fee:               fee,
	})
}

// DecodeRLP implements rlp.Decoder.
func (p *PublicInputs) DecodeRLP(s *rlp.Stream) error {
	var temp rlpPublicInputs
	if err := s.Decode(&temp); err != nil {
		return err
	}
	fee, overflow := uint256.FromBig(temp.Fee)
	if overflow {
		return fmt.Errorf("fee value overflows uint256")
	}
	ext := new(big.Int).Set(temp.ExtAbs)
	if temp.ExtNegative {
		ext.Neg(ext)
	}

	p.Root = temp.Root
	p.InputNullifiers = temp.InputNullifiers
	p.OutputCommitments = temp.OutputCommitments
	p.ExtAmount = ext
	p.Fee = fee
	return nil
}
