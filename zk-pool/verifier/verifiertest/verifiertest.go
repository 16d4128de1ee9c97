// Package verifiertest provides a transparent proving system for tests and
// local development. Its "proof" is the encoded witness; its verifier checks
// the statement the transaction circuit enforces directly on that witness.
// It offers no zero knowledge.
package verifiertest

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/zk-pool/crypto"
	"github.com/kysee/zkpool/zk-pool/merkle"
	"github.com/kysee/zkpool/zk-pool/prover"
	"github.com/kysee/zkpool/zk-pool/types"
	"github.com/kysee/zkpool/zk-pool/verifier"
)

type proofInput struct {
	Amount    *big.Int
	PubKey    []byte
	Blinding  types.Hash
	Index     uint64
	Siblings  []types.Hash
	Signature []byte
}

type proofOutput struct {
	Amount   *big.Int
	PubKey   []byte
	Blinding types.Hash
}

type transparentProof struct {
	Inputs  []proofInput
	Outputs []proofOutput
}

// Prover encodes the witness as the proof.
type Prover struct{}

var _ prover.Prover = Prover{}

func (Prover) Prove(ctx context.Context, w *prover.Witness) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := transparentProof{}
	for _, in := range w.Inputs {
		pi := proofInput{
			Amount:    in.Note.Amount.ToBig(),
			PubKey:    in.Note.PubKey.Bytes(),
			Blinding:  in.Note.Blinding,
			Index:     in.Index,
			Signature: in.Signature,
		}
		if in.Path != nil {
			pi.Siblings = in.Path.Siblings
		}
		p.Inputs = append(p.Inputs, pi)
	}
	for _, out := range w.Outputs {
		p.Outputs = append(p.Outputs, proofOutput{
			Amount:   out.Amount.ToBig(),
			PubKey:   out.PubKey.Bytes(),
			Blinding: out.Blinding,
		})
	}
	return rlp.EncodeToBytes(&p)
}

// Verifier checks transparent proofs made for trees of the given height.
type Verifier struct {
	Height int
}

var _ verifier.Verifier = (*Verifier)(nil)

func reject(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", verifier.ErrProofRejected, fmt.Sprintf(format, args...))
}

func noteOf(amount *big.Int, pub []byte, blinding types.Hash) (*types.Note, error) {
	if amount.Sign() < 0 || amount.Cmp(types.MaxExtAmount) >= 0 {
		return nil, errors.New("amount out of range")
	}
	pk, err := crypto.ParsePub(pub)
	if err != nil {
		return nil, err
	}
	a, _ := uint256.FromBig(amount)
	return &types.Note{Amount: a, PubKey: pk, Blinding: blinding}, nil
}

// Verify checks, for signals [root, publicAmount, extDataHash, nullifiers..., commitments...]:
// every non-zero input is a leaf under root, every nullifier is derived from
// its note by the note owner's signature, nullifiers are distinct, outputs open
// the commitments and sum(inputs) + publicAmount == sum(outputs) in the field.
func (v *Verifier) Verify(bz []byte, signals []fr.Element) error {
	var p transparentProof
	if err := rlp.DecodeBytes(bz, &p); err != nil {
		return reject("decode: %v", err)
	}
	arity := len(p.Inputs)
	if len(p.Outputs) != types.NumOutput || len(signals) != verifier.NumSignals(arity) {
		return reject("shape")
	}
	root := types.HashFromElement(signals[0])
	nullifiers := signals[3 : 3+arity]
	commitments := signals[3+arity:]

	var sumIn, sumOut fr.Element
	seen := make(map[types.Hash]struct{}, arity)
	for i, in := range p.Inputs {
		note, err := noteOf(in.Amount, in.PubKey, in.Blinding)
		if err != nil {
			return reject("input %d: %v", i, err)
		}
		cm := note.Commitment()
		if !note.Amount.IsZero() {
			if len(in.Siblings) != v.Height {
				return reject("input %d: path length %d", i, len(in.Siblings))
			}
			path := &merkle.Path{Index: in.Index, Siblings: in.Siblings}
			if !merkle.Verify(root, cm, path) {
				return reject("input %d: not under root", i)
			}
		}
		nf := types.HashFromElement(nullifiers[i])
		if !types.VerifyNullifier(note.PubKey, cm, in.Index, in.Signature, nf) {
			return reject("input %d: nullifier", i)
		}
		if _, dup := seen[nf]; dup {
			return reject("input %d: repeated nullifier", i)
		}
		seen[nf] = struct{}{}

		var a fr.Element
		a.SetBigInt(in.Amount)
		sumIn.Add(&sumIn, &a)
	}
	for i, out := range p.Outputs {
		note, err := noteOf(out.Amount, out.PubKey, out.Blinding)
		if err != nil {
			return reject("output %d: %v", i, err)
		}
		if note.Commitment() != types.HashFromElement(commitments[i]) {
			return reject("output %d: commitment", i)
		}
		var a fr.Element
		a.SetBigInt(out.Amount)
		sumOut.Add(&sumOut, &a)
	}
	sumIn.Add(&sumIn, &signals[1])
	if !sumIn.Equal(&sumOut) {
		return reject("amounts do not balance")
	}
	return nil
}

// NewSet returns a verifier set accepting transparent proofs of both arities.
func NewSet(height int) *verifier.Set {
	v := &Verifier{Height: height}
	return &verifier.Set{Two: v, Sixteen: v}
}
