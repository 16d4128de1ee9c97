package prover

import (
	"context"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/kysee/zkpool/zk-pool/merkle"
	"github.com/kysee/zkpool/zk-pool/types"
)

// InputWitness is the private data behind one input nullifier.
// Zero-value inputs carry no Merkle path.
type InputWitness struct {
	Note      *types.Note
	Index     uint64
	Path      *merkle.Path
	Signature []byte
	Nullifier types.Hash
}

// Witness is everything a prover needs to prove one transaction.
type Witness struct {
	Root         types.Hash
	PublicAmount fr.Element
	ExtDataHash  types.Hash
	Inputs       []InputWitness
	Outputs      []*types.Note
}

func (w *Witness) Nullifiers() []types.Hash {
	out := make([]types.Hash, len(w.Inputs))
	for i := range w.Inputs {
		out[i] = w.Inputs[i].Nullifier
	}
	return out
}

func (w *Witness) Commitments() []types.Hash {
	out := make([]types.Hash, len(w.Outputs))
	for i, n := range w.Outputs {
		out[i] = n.Commitment()
	}
	return out
}

// Signals returns the public signals the proof is made for.
func (w *Witness) Signals() []fr.Element {
	return types.Signals(w.Root, w.PublicAmount, w.ExtDataHash, w.Nullifiers(), w.Commitments())
}

// Prover turns a witness into a proof. Proving runs off the pool's critical
// path against a historical root.
type Prover interface {
	Prove(ctx context.Context, w *Witness) ([]byte, error)
}
