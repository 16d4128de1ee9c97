package prover

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/zk-pool/merkle"
	"github.com/kysee/zkpool/zk-pool/types"
)

var (
	ErrTooManyInputs     = errors.New("too many inputs")
	ErrTooManyOutputs    = errors.New("too many outputs")
	ErrInsufficientFunds = errors.New("insufficient shielded balance")
)

// Input is a note being spent and the keypair that owns it.
type Input struct {
	Note  *types.Note
	Index uint64
	Owner *types.Keypair
}

// TxParams describes a transaction. The external amount is derived:
// extAmount = fee + sum(outputs) - sum(inputs).
type TxParams struct {
	Inputs         []Input
	Outputs        []*types.Note
	Fee            *uint256.Int
	Recipient      common.Address
	Relayer        common.Address
	IsL1Withdrawal bool
}

// Builder assembles proven transactions against a snapshot of the leaf log.
type Builder struct {
	Height int
	Prover Prover
}

func paddedArity(n int) (int, error) {
	switch {
	case n <= types.Arity2:
		return types.Arity2, nil
	case n <= types.Arity16:
		return types.Arity16, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrTooManyInputs, n)
	}
}

// Build pads inputs to the circuit arity and outputs to two, encrypts the
// outputs to their owners, and proves the result against the root of leaves.
func (b *Builder) Build(ctx context.Context, leaves []types.Hash, p *TxParams) (*types.Transaction, *Witness, error) {
	if len(p.Outputs) > types.NumOutput {
		return nil, nil, fmt.Errorf("%w: %d", ErrTooManyOutputs, len(p.Outputs))
	}
	arity, err := paddedArity(len(p.Inputs))
	if err != nil {
		return nil, nil, err
	}
	fee := p.Fee
	if fee == nil {
		fee = uint256.NewInt(0)
	}

	root, err := merkle.RootOf(b.Height, leaves)
	if err != nil {
		return nil, nil, err
	}

	wtn := &Witness{Root: root}
	sumIn := new(big.Int)
	for _, in := range p.Inputs {
		if err := in.Note.Validate(); err != nil {
			return nil, nil, err
		}
		if in.Index >= uint64(len(leaves)) || leaves[in.Index] != in.Note.Commitment() {
			return nil, nil, fmt.Errorf("input note is not logged at index %d", in.Index)
		}
		path, err := merkle.PathFromLeaves(b.Height, leaves, in.Index)
		if err != nil {
			return nil, nil, err
		}
		iw, err := inputWitness(in.Note, in.Index, in.Owner)
		if err != nil {
			return nil, nil, err
		}
		iw.Path = path
		wtn.Inputs = append(wtn.Inputs, *iw)
		sumIn.Add(sumIn, in.Note.Amount.ToBig())
	}
	for len(wtn.Inputs) < arity {
		note, kp, err := types.NewZeroNote()
		if err != nil {
			return nil, nil, err
		}
		iw, err := inputWitness(note, 0, kp)
		if err != nil {
			return nil, nil, err
		}
		wtn.Inputs = append(wtn.Inputs, *iw)
	}

	sumOut := new(big.Int)
	outputs := append([]*types.Note{}, p.Outputs...)
	for _, out := range outputs {
		if err := out.Validate(); err != nil {
			return nil, nil, err
		}
		sumOut.Add(sumOut, out.Amount.ToBig())
	}
	for len(outputs) < types.NumOutput {
		note, _, err := types.NewZeroNote()
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, note)
	}
	wtn.Outputs = outputs

	extAmount := new(big.Int).Add(fee.ToBig(), sumOut)
	extAmount.Sub(extAmount, sumIn)

	encrypted := make([][]byte, len(outputs))
	for i, out := range outputs {
		if encrypted[i], err = types.EncryptNote(out, nil); err != nil {
			return nil, nil, err
		}
	}

	tx := &types.Transaction{
		Args: types.PublicInputs{
			Root:              root,
			InputNullifiers:   wtn.Nullifiers(),
			OutputCommitments: wtn.Commitments(),
			ExtAmount:         extAmount,
			Fee:               new(uint256.Int).Set(fee),
		},
		Ext: types.ExtData{
			Recipient:        p.Recipient,
			Relayer:          p.Relayer,
			EncryptedOutputs: encrypted,
			IsL1Withdrawal:   p.IsL1Withdrawal,
		},
	}
	wtn.PublicAmount = types.PublicAmount(extAmount, fee)
	wtn.ExtDataHash = types.ExtDataHash(&tx.Args, &tx.Ext)

	if tx.Proof, err = b.Prover.Prove(ctx, wtn); err != nil {
		return nil, nil, fmt.Errorf("prove: %w", err)
	}
	return tx, wtn, nil
}

func inputWitness(note *types.Note, index uint64, owner *types.Keypair) (*InputWitness, error) {
	nf, sig, err := note.Nullifier(index, owner)
	if err != nil {
		return nil, err
	}
	return &InputWitness{Note: note, Index: index, Signature: sig, Nullifier: nf}, nil
}

// Deposit prepares a deposit of amount into a fresh note of the wallet.
func (w *Wallet) Deposit(amount *uint256.Int) *TxParams {
	return &TxParams{
		Outputs: []*types.Note{types.NewNote(amount, w.kp.PublicKey())},
	}
}

// Transfer prepares a shielded transfer of amount to `to`, returning change to the wallet.
func (w *Wallet) Transfer(to *eddsa.PublicKey, amount, fee *uint256.Int) (*TxParams, error) {
	need := new(uint256.Int).Add(amount, fee)
	inputs, total, err := w.selectInputs(need)
	if err != nil {
		return nil, err
	}
	change := new(uint256.Int).Sub(total, need)
	return &TxParams{
		Inputs: inputs,
		Outputs: []*types.Note{
			types.NewNote(amount, to),
			types.NewNote(change, w.kp.PublicKey()),
		},
		Fee: fee,
	}, nil
}

// Withdraw prepares a withdrawal of amount to recipient, returning change to the wallet.
func (w *Wallet) Withdraw(amount *uint256.Int, recipient common.Address, fee *uint256.Int, isL1 bool) (*TxParams, error) {
	need := new(uint256.Int).Add(amount, fee)
	inputs, total, err := w.selectInputs(need)
	if err != nil {
		return nil, err
	}
	change := new(uint256.Int).Sub(total, need)
	return &TxParams{
		Inputs:         inputs,
		Outputs:        []*types.Note{types.NewNote(change, w.kp.PublicKey())},
		Fee:            fee,
		Recipient:      recipient,
		IsL1Withdrawal: isL1,
	}, nil
}

// selectInputs picks the largest notes first until need is covered.
func (w *Wallet) selectInputs(need *uint256.Int) ([]Input, *uint256.Int, error) {
	notes := w.Unspent()
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Note.Amount.Gt(notes[j].Note.Amount) })

	total := uint256.NewInt(0)
	var inputs []Input
	for _, n := range notes {
		if !total.Lt(need) {
			break
		}
		if len(inputs) == types.Arity16 {
			return nil, nil, ErrTooManyInputs
		}
		inputs = append(inputs, Input{Note: n.Note, Index: n.Index, Owner: w.kp})
		total.Add(total, n.Note.Amount)
	}
	if total.Lt(need) {
		return nil, nil, fmt.Errorf("%w: have(%s), need(%s)", ErrInsufficientFunds, total.Dec(), need.Dec())
	}
	return inputs, total, nil
}
