package verifier

import (
	"bytes"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/backend/witness"
)

// PublicWitness packs signals into a gnark public witness, in order.
func PublicWitness(signals []fr.Element) (witness.Witness, error) {
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}
	values := make(chan any, len(signals))
	for _, s := range signals {
		values <- s
	}
	close(values)
	if err := w.Fill(len(signals), 0, values); err != nil {
		return nil, err
	}
	return w, nil
}

// readFrom guards against decoders that panic on malformed input.
func readFrom(r io.ReaderFrom, bz []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed encoding: %v", rec)
		}
	}()
	_, err = r.ReadFrom(bytes.NewReader(bz))
	return err
}

// Plonk verifies PLONK proofs over BN254.
type Plonk struct {
	vk plonk.VerifyingKey
}

func NewPlonk(vk plonk.VerifyingKey) *Plonk {
	return &Plonk{vk: vk}
}

func ReadPlonk(r io.Reader) (*Plonk, error) {
	vk := plonk.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read plonk verifying key: %w", err)
	}
	return NewPlonk(vk), nil
}

func (p *Plonk) Verify(bzProof []byte, signals []fr.Element) error {
	proof := plonk.NewProof(ecc.BN254)
	if err := readFrom(proof, bzProof); err != nil {
		return fmt.Errorf("%w: %v", ErrProofRejected, err)
	}
	pubWtn, err := PublicWitness(signals)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofRejected, err)
	}
	if err := plonk.Verify(proof, p.vk, pubWtn); err != nil {
		return fmt.Errorf("%w: %v", ErrProofRejected, err)
	}
	return nil
}

// ExportSolidity writes the on-chain verifier contract for the key.
func (p *Plonk) ExportSolidity(w io.Writer) error {
	return p.vk.ExportSolidity(w)
}

// Groth16 verifies Groth16 proofs over BN254.
type Groth16 struct {
	vk groth16.VerifyingKey
}

func NewGroth16(vk groth16.VerifyingKey) *Groth16 {
	return &Groth16{vk: vk}
}

func ReadGroth16(r io.Reader) (*Groth16, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read groth16 verifying key: %w", err)
	}
	return NewGroth16(vk), nil
}

func (g *Groth16) Verify(bzProof []byte, signals []fr.Element) error {
	proof := groth16.NewProof(ecc.BN254)
	if err := readFrom(proof, bzProof); err != nil {
		return fmt.Errorf("%w: %v", ErrProofRejected, err)
	}
	pubWtn, err := PublicWitness(signals)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofRejected, err)
	}
	if err := groth16.Verify(proof, g.vk, pubWtn); err != nil {
		return fmt.Errorf("%w: %v", ErrProofRejected, err)
	}
	return nil
}

func (g *Groth16) ExportSolidity(w io.Writer) error {
	return g.vk.ExportSolidity(w)
}
