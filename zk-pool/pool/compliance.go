package pool

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/zk-pool/types"
)

// DisclosureReport is what the pool can confirm about a disclosed note.
type DisclosureReport struct {
	Commitment types.Hash
	Nullifier  types.Hash
	LeafIndex  uint64
	Amount     *uint256.Int
	Spent      bool
}

// CheckDisclosure recomputes the commitment and nullifier of a disclosed note,
// checks the commitment is logged at the disclosed index, and reports whether
// the note has been spent.
func (p *Pool) CheckDisclosure(d *types.Disclosure) (*DisclosureReport, error) {
	commitment, nullifier, err := d.Recompute()
	if err != nil {
		return nil, err
	}
	leaf, err := p.acc.Leaf(d.LeafIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: leaf %d: %v", ErrBadDisclosure, d.LeafIndex, err)
	}
	if leaf != commitment {
		return nil, fmt.Errorf("%w: leaf %d holds %s, not %s", ErrBadDisclosure, d.LeafIndex, leaf, commitment)
	}
	return &DisclosureReport{
		Commitment: commitment,
		Nullifier:  nullifier,
		LeafIndex:  d.LeafIndex,
		Amount:     new(uint256.Int).Set(d.Amount),
		Spent:      p.IsSpent(nullifier),
	}, nil
}
