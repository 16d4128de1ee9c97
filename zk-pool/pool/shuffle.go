package pool

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"

	"github.com/kysee/zkpool/utils"
	"github.com/kysee/zkpool/zk-pool/types"
)

// Shuffler decides the order in which a transaction's outputs are inserted
// and logged. It returns a permutation of the indices of commitments.
type Shuffler interface {
	Permutation(root types.Hash, commitments []types.Hash) ([]int, error)
}

// CommitmentOrder sorts outputs by MiMC(root, commitment). The order depends
// only on the spent root and the commitment values.
type CommitmentOrder struct{}

func (CommitmentOrder) Permutation(root types.Hash, commitments []types.Hash) ([]int, error) {
	keys := make([][32]byte, len(commitments))
	perm := make([]int, len(commitments))
	for i, c := range commitments {
		k := utils.HashElements(root.Element(), c.Element())
		keys[i] = k.Bytes()
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return bytes.Compare(keys[perm[a]][:], keys[perm[b]][:]) < 0
	})
	return perm, nil
}

// RandomOrder draws a uniform permutation from crypto/rand.
type RandomOrder struct{}

func (RandomOrder) Permutation(_ types.Hash, commitments []types.Hash) ([]int, error) {
	perm := make([]int, len(commitments))
	for i := range perm {
		perm[i] = i
	}
	for i := len(perm) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, err
		}
		perm[i], perm[j.Int64()] = perm[j.Int64()], perm[i]
	}
	return perm, nil
}

func ParseShuffler(name string) (Shuffler, error) {
	switch name {
	case "commitment":
		return CommitmentOrder{}, nil
	case "random":
		return RandomOrder{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown shuffle %q", ErrInvalidConfig, name)
	}
}

func checkPermutation(perm []int, n int) error {
	if len(perm) != n {
		return fmt.Errorf("permutation of %d outputs has %d entries", n, len(perm))
	}
	seen := make([]bool, n)
	for _, p := range perm {
		if p < 0 || p >= n || seen[p] {
			return fmt.Errorf("not a permutation: %v", perm)
		}
		seen[p] = true
	}
	return nil
}
