package merkle

import (
	"fmt"

	"github.com/kysee/zkpool/zk-pool/types"
)

// Path is a Merkle inclusion path. Siblings[i] is the sibling at level i, leaf level first.
type Path struct {
	Index    uint64
	Siblings []types.Hash
}

// Root folds leaf up the path.
func (p *Path) Root(leaf types.Hash) types.Hash {
	cur := leaf
	idx := p.Index
	for _, sib := range p.Siblings {
		if idx%2 == 0 {
			cur = HashLeftRight(cur, sib)
		} else {
			cur = HashLeftRight(sib, cur)
		}
		idx /= 2
	}
	return cur
}

func Verify(root, leaf types.Hash, p *Path) bool {
	return p.Root(leaf) == root
}

// PathFromLeaves rebuilds the tree of the given height from a leaf log and
// returns the path of the leaf at index. It needs nothing but the public
// sequence of commitments.
func PathFromLeaves(height int, leaves []types.Hash, index uint64) (*Path, error) {
	if height < 1 || height > MaxHeight {
		return nil, fmt.Errorf("%w: %d", ErrBadHeight, height)
	}
	if uint64(len(leaves)) > uint64(1)<<height {
		return nil, ErrTreeFull
	}
	if index >= uint64(len(leaves)) {
		return nil, ErrBadIndex
	}

	p := &Path{Index: index, Siblings: make([]types.Hash, height)}
	layer := make([]types.Hash, len(leaves))
	copy(layer, leaves)

	idx := index
	for level := 0; level < height; level++ {
		if len(layer)%2 != 0 {
			layer = append(layer, zeros[level])
		}
		p.Siblings[level] = layer[idx^1]

		next := make([]types.Hash, len(layer)/2)
		for i := 0; i < len(layer); i += 2 {
			next[i/2] = HashLeftRight(layer[i], layer[i+1])
		}
		layer = next
		idx /= 2
	}
	return p, nil
}

// RootOf computes the root of a tree of the given height holding leaves.
func RootOf(height int, leaves []types.Hash) (types.Hash, error) {
	if height < 1 || height > MaxHeight {
		return types.Hash{}, fmt.Errorf("%w: %d", ErrBadHeight, height)
	}
	if len(leaves) == 0 {
		return zeros[height], nil
	}
	p, err := PathFromLeaves(height, leaves, 0)
	if err != nil {
		return types.Hash{}, err
	}
	return p.Root(leaves[0]), nil
}
