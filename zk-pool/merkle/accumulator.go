package merkle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kysee/zkpool/zk-pool/types"
)

var (
	ErrTreeFull     = errors.New("merkle tree is full")
	ErrBadIndex     = errors.New("leaf index out of range")
	ErrBadHeight    = errors.New("invalid tree height")
	ErrBadWindow    = errors.New("invalid root history size")
	ErrNonCanonical = errors.New("leaf is not a canonical field element")
)

// Accumulator is an append-only Merkle tree of fixed height. Leaves are
// placed left to right; unused leaves hold ZeroLeaf. It remembers the last
// `window` roots, the current one included.
type Accumulator struct {
	mu sync.RWMutex

	height int
	leaves []types.Hash

	// filled[i] is the last left child seen at level i
	filled []types.Hash

	roots   []types.Hash
	rootIdx int
}

func New(height, window int) (*Accumulator, error) {
	if height < 1 || height > MaxHeight {
		return nil, fmt.Errorf("%w: %d", ErrBadHeight, height)
	}
	if window < 1 {
		return nil, fmt.Errorf("%w: %d", ErrBadWindow, window)
	}
	a := &Accumulator{
		height: height,
		filled: make([]types.Hash, height),
		roots:  make([]types.Hash, window),
	}
	for i := 0; i < height; i++ {
		a.filled[i] = zeros[i]
	}
	a.roots[0] = zeros[height]
	return a, nil
}

func (a *Accumulator) Height() int {
	return a.height
}

func (a *Accumulator) Window() int {
	return len(a.roots)
}

func (a *Accumulator) Capacity() uint64 {
	return uint64(1) << a.height
}

func (a *Accumulator) Size() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return uint64(len(a.leaves))
}

// Remaining returns how many leaves can still be inserted.
func (a *Accumulator) Remaining() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Capacity() - uint64(len(a.leaves))
}

// Insert appends one leaf and records the new root.
func (a *Accumulator) Insert(leaf types.Hash) (uint64, error) {
	return a.InsertBatch(leaf)
}

// InsertBatch appends leaves in order and records a single root for the batch.
// Either every leaf is inserted or none is.
func (a *Accumulator) InsertBatch(leaves ...types.Hash) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := uint64(len(a.leaves))
	if next+uint64(len(leaves)) > a.Capacity() {
		return 0, ErrTreeFull
	}
	for _, l := range leaves {
		if !l.IsCanonical() {
			return 0, fmt.Errorf("%w: %s", ErrNonCanonical, l)
		}
	}

	var root types.Hash
	for _, l := range leaves {
		root = a.append(l)
	}
	if len(leaves) > 0 {
		a.rootIdx = (a.rootIdx + 1) % len(a.roots)
		a.roots[a.rootIdx] = root
	}
	return next, nil
}

// append walks from the new leaf to the root in O(height).
func (a *Accumulator) append(leaf types.Hash) types.Hash {
	idx := uint64(len(a.leaves))
	a.leaves = append(a.leaves, leaf)

	cur := leaf
	for i := 0; i < a.height; i++ {
		var left, right types.Hash
		if idx%2 == 0 {
			left, right = cur, zeros[i]
			a.filled[i] = cur
		} else {
			left, right = a.filled[i], cur
		}
		cur = HashLeftRight(left, right)
		idx /= 2
	}
	return cur
}

func (a *Accumulator) CurrentRoot() types.Hash {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.roots[a.rootIdx]
}

// IsKnownRoot reports whether root is the current root or one of the roots
// still held in the history window. The zero hash is never known.
func (a *Accumulator) IsKnownRoot(root types.Hash) bool {
	if root.IsZero() {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	i := a.rootIdx
	for range a.roots {
		if a.roots[i] == root {
			return true
		}
		if i == 0 {
			i = len(a.roots)
		}
		i--
	}
	return false
}

// Leaves returns a copy of the leaf sequence.
func (a *Accumulator) Leaves() []types.Hash {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]types.Hash, len(a.leaves))
	copy(out, a.leaves)
	return out
}

func (a *Accumulator) Leaf(index uint64) (types.Hash, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if index >= uint64(len(a.leaves)) {
		return types.Hash{}, ErrBadIndex
	}
	return a.leaves[index], nil
}

// Path returns the inclusion path of the leaf at index against the current root.
func (a *Accumulator) Path(index uint64) (*Path, error) {
	return PathFromLeaves(a.height, a.Leaves(), index)
}
