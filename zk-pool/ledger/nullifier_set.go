package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kysee/zkpool/zk-pool/types"
)

var ErrNullifierSpent = errors.New("nullifier already spent")

// NullifierSet is the append-only registry of spent nullifiers.
type NullifierSet struct {
	mu    sync.RWMutex
	set   map[types.Hash]struct{}
	order []types.Hash
}

func NewNullifierSet() *NullifierSet {
	return &NullifierSet{
		set: make(map[types.Hash]struct{}),
	}
}

func (ns *NullifierSet) Contains(n types.Hash) bool {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	_, ok := ns.set[n]
	return ok
}

// Insert adds every nullifier, or none of them if any one is already present
// or appears twice in the batch. The check and the write happen under one lock.
func (ns *NullifierSet) Insert(nullifiers ...types.Hash) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	seen := make(map[types.Hash]struct{}, len(nullifiers))
	for _, n := range nullifiers {
		if _, ok := ns.set[n]; ok {
			return fmt.Errorf("%w: %s", ErrNullifierSpent, n)
		}
		if _, ok := seen[n]; ok {
			return fmt.Errorf("%w: %s repeated", ErrNullifierSpent, n)
		}
		seen[n] = struct{}{}
	}
	for _, n := range nullifiers {
		ns.set[n] = struct{}{}
		ns.order = append(ns.order, n)
	}
	return nil
}

func (ns *NullifierSet) Len() int {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.order)
}

// All returns the nullifiers in insertion order.
func (ns *NullifierSet) All() []types.Hash {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	out := make([]types.Hash, len(ns.order))
	copy(out, ns.order)
	return out
}
