package ledger

import (
	"fmt"

	"github.com/kysee/zkpool/zk-pool/merkle"
	"github.com/kysee/zkpool/zk-pool/types"
)

// State is the pool state implied by a log.
type State struct {
	Accumulator *merkle.Accumulator
	Nullifiers  *NullifierSet
	Log         *Log
}

// Replay rebuilds the accumulator and the nullifier set from records.
// Commitments of one transaction are inserted as one batch, so the root
// history matches the one the pool recorded while committing.
func Replay(recs []Record, height, window int) (*State, error) {
	acc, err := merkle.New(height, window)
	if err != nil {
		return nil, err
	}
	st := &State{
		Accumulator: acc,
		Nullifiers:  NewNullifierSet(),
		Log:         NewLog(),
	}

	var (
		batch   []types.Hash
		batchTx uint64
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := acc.InsertBatch(batch...); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for i := range recs {
		r := &recs[i]
		if r.Tx != batchTx {
			if err := flush(); err != nil {
				return nil, err
			}
			batchTx = r.Tx
		}

		switch r.Kind {
		case KindNewCommitment:
			ev, err := r.NewCommitment()
			if err != nil {
				return nil, err
			}
			want := acc.Size() + uint64(len(batch))
			if ev.Index != want {
				return nil, fmt.Errorf("record %d: commitment index %d, expected %d", r.Seq, ev.Index, want)
			}
			batch = append(batch, ev.Commitment)
		case KindNewNullifier:
			ev, err := r.NewNullifier()
			if err != nil {
				return nil, err
			}
			if err := st.Nullifiers.Insert(ev.Nullifier); err != nil {
				return nil, fmt.Errorf("record %d: %w", r.Seq, err)
			}
		case KindPublicKey:
		default:
			return nil, fmt.Errorf("record %d: unknown kind %d", r.Seq, r.Kind)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if err := st.Log.Append(recs...); err != nil {
		return nil, err
	}
	return st, nil
}

// Commitments returns the leaf sequence recorded in recs.
func Commitments(recs []Record) ([]types.Hash, error) {
	out := make([]types.Hash, 0)
	for i := range recs {
		if recs[i].Kind != KindNewCommitment {
			continue
		}
		ev, err := recs[i].NewCommitment()
		if err != nil {
			return nil, err
		}
		out = append(out, ev.Commitment)
	}
	return out, nil
}
