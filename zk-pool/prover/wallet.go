package prover

import (
	"errors"
	"sort"
	"sync"

	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/zk-pool/ledger"
	"github.com/kysee/zkpool/zk-pool/types"
	"github.com/rs/zerolog"
)

// OwnedNote is an unspent note found while scanning the log.
type OwnedNote struct {
	Note       *types.Note
	Index      uint64
	Commitment types.Hash
	Nullifier  types.Hash
}

// Wallet tracks the notes of one keypair by scanning the public log.
type Wallet struct {
	mu sync.RWMutex

	kp      *types.Keypair
	notes   map[types.Hash]*OwnedNote // by nullifier
	scanned uint64
	logger  zerolog.Logger
}

func NewWallet(kp *types.Keypair, logger zerolog.Logger) *Wallet {
	return &Wallet{
		kp:     kp,
		notes:  make(map[types.Hash]*OwnedNote),
		logger: logger.With().Str("module", "wallet").Str("address", kp.Address()).Logger(),
	}
}

func (w *Wallet) Keypair() *types.Keypair {
	return w.kp
}

func (w *Wallet) Address() string {
	return w.kp.Address()
}

// Sync scans the records not seen yet. Outputs that decrypt under the wallet's
// key and open their logged commitment are added; notes whose nullifier is
// logged are dropped. It returns the number of notes found.
func (w *Wallet) Sync(recs []ledger.Record) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	found := 0
	for i := range recs {
		r := &recs[i]
		if r.Seq < w.scanned {
			continue
		}
		switch r.Kind {
		case ledger.KindNewCommitment:
			ev, err := r.NewCommitment()
			if err != nil {
				return found, err
			}
			note, _, err := types.DecryptNote(w.kp, ev.EncryptedOutput)
			if errors.Is(err, types.ErrDecryption) {
				continue
			} else if err != nil {
				return found, err
			}
			if note.Commitment() != ev.Commitment {
				w.logger.Warn().Uint64("index", ev.Index).Msg("decrypted output does not open its commitment")
				continue
			}
			nf, _, err := note.Nullifier(ev.Index, w.kp)
			if err != nil {
				return found, err
			}
			w.notes[nf] = &OwnedNote{Note: note, Index: ev.Index, Commitment: ev.Commitment, Nullifier: nf}
			found++
		case ledger.KindNewNullifier:
			ev, err := r.NewNullifier()
			if err != nil {
				return found, err
			}
			delete(w.notes, ev.Nullifier)
		}
		w.scanned = r.Seq + 1
	}
	return found, nil
}

// Unspent returns the unspent notes ordered by leaf index. Zero-value notes are skipped.
func (w *Wallet) Unspent() []*OwnedNote {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*OwnedNote, 0, len(w.notes))
	for _, n := range w.notes {
		if n.Note.Amount.IsZero() {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (w *Wallet) Balance() *uint256.Int {
	ret := uint256.NewInt(0)
	for _, n := range w.Unspent() {
		ret.Add(ret, n.Note.Amount)
	}
	return ret
}
