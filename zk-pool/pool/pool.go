// Package pool implements the shielded pool: the validator every transaction
// goes through, the bridged deposit handler, governance limits and compliance checks.
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/zk-pool/crypto"
	"github.com/kysee/zkpool/zk-pool/ledger"
	"github.com/kysee/zkpool/zk-pool/merkle"
	"github.com/kysee/zkpool/zk-pool/types"
	"github.com/kysee/zkpool/zk-pool/verifier"
	"github.com/rs/zerolog"
)

// Pool is a shielded pool instance. It owns the commitment accumulator, the
// nullifier set and the public log, and mutates them only through the
// transaction state machine. Every transaction is serialized on mu; read
// queries may run concurrently with a transaction in flight.
//
// The log held by store is the source of truth: a Pool opened on the same
// store replays to the same roots, leaves and nullifiers.
type Pool struct {
	mu sync.Mutex

	cfg        *Config
	verifiers  *verifier.Set
	settlement Settlement
	store      ledger.Store

	acc        *merkle.Accumulator
	nullifiers *ledger.NullifierSet
	log        *ledger.Log

	minWithdrawal *uint256.Int
	maxDeposit    *uint256.Int
	exhausted     bool

	logger zerolog.Logger
}

// New creates an empty pool logging to memory.
func New(cfg *Config, verifiers *verifier.Set, settlement Settlement) (*Pool, error) {
	return Open(context.Background(), cfg, verifiers, settlement, ledger.NewMemoryStore())
}

// Open restores a pool by replaying the log held in store.
func Open(ctx context.Context, cfg *Config, verifiers *verifier.Set, settlement Settlement, store ledger.Store) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	recs, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load log: %w", err)
	}
	st, err := ledger.Replay(recs, cfg.Height, cfg.RootHistory)
	if err != nil {
		return nil, fmt.Errorf("replay log: %w", err)
	}

	vs, err := cachedSet(verifiers, cfg.VerifierCache)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:           cfg,
		verifiers:     vs,
		settlement:    settlement,
		store:         store,
		acc:           st.Accumulator,
		nullifiers:    st.Nullifiers,
		log:           st.Log,
		minWithdrawal: new(uint256.Int).Set(cfg.MinWithdrawal),
		maxDeposit:    new(uint256.Int).Set(cfg.MaxDeposit),
		logger:        cfg.Logger.With().Str("module", "pool").Logger(),
	}
	p.exhausted = p.acc.Remaining() < types.NumOutput

	p.logger.Info().
		Int("height", cfg.Height).
		Int("rootHistory", cfg.RootHistory).
		Uint64("leaves", p.acc.Size()).
		Int("records", len(recs)).
		Str("root", p.acc.CurrentRoot().Hex()).
		Msg("pool opened")
	return p, nil
}

func cachedSet(vs *verifier.Set, size int) (*verifier.Set, error) {
	if size == 0 {
		return vs, nil
	}
	out := &verifier.Set{}
	for _, slot := range []struct {
		in  verifier.Verifier
		out *verifier.Verifier
	}{
		{vs.Two, &out.Two},
		{vs.Sixteen, &out.Sixteen},
	} {
		if slot.in == nil {
			continue
		}
		c, err := verifier.NewCached(slot.in, size)
		if err != nil {
			return nil, err
		}
		*slot.out = c
	}
	return out, nil
}

// Close releases the log store. The pool must not be used afterwards.
func (p *Pool) Close() error {
	return p.store.Close()
}

// Config returns the configuration the pool was opened with. Limits changed
// through governance are reported by MinimumWithdrawalAmount and
// MaximumDepositAmount, not here.
func (p *Pool) Config() *Config {
	return p.cfg
}

// CurrentRoot returns the root after the last committed transaction.
func (p *Pool) CurrentRoot() types.Hash {
	return p.acc.CurrentRoot()
}

// IsKnownRoot reports whether a proof built against root would pass the
// freshness check, i.e. root is one of the last RootHistory roots.
func (p *Pool) IsKnownRoot(root types.Hash) bool {
	return p.acc.IsKnownRoot(root)
}

// IsSpent reports whether nullifier has been consumed by a committed transaction.
func (p *Pool) IsSpent(nullifier types.Hash) bool {
	return p.nullifiers.Contains(nullifier)
}

// Leaves returns the commitments in insertion order. Clients rebuild Merkle paths from it.
func (p *Pool) Leaves() []types.Hash {
	return p.acc.Leaves()
}

// Records returns the public log starting at seq from.
func (p *Pool) Records(from uint64) []ledger.Record {
	return p.log.Records(from)
}

// Checkpoint returns the Merkle digest of the public log.
func (p *Pool) Checkpoint() []byte {
	return p.log.Checkpoint()
}

func (p *Pool) ProveRecord(seq uint64) (*ledger.RecordProof, error) {
	return p.log.ProveRecord(seq)
}

// Exhausted reports whether the tree is too full for another transaction.
func (p *Pool) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exhausted
}

func (p *Pool) MinimumWithdrawalAmount() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.minWithdrawal)
}

func (p *Pool) MaximumDepositAmount() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.maxDeposit)
}

// Register publishes owner's shielded public key so others can pay to it.
func (p *Pool) Register(ctx context.Context, owner common.Address, key []byte) error {
	ev, err := publicKeyEvent(owner, key)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rec := ledger.PublicKeyRecord(p.log.NextTx(), ev)
	rec.Seq = p.log.NextSeq()
	if err := p.store.Append(ctx, []ledger.Record{rec}); err != nil {
		return fmt.Errorf("persist log: %w", err)
	}
	if err := p.log.Append(rec); err != nil {
		return err
	}
	p.logger.Debug().Str("owner", owner.Hex()).Msg("public key registered")
	return nil
}

func publicKeyEvent(owner common.Address, key []byte) (*types.PublicKeyRegistered, error) {
	if _, err := crypto.ParsePub(key); err != nil {
		return nil, fmt.Errorf("%w: public key: %v", types.ErrInvalidEncoding, err)
	}
	return &types.PublicKeyRegistered{Owner: owner, Key: append([]byte{}, key...)}, nil
}
