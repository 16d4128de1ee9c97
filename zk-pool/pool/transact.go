package pool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/zk-pool/ledger"
	"github.com/kysee/zkpool/zk-pool/merkle"
	"github.com/kysee/zkpool/zk-pool/types"
)

// State is a step of the transaction state machine.
type State uint8

const (
	Received State = iota
	ProofVerified
	RootFresh
	BalanceOK
	NullifiersConsumed
	CommitmentsInserted
	FundsSettled
	Complete
)

var stateNames = [...]string{
	"RECEIVED",
	"PROOF_VERIFIED",
	"ROOT_FRESH",
	"BALANCE_OK",
	"NULLIFIERS_CONSUMED",
	"COMMITMENTS_INSERTED",
	"FUNDS_SETTLED",
	"COMPLETE",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Receipt describes a committed transaction.
type Receipt struct {
	Tx          uint64
	Root        types.Hash
	Commitments []types.NewCommitment
	Nullifiers  []types.Hash
}

// txView caches the values every step needs.
type txView struct {
	tx     *types.Transaction
	ext    *big.Int
	extAbs *uint256.Int
}

type request struct {
	sender   common.Address
	src      fundSource
	tx       *types.Transaction
	register *types.PublicKeyRegistered
}

// Transact validates and commits tx. A deposit is pulled from sender, who must
// have approved the pool for the amount.
func (p *Pool) Transact(ctx context.Context, sender common.Address, tx *types.Transaction) (*Receipt, error) {
	return p.process(ctx, &request{sender: sender, src: fromSender, tx: tx})
}

// RegisterAndTransact registers sender's public key and commits tx in one step.
// The key is logged only if tx commits.
func (p *Pool) RegisterAndTransact(ctx context.Context, sender common.Address, key []byte, tx *types.Transaction) (*Receipt, error) {
	ev, err := publicKeyEvent(sender, key)
	if err != nil {
		return nil, err
	}
	return p.process(ctx, &request{sender: sender, src: fromSender, tx: tx, register: ev})
}

// OnTransact commits a transaction whose deposit is already held by the pool.
// Only the pool itself may call it, on behalf of a bridged deposit.
func (p *Pool) OnTransact(ctx context.Context, caller common.Address, tx *types.Transaction) (*Receipt, error) {
	if caller != p.cfg.Self {
		return nil, &TxError{State: Received, Err: fmt.Errorf("%w: transactions with pre-funded deposits come only from the bridge handler", ErrUnauthorized)}
	}
	return p.process(ctx, &request{sender: caller, src: fromBridge, tx: tx})
}

func (p *Pool) process(ctx context.Context, req *request) (*Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rcpt, state, err := p.commit(ctx, req)
	if err != nil {
		p.logger.Debug().Err(err).Stringer("state", state).Msg("transaction rejected")
		return nil, &TxError{State: state, Err: err}
	}
	p.logger.Info().
		Uint64("tx", rcpt.Tx).
		Int("inputs", len(rcpt.Nullifiers)).
		Str("root", rcpt.Root.Hex()).
		Msg("transaction committed")
	return rcpt, nil
}

// commit runs the state machine. Nothing is mutated before every check has
// passed. The log is persisted before funds move and is truncated again if
// they cannot; in-memory state follows only once both succeeded.
func (p *Pool) commit(ctx context.Context, req *request) (*Receipt, State, error) {
	state := Received
	tx := req.tx
	if p.exhausted {
		return nil, state, ErrTreeFull
	}

	// RECEIVED -> PROOF_VERIFIED
	if err := tx.CheckShape(); err != nil {
		return nil, state, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if err := p.verifiers.Verify(tx.Proof, tx.Args.Arity(), tx.Signals()); err != nil {
		return nil, state, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	state = ProofVerified

	// -> ROOT_FRESH
	if !p.acc.IsKnownRoot(tx.Args.Root) {
		return nil, state, fmt.Errorf("%w: %s", ErrStaleRoot, tx.Args.Root)
	}
	state = RootFresh

	// double spend is checked here; the state stays ROOT_FRESH until limits pass
	seen := make(map[types.Hash]struct{}, tx.Args.Arity())
	for _, nf := range tx.Args.InputNullifiers {
		if p.nullifiers.Contains(nf) {
			return nil, state, fmt.Errorf("%w: %s", ErrDoubleSpend, nf)
		}
		if _, ok := seen[nf]; ok {
			return nil, state, fmt.Errorf("%w: %s repeated in transaction", ErrDoubleSpend, nf)
		}
		seen[nf] = struct{}{}
	}

	// -> BALANCE_OK
	view, err := p.checkLimits(tx)
	if err != nil {
		return nil, state, err
	}
	if p.acc.Remaining() < uint64(len(tx.Args.OutputCommitments)) {
		p.exhausted = true
		p.logger.Error().Uint64("leaves", p.acc.Size()).Msg("commitment tree is full")
		return nil, state, ErrTreeFull
	}
	state = BalanceOK

	// -> NULLIFIERS_CONSUMED -> COMMITMENTS_INSERTED: stage the log
	txNo := p.log.NextTx()
	var recs []ledger.Record
	if req.register != nil {
		recs = append(recs, ledger.PublicKeyRecord(txNo, req.register))
	}
	for _, nf := range tx.Args.InputNullifiers {
		recs = append(recs, ledger.NullifierRecord(txNo, &types.NewNullifier{Nullifier: nf}))
	}
	state = NullifiersConsumed

	perm, err := p.cfg.Shuffle.Permutation(tx.Args.Root, tx.Args.OutputCommitments)
	if err == nil {
		err = checkPermutation(perm, len(tx.Args.OutputCommitments))
	}
	if err != nil {
		return nil, state, fmt.Errorf("shuffle outputs: %w", err)
	}
	first := p.acc.Size()
	leaves := make([]types.Hash, len(perm))
	events := make([]types.NewCommitment, len(perm))
	for i, j := range perm {
		leaves[i] = tx.Args.OutputCommitments[j]
		events[i] = types.NewCommitment{
			Commitment:      tx.Args.OutputCommitments[j],
			Index:           first + uint64(i),
			EncryptedOutput: tx.Ext.EncryptedOutputs[j],
		}
		recs = append(recs, ledger.CommitmentRecord(txNo, &events[i]))
	}
	// nothing after settlement may fail: the leaves must be insertable as they are
	for _, l := range leaves {
		if !l.IsCanonical() {
			return nil, state, fmt.Errorf("%w: %v", ErrInvalidProof, merkle.ErrNonCanonical)
		}
	}
	from := p.log.NextSeq()
	for i := range recs {
		recs[i].Seq = from + uint64(i)
	}
	state = CommitmentsInserted

	// -> FUNDS_SETTLED
	if err := p.store.Append(ctx, recs); err != nil {
		return nil, state, fmt.Errorf("persist log: %w", err)
	}
	if err := p.settlement.Settle(p.settlementOps(req.sender, req.src, view)); err != nil {
		if terr := p.store.Truncate(ctx, from); terr != nil {
			// the store now holds a transaction that never settled
			p.logger.Error().Err(terr).Uint64("from", from).Msg("failed to roll back log")
			return nil, state, fmt.Errorf("settle: %v; roll back log: %w", err, terr)
		}
		return nil, state, fmt.Errorf("settle: %w", err)
	}
	state = FundsSettled

	// -> COMPLETE
	if err := p.nullifiers.Insert(tx.Args.InputNullifiers...); err != nil {
		return nil, state, err
	}
	if _, err := p.acc.InsertBatch(leaves...); err != nil {
		return nil, state, err
	}
	if err := p.log.Append(recs...); err != nil {
		return nil, state, err
	}
	if p.acc.Remaining() < types.NumOutput {
		p.exhausted = true
		p.logger.Error().Uint64("leaves", p.acc.Size()).Msg("commitment tree is full")
	}

	return &Receipt{
		Tx:          txNo,
		Root:        p.acc.CurrentRoot(),
		Commitments: events,
		Nullifiers:  append([]types.Hash{}, tx.Args.InputNullifiers...),
	}, Complete, nil
}

// checkLimits enforces the policy bounds the circuit does not know about.
func (p *Pool) checkLimits(tx *types.Transaction) (*txView, error) {
	ext := tx.Args.ExtAmount
	abs := new(big.Int).Abs(ext)
	if abs.Cmp(types.MaxExtAmount) > 0 {
		return nil, fmt.Errorf("%w: external amount %s", ErrLimitExceeded, ext)
	}
	fee := tx.Args.Fee.ToBig()
	if fee.Cmp(types.MaxFee) > 0 {
		return nil, fmt.Errorf("%w: fee %s", ErrLimitExceeded, fee)
	}
	if new(big.Int).Add(ext, fee).Cmp(types.FieldSize) >= 0 {
		return nil, fmt.Errorf("%w: external amount and fee overflow the field", ErrLimitExceeded)
	}
	extAbs, _ := uint256.FromBig(abs)

	switch ext.Sign() {
	case 1:
		if extAbs.Gt(p.maxDeposit) {
			return nil, fmt.Errorf("%w: deposit %s above maximum %s", ErrLimitExceeded, extAbs.Dec(), p.maxDeposit.Dec())
		}
	case -1:
		if tx.Ext.Recipient == (common.Address{}) {
			return nil, fmt.Errorf("%w: withdrawal without recipient", ErrLimitExceeded)
		}
		if extAbs.Lt(p.minWithdrawal) {
			return nil, fmt.Errorf("%w: withdrawal %s below minimum %s", ErrLimitExceeded, extAbs.Dec(), p.minWithdrawal.Dec())
		}
	}
	return &txView{tx: tx, ext: ext, extAbs: extAbs}, nil
}
