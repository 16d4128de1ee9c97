package pool

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/zk-pool/chain"
	"github.com/kysee/zkpool/zk-pool/ledger"
	"github.com/kysee/zkpool/zk-pool/prover"
	"github.com/kysee/zkpool/zk-pool/types"
	"github.com/kysee/zkpool/zk-pool/verifier/verifiertest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testHeight = 5
	govChain   = 1
)

var (
	tokenAddr     = common.HexToAddress("0x7070000000000000000000000000000000000001")
	bridgeAddr    = common.HexToAddress("0xb41d6e0000000000000000000000000000000002")
	poolAddr      = common.HexToAddress("0x9001000000000000000000000000000000000003")
	messengerAddr = common.HexToAddress("0xa3b0000000000000000000000000000000000004")
	govAddr       = common.HexToAddress("0x6070000000000000000000000000000000000005")
	recoveryAddr  = common.HexToAddress("0x3c0e000000000000000000000000000000000006")
	senderAddr    = common.HexToAddress("0x5e0d000000000000000000000000000000000007")
	relayerAddr   = common.HexToAddress("0x4e1a000000000000000000000000000000000008")
	recipientAddr = common.HexToAddress("0xDeaD00000000000000000000000000000000BEEf")
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Height = testHeight
	cfg.RootHistory = 4
	cfg.Self = poolAddr
	cfg.Messenger = messengerAddr
	cfg.GovChainID = govChain
	cfg.Governance = govAddr
	cfg.RecoveryAccount = recoveryAddr
	cfg.VerifierCache = 8
	cfg.Logger = zerolog.Nop()
	return cfg
}

type env struct {
	t         *testing.T
	ledger    *chain.Ledger
	messenger *chain.Messenger
	pool      *Pool
	builder   *prover.Builder
}

func newEnv(t *testing.T, mods ...func(*Config)) *env {
	cfg := testConfig()
	for _, m := range mods {
		m(cfg)
	}
	l := chain.NewLedger(tokenAddr, bridgeAddr)
	l.Mint(senderAddr, uint256.NewInt(1_000_000))
	l.Approve(senderAddr, poolAddr, uint256.NewInt(1_000_000))

	p, err := New(cfg, verifiertest.NewSet(cfg.Height), l)
	require.NoError(t, err)
	return &env{
		t:         t,
		ledger:    l,
		messenger: chain.NewMessenger(messengerAddr, l),
		pool:      p,
		builder:   &prover.Builder{Height: cfg.Height, Prover: verifiertest.Prover{}},
	}
}

func (e *env) wallet() *prover.Wallet {
	kp, err := types.NewKeypair()
	require.NoError(e.t, err)
	return prover.NewWallet(kp, zerolog.Nop())
}

func (e *env) build(p *prover.TxParams) *types.Transaction {
	tx, _, err := e.builder.Build(context.Background(), e.pool.Leaves(), p)
	require.NoError(e.t, err)
	return tx
}

func (e *env) transact(tx *types.Transaction) (*Receipt, error) {
	return e.pool.Transact(context.Background(), senderAddr, tx)
}

func (e *env) mustTransact(tx *types.Transaction) *Receipt {
	rcpt, err := e.transact(tx)
	require.NoError(e.t, err)
	return rcpt
}

func (e *env) deposit(w *prover.Wallet, amount uint64) *Receipt {
	rcpt := e.mustTransact(e.build(w.Deposit(uint256.NewInt(amount))))
	e.sync(w)
	return rcpt
}

func (e *env) sync(ws ...*prover.Wallet) {
	for _, w := range ws {
		_, err := w.Sync(e.pool.Records(0))
		require.NoError(e.t, err)
	}
}

func (e *env) balance(addr common.Address) uint64 {
	return e.ledger.BalanceOf(addr).Uint64()
}

func requireState(t *testing.T, err error, want State) {
	var te *TxError
	require.ErrorAs(t, err, &te)
	require.Equal(t, want, te.State)
}

func countKinds(recs []ledger.Record) map[ledger.EventKind]int {
	out := map[ledger.EventKind]int{}
	for _, r := range recs {
		out[r.Kind]++
	}
	return out
}

func TestDepositTransferWithdraw(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.wallet(), e.wallet()
	const A, B, C = 100, 60, 50

	rcpt := e.deposit(alice, A)
	require.Len(t, rcpt.Commitments, 2)
	require.Equal(t, rcpt.Root, e.pool.CurrentRoot())
	require.Equal(t, uint64(A), alice.Balance().Uint64())
	require.Equal(t, uint64(A), e.balance(poolAddr))

	p, err := alice.Transfer(bob.Keypair().PublicKey(), uint256.NewInt(B), uint256.NewInt(0))
	require.NoError(t, err)
	e.mustTransact(e.build(p))
	e.sync(alice, bob)
	require.Equal(t, uint64(A-B), alice.Balance().Uint64())
	require.Equal(t, uint64(B), bob.Balance().Uint64())
	require.Equal(t, uint64(A), e.balance(poolAddr))

	p, err = bob.Withdraw(uint256.NewInt(C), recipientAddr, uint256.NewInt(0), false)
	require.NoError(t, err)
	e.mustTransact(e.build(p))
	e.sync(alice, bob)
	require.Equal(t, uint64(B-C), bob.Balance().Uint64())

	require.Equal(t, uint64(C), e.balance(recipientAddr))
	require.Equal(t, uint64((A-B)+(B-C)), e.balance(poolAddr))
	require.Equal(t, uint64(1_000_000-A), e.balance(senderAddr))
	require.Zero(t, e.balance(bridgeAddr))

	kinds := countKinds(e.pool.Records(0))
	require.Equal(t, 3*2, kinds[ledger.KindNewCommitment])
	require.Equal(t, 3*2, kinds[ledger.KindNewNullifier])
	require.Equal(t, uint64(6), uint64(len(e.pool.Leaves())))
}

func TestDoubleSpend(t *testing.T) {
	e := newEnv(t)
	alice := e.wallet()
	e.deposit(alice, 10)

	p1, err := alice.Withdraw(uint256.NewInt(10), recipientAddr, uint256.NewInt(0), false)
	require.NoError(t, err)
	p2, err := alice.Withdraw(uint256.NewInt(5), recipientAddr, uint256.NewInt(0), false)
	require.NoError(t, err)
	tx1, tx2 := e.build(p1), e.build(p2)
	require.Equal(t, tx1.Args.InputNullifiers[0], tx2.Args.InputNullifiers[0])

	// the later-built transaction lands first
	e.mustTransact(tx2)
	root := e.pool.CurrentRoot()

	_, err = e.transact(tx1)
	require.ErrorIs(t, err, ErrDoubleSpend)
	requireState(t, err, RootFresh)
	require.Equal(t, root, e.pool.CurrentRoot())
	require.True(t, e.pool.IsSpent(tx1.Args.InputNullifiers[0]))
	require.False(t, e.pool.IsSpent(tx1.Args.InputNullifiers[1]))

	// replaying the committed transaction is caught as well
	_, err = e.transact(tx2)
	require.ErrorIs(t, err, ErrDoubleSpend)
}

func TestDuplicateNullifierInTransaction(t *testing.T) {
	e := newEnv(t)
	// a verifier that accepts anything: the pool must still reject the repeat
	e.pool.verifiers = acceptAll()

	alice := e.wallet()
	tx := e.build(alice.Deposit(uint256.NewInt(1)))
	tx.Args.InputNullifiers[1] = tx.Args.InputNullifiers[0]
	_, err := e.transact(tx)
	require.ErrorIs(t, err, ErrDoubleSpend)
	require.Empty(t, e.pool.Records(0))
}

// aliasHash encodes the same field element as h, shifted by the modulus.
func aliasHash(h types.Hash) types.Hash {
	return types.BytesToHash(new(big.Int).Add(h.Big(), types.FieldSize).Bytes())
}

func TestAliasedNullifierReplay(t *testing.T) {
	e := newEnv(t)
	alice, other := e.wallet(), e.wallet()
	e.deposit(alice, 10)

	p, err := alice.Withdraw(uint256.NewInt(10), recipientAddr, uint256.NewInt(0), false)
	require.NoError(t, err)
	tx := e.build(p)
	e.mustTransact(tx)
	require.Equal(t, uint64(10), e.balance(recipientAddr))

	// the pool holds someone else's funds the replay would drain
	e.deposit(other, 100)
	root := e.pool.CurrentRoot()
	n := len(e.pool.Records(0))

	replay := *tx
	replay.Args.InputNullifiers = make([]types.Hash, len(tx.Args.InputNullifiers))
	for i, nf := range tx.Args.InputNullifiers {
		replay.Args.InputNullifiers[i] = aliasHash(nf)
		require.Equal(t, nf.Element(), replay.Args.InputNullifiers[i].Element())
	}
	_, err = e.transact(&replay)
	require.ErrorIs(t, err, ErrInvalidProof)
	requireState(t, err, Received)

	require.Equal(t, uint64(10), e.balance(recipientAddr))
	require.Equal(t, uint64(100), e.balance(poolAddr))
	require.Equal(t, root, e.pool.CurrentRoot())
	require.Len(t, e.pool.Records(0), n)
}

func TestNonCanonicalCommitment(t *testing.T) {
	for _, verifiers := range []string{"reference", "accept-all"} {
		e := newEnv(t)
		if verifiers == "accept-all" {
			e.pool.verifiers = acceptAll()
		}
		alice := e.wallet()
		tx := e.build(alice.Deposit(uint256.NewInt(10)))
		tx.Args.OutputCommitments[0] = aliasHash(tx.Args.OutputCommitments[0])
		root := e.pool.CurrentRoot()

		_, err := e.transact(tx)
		require.ErrorIs(t, err, ErrInvalidProof, verifiers)
		requireState(t, err, Received)

		require.Zero(t, e.balance(poolAddr))
		require.Equal(t, uint64(1_000_000), e.balance(senderAddr))
		require.Equal(t, root, e.pool.CurrentRoot())
		require.Empty(t, e.pool.Records(0))
		for _, nf := range tx.Args.InputNullifiers {
			require.False(t, e.pool.IsSpent(nf))
		}

		// the untouched transaction still commits
		tx.Args.OutputCommitments[0] = types.BytesToHash(new(big.Int).Sub(tx.Args.OutputCommitments[0].Big(), types.FieldSize).Bytes())
		e.mustTransact(tx)
		require.Equal(t, uint64(10), e.balance(poolAddr))
	}
}

func TestNonCanonicalRoot(t *testing.T) {
	e := newEnv(t)
	alice := e.wallet()
	e.deposit(alice, 4)

	p, err := alice.Withdraw(uint256.NewInt(4), recipientAddr, uint256.NewInt(0), false)
	require.NoError(t, err)
	tx := e.build(p)
	tx.Args.Root = aliasHash(tx.Args.Root)

	_, err = e.transact(tx)
	require.ErrorIs(t, err, ErrInvalidProof)
	requireState(t, err, Received)
	require.Zero(t, e.balance(recipientAddr))
}

func TestFreshnessWindow(t *testing.T) {
	e := newEnv(t)
	w := e.pool.Config().RootHistory
	alice, other := e.wallet(), e.wallet()

	e.deposit(alice, 7)
	p, err := alice.Withdraw(uint256.NewInt(7), recipientAddr, uint256.NewInt(0), false)
	require.NoError(t, err)
	stale := e.build(p)

	// W-1 newer roots: the proof's root is the oldest one still held
	for i := 0; i < w-1; i++ {
		e.deposit(other, 1)
	}
	require.True(t, e.pool.IsKnownRoot(stale.Args.Root))
	e.mustTransact(stale)

	bob := e.wallet()
	e.deposit(bob, 3)
	p, err = bob.Withdraw(uint256.NewInt(3), recipientAddr, uint256.NewInt(0), false)
	require.NoError(t, err)
	evicted := e.build(p)
	for i := 0; i < w; i++ {
		e.deposit(other, 1)
	}
	require.False(t, e.pool.IsKnownRoot(evicted.Args.Root))
	_, err = e.transact(evicted)
	require.ErrorIs(t, err, ErrStaleRoot)
	requireState(t, err, ProofVerified)
}

func TestInvalidProof(t *testing.T) {
	e := newEnv(t)
	alice := e.wallet()
	tx := e.build(alice.Deposit(uint256.NewInt(5)))
	root := e.pool.CurrentRoot()

	// a relayer moving value from the deposit into its fee
	tx.Args.Fee = uint256.NewInt(1)
	tx.Ext.Relayer = relayerAddr
	_, err := e.transact(tx)
	require.ErrorIs(t, err, ErrInvalidProof)
	requireState(t, err, Received)

	tx.Args.Fee = uint256.NewInt(0)
	tx.Proof = tx.Proof[:len(tx.Proof)-2]
	_, err = e.transact(tx)
	require.ErrorIs(t, err, ErrInvalidProof)

	tx.Args.InputNullifiers = tx.Args.InputNullifiers[:1]
	_, err = e.transact(tx)
	require.ErrorIs(t, err, ErrInvalidProof)

	require.Equal(t, root, e.pool.CurrentRoot())
	require.Zero(t, e.balance(poolAddr))
}

func TestRelayerFee(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.wallet(), e.wallet()
	e.deposit(alice, 20)

	p, err := alice.Transfer(bob.Keypair().PublicKey(), uint256.NewInt(5), uint256.NewInt(2))
	require.NoError(t, err)
	p.Relayer = relayerAddr
	tx := e.build(p)
	require.Equal(t, int64(0), tx.Args.ExtAmount.Int64())

	// the relayer submits; nothing is pulled from it
	_, err = e.pool.Transact(context.Background(), relayerAddr, tx)
	require.NoError(t, err)
	e.sync(alice, bob)

	require.Equal(t, uint64(2), e.balance(relayerAddr))
	require.Equal(t, uint64(18), e.balance(poolAddr))
	require.Equal(t, uint64(13), alice.Balance().Uint64())
	require.Equal(t, uint64(5), bob.Balance().Uint64())
}

func TestSixteenInputs(t *testing.T) {
	e := newEnv(t)
	alice := e.wallet()
	for _, a := range []uint64{4, 5, 6} {
		e.deposit(alice, a)
	}

	p, err := alice.Withdraw(uint256.NewInt(15), recipientAddr, uint256.NewInt(0), false)
	require.NoError(t, err)
	require.Len(t, p.Inputs, 3)
	tx := e.build(p)
	require.Len(t, tx.Args.InputNullifiers, types.Arity16)

	before := len(e.pool.Records(0))
	rcpt := e.mustTransact(tx)
	require.Len(t, rcpt.Nullifiers, types.Arity16)

	kinds := countKinds(e.pool.Records(uint64(before)))
	require.Equal(t, types.Arity16, kinds[ledger.KindNewNullifier])
	require.Equal(t, 2, kinds[ledger.KindNewCommitment])
	require.Equal(t, uint64(15), e.balance(recipientAddr))

	e.sync(alice)
	require.True(t, alice.Balance().IsZero())
}

func TestLimits(t *testing.T) {
	e := newEnv(t)
	gov := e.messenger.Relay(govChain, govAddr)

	require.NoError(t, e.pool.ConfigureLimits(gov, uint256.NewInt(5), uint256.NewInt(50)))
	require.Equal(t, uint64(5), e.pool.MinimumWithdrawalAmount().Uint64())
	require.Equal(t, uint64(50), e.pool.MaximumDepositAmount().Uint64())

	alice := e.wallet()
	root := e.pool.CurrentRoot()
	_, err := e.transact(e.build(alice.Deposit(uint256.NewInt(51))))
	require.ErrorIs(t, err, ErrLimitExceeded)
	requireState(t, err, RootFresh)
	require.Equal(t, root, e.pool.CurrentRoot())
	require.Empty(t, e.pool.Records(0))

	e.deposit(alice, 50)

	p, err := alice.Withdraw(uint256.NewInt(4), recipientAddr, uint256.NewInt(0), false)
	require.NoError(t, err)
	_, err = e.transact(e.build(p))
	require.ErrorIs(t, err, ErrLimitExceeded)

	p, err = alice.Withdraw(uint256.NewInt(5), common.Address{}, uint256.NewInt(0), false)
	require.NoError(t, err)
	_, err = e.transact(e.build(p))
	require.ErrorIs(t, err, ErrLimitExceeded)

	p, err = alice.Withdraw(uint256.NewInt(5), recipientAddr, uint256.NewInt(0), false)
	require.NoError(t, err)
	e.mustTransact(e.build(p))

	require.NoError(t, e.pool.SetMinimumWithdrawalAmount(gov, uint256.NewInt(1)))
	require.NoError(t, e.pool.SetMaximumDepositAmount(gov, uint256.NewInt(7)))
	require.Equal(t, uint64(1), e.pool.MinimumWithdrawalAmount().Uint64())
	require.Equal(t, uint64(7), e.pool.MaximumDepositAmount().Uint64())

	tooBig := uint256.MustFromBig(types.MaxExtAmount)
	tooBig.AddUint64(tooBig, 1)
	require.ErrorIs(t, e.pool.SetMaximumDepositAmount(gov, tooBig), ErrLimitExceeded)
}

func TestGovernanceUnauthorized(t *testing.T) {
	e := newEnv(t)
	for _, msg := range []chain.CrossChainMessage{
		{Caller: senderAddr, SourceChainID: govChain, Sender: govAddr},
		e.messenger.Relay(govChain+1, govAddr),
		e.messenger.Relay(govChain, senderAddr),
	} {
		require.ErrorIs(t, e.pool.ConfigureLimits(msg, uint256.NewInt(1), uint256.NewInt(1)), ErrUnauthorized)
		require.ErrorIs(t, e.pool.SetMinimumWithdrawalAmount(msg, uint256.NewInt(1)), ErrUnauthorized)
		require.ErrorIs(t, e.pool.SetMaximumDepositAmount(msg, uint256.NewInt(1)), ErrUnauthorized)
	}
	require.Equal(t, testConfig().MaxDeposit, e.pool.MaximumDepositAmount())
}

func TestOnTransactDirectCall(t *testing.T) {
	e := newEnv(t)
	alice := e.wallet()
	tx := e.build(alice.Deposit(uint256.NewInt(5)))

	_, err := e.pool.OnTransact(context.Background(), senderAddr, tx)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Empty(t, e.pool.Records(0))
}

func TestSettlementFailureRollsBack(t *testing.T) {
	e := newEnv(t)
	alice := e.wallet()
	tx := e.build(alice.Deposit(uint256.NewInt(5)))
	root := e.pool.CurrentRoot()

	// the submitter has not approved the pool
	_, err := e.pool.Transact(context.Background(), relayerAddr, tx)
	require.ErrorIs(t, err, chain.ErrInsufficientAllowance)
	requireState(t, err, CommitmentsInserted)

	require.Equal(t, root, e.pool.CurrentRoot())
	require.Empty(t, e.pool.Records(0))
	recs, err := e.pool.store.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, recs)
	for _, nf := range tx.Args.InputNullifiers {
		require.False(t, e.pool.IsSpent(nf))
	}

	// the same transaction goes through once funded
	e.mustTransact(tx)
}

func TestRegister(t *testing.T) {
	e := newEnv(t)
	alice := e.wallet()

	require.Error(t, e.pool.Register(context.Background(), senderAddr, []byte{1, 2, 3}))
	require.NoError(t, e.pool.Register(context.Background(), senderAddr, alice.Keypair().PubBytes()))

	recs := e.pool.Records(0)
	require.Len(t, recs, 1)
	ev, err := recs[0].PublicKey()
	require.NoError(t, err)
	require.Equal(t, senderAddr, ev.Owner)
	require.Equal(t, alice.Keypair().PubBytes(), ev.Key)
}

func TestRegisterAndTransact(t *testing.T) {
	e := newEnv(t)
	alice := e.wallet()
	key := alice.Keypair().PubBytes()

	bad := e.build(alice.Deposit(uint256.NewInt(5)))
	bad.Proof = nil
	_, err := e.pool.RegisterAndTransact(context.Background(), senderAddr, key, bad)
	require.ErrorIs(t, err, ErrInvalidProof)
	require.Empty(t, e.pool.Records(0))

	_, err = e.pool.RegisterAndTransact(context.Background(), senderAddr, key, e.build(alice.Deposit(uint256.NewInt(5))))
	require.NoError(t, err)

	kinds := countKinds(e.pool.Records(0))
	require.Equal(t, 1, kinds[ledger.KindPublicKey])
	require.Equal(t, 2, kinds[ledger.KindNewCommitment])

	// registration and transaction share one log transaction
	recs := e.pool.Records(0)
	for _, r := range recs {
		require.Equal(t, recs[0].Tx, r.Tx)
	}
}

func TestTreeFull(t *testing.T) {
	e := newEnv(t, func(c *Config) { c.Height = 2 })
	alice := e.wallet()
	e.deposit(alice, 1)
	require.False(t, e.pool.Exhausted())
	e.deposit(alice, 1)
	require.True(t, e.pool.Exhausted())

	_, err := e.transact(e.build(alice.Deposit(uint256.NewInt(1))))
	require.ErrorIs(t, err, ErrTreeFull)
}
