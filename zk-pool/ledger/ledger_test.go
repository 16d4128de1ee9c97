package ledger

import (
	"context"
	"os"
	"testing"

	"github.com/kysee/zkpool/zk-pool/merkle"
	"github.com/kysee/zkpool/zk-pool/types"
	"github.com/stretchr/testify/require"
)

func TestNullifierSet(t *testing.T) {
	ns := NewNullifierSet()
	a, b, c := types.RandomField(), types.RandomField(), types.RandomField()

	require.False(t, ns.Contains(a))
	require.NoError(t, ns.Insert(a, b))
	require.True(t, ns.Contains(a))
	require.True(t, ns.Contains(b))

	// never inserted twice, and a failing batch leaves no trace
	require.ErrorIs(t, ns.Insert(c, a), ErrNullifierSpent)
	require.False(t, ns.Contains(c))

	require.ErrorIs(t, ns.Insert(c, c), ErrNullifierSpent)
	require.False(t, ns.Contains(c))

	require.Equal(t, []types.Hash{a, b}, ns.All())
}

// buildLog writes txs transactions of two commitments and two nullifiers each.
func buildLog(t *testing.T, txs int) []Record {
	l := NewLog()
	var leaf uint64
	for tx := 0; tx < txs; tx++ {
		recs := []Record{
			CommitmentRecord(uint64(tx), &types.NewCommitment{Commitment: types.RandomField(), Index: leaf, EncryptedOutput: types.RandBytes(16)}),
			CommitmentRecord(uint64(tx), &types.NewCommitment{Commitment: types.RandomField(), Index: leaf + 1, EncryptedOutput: types.RandBytes(16)}),
			NullifierRecord(uint64(tx), &types.NewNullifier{Nullifier: types.RandomField()}),
			NullifierRecord(uint64(tx), &types.NewNullifier{Nullifier: types.RandomField()}),
		}
		leaf += 2
		next := l.NextSeq()
		for i := range recs {
			recs[i].Seq = next + uint64(i)
		}
		require.NoError(t, l.Append(recs...))
	}
	return l.Records(0)
}

func TestLogSequence(t *testing.T) {
	l := NewLog()
	r := NullifierRecord(0, &types.NewNullifier{Nullifier: types.RandomField()})
	r.Seq = 1
	require.ErrorIs(t, l.Append(r), ErrSeqGap)

	r.Seq = 0
	require.NoError(t, l.Append(r))
	require.Equal(t, uint64(1), l.NextSeq())
	require.Equal(t, uint64(1), l.NextTx())

	got, err := l.Get(0)
	require.NoError(t, err)
	ev, err := got.NewNullifier()
	require.NoError(t, err)
	require.NotNil(t, ev)

	_, err = got.NewCommitment()
	require.Error(t, err)
}

func TestReplay(t *testing.T) {
	recs := buildLog(t, 5)

	st, err := Replay(recs, 5, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(10), st.Accumulator.Size())
	require.Equal(t, 10, st.Nullifiers.Len())
	require.Equal(t, len(recs), st.Log.Len())

	leaves, err := Commitments(recs)
	require.NoError(t, err)
	root, err := merkle.RootOf(5, leaves)
	require.NoError(t, err)
	require.Equal(t, root, st.Accumulator.CurrentRoot())

	// one root per transaction: the root after tx 2 is still in a window of 3
	prefix, err := merkle.RootOf(5, leaves[:6])
	require.NoError(t, err)
	require.True(t, st.Accumulator.IsKnownRoot(prefix))
	prefix, err = merkle.RootOf(5, leaves[:4])
	require.NoError(t, err)
	require.False(t, st.Accumulator.IsKnownRoot(prefix))
	odd, err := merkle.RootOf(5, leaves[:5])
	require.NoError(t, err)
	require.False(t, st.Accumulator.IsKnownRoot(odd))
}

func TestReplayRejectsBadLog(t *testing.T) {
	recs := buildLog(t, 2)

	// duplicated nullifier
	dup := append([]Record{}, recs...)
	dup[3].Payload = dup[2].Payload
	_, err := Replay(dup, 5, 3)
	require.ErrorIs(t, err, ErrNullifierSpent)

	// leaf index out of order
	bad := append([]Record{}, recs...)
	bad[0], bad[1] = bad[1], bad[0]
	_, err = Replay(bad, 5, 3)
	require.Error(t, err)

	// overflow
	_, err = Replay(buildLog(t, 3), 2, 3)
	require.ErrorIs(t, err, merkle.ErrTreeFull)
}

func TestCheckpoint(t *testing.T) {
	recs := buildLog(t, 3)
	l := NewLog()
	require.NoError(t, l.Append(recs...))

	cp := l.Checkpoint()
	require.NotEmpty(t, cp)

	other := NewLog()
	require.NoError(t, other.Append(recs...))
	require.Equal(t, cp, other.Checkpoint())

	for seq := uint64(0); seq < uint64(len(recs)); seq++ {
		p, err := l.ProveRecord(seq)
		require.NoError(t, err)
		require.True(t, VerifyRecord(cp, &recs[seq], p))
	}

	p, err := l.ProveRecord(2)
	require.NoError(t, err)
	forged := recs[2]
	forged.Payload = recs[3].Payload
	require.False(t, VerifyRecord(cp, &forged, p))

	_, err = l.ProveRecord(uint64(len(recs)))
	require.ErrorIs(t, err, ErrNoSuchEntry)
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	recs := buildLog(t, 3)

	require.NoError(t, s.Append(ctx, recs[:8]))
	require.NoError(t, s.Append(ctx, recs[8:]))
	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, recs, loaded)

	require.NoError(t, s.Truncate(ctx, 8))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, recs[:8], loaded)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestLevelDBStore(t *testing.T) {
	s, err := OpenLevelDBStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("ZKPOOL_TEST_POSTGRES")
	if url == "" {
		t.Skip("ZKPOOL_TEST_POSTGRES not set")
	}
	cfg := DefaultPostgresConfig()
	cfg.URL = url
	s, err := OpenPostgresStore(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Truncate(context.Background(), 0))
	testStore(t, s)
}
