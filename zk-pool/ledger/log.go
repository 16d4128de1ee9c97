package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/accumulator/merkletree"
	"github.com/kysee/zkpool/utils"
)

var (
	ErrSeqGap      = errors.New("record sequence gap")
	ErrNoSuchEntry = errors.New("no such log record")
)

// Log is the ordered, append-only public log.
type Log struct {
	mu      sync.RWMutex
	records []Record
	nextTx  uint64
}

func NewLog() *Log {
	return &Log{}
}

// NextSeq is the sequence number the next appended record must carry.
func (l *Log) NextSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.records))
}

// NextTx is the transaction number of the next committed transaction.
func (l *Log) NextTx() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextTx
}

// Append adds records whose sequence numbers continue the log.
func (l *Log) Append(recs ...Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := uint64(len(l.records))
	for i, r := range recs {
		if r.Seq != next+uint64(i) {
			return fmt.Errorf("%w: expected(%d), got(%d)", ErrSeqGap, next+uint64(i), r.Seq)
		}
	}
	for _, r := range recs {
		l.records = append(l.records, r)
		if r.Tx >= l.nextTx {
			l.nextTx = r.Tx + 1
		}
	}
	return nil
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns a copy of the log from seq onwards.
func (l *Log) Records(from uint64) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if from >= uint64(len(l.records)) {
		return nil
	}
	out := make([]Record, len(l.records)-int(from))
	copy(out, l.records[from:])
	return out
}

func (l *Log) Get(seq uint64) (Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq >= uint64(len(l.records)) {
		return Record{}, ErrNoSuchEntry
	}
	return l.records[seq], nil
}

// Checkpoint returns a Merkle root over the record digests. Two replicas
// holding the same log report the same checkpoint.
func (l *Log) Checkpoint() []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tree := merkletree.New(utils.ReducingHasher())
	for i := range l.records {
		tree.Push(l.records[i].Digest())
	}
	return tree.Root()
}

// RecordProof shows that a record belongs to a checkpoint of a log of NumLeaves records.
type RecordProof struct {
	Root      []byte
	ProofSet  [][]byte
	Index     uint64
	NumLeaves uint64
}

func (l *Log) ProveRecord(seq uint64) (*RecordProof, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq >= uint64(len(l.records)) {
		return nil, ErrNoSuchEntry
	}

	var buf bytes.Buffer
	for i := range l.records {
		buf.Write(l.records[i].Digest())
	}
	h := utils.ReducingHasher()
	root, proofSet, numLeaves, err := merkletree.BuildReaderProof(&buf, h, h.Size(), seq)
	if err != nil {
		return nil, err
	}
	return &RecordProof{Root: root, ProofSet: proofSet, Index: seq, NumLeaves: numLeaves}, nil
}

// VerifyRecord checks that rec is the proven leaf of checkpoint.
func VerifyRecord(checkpoint []byte, rec *Record, p *RecordProof) bool {
	if !bytes.Equal(checkpoint, p.Root) || len(p.ProofSet) == 0 || rec.Seq != p.Index {
		return false
	}
	if !bytes.Equal(p.ProofSet[0], rec.Digest()) {
		return false
	}
	return merkletree.VerifyProof(utils.ReducingHasher(), p.Root, p.ProofSet, p.Index, p.NumLeaves)
}
