package ledger

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/kysee/zkpool/utils"
	"github.com/kysee/zkpool/zk-pool/types"
)

type EventKind uint8

const (
	KindNewCommitment EventKind = iota + 1
	KindNewNullifier
	KindPublicKey
)

func (k EventKind) String() string {
	switch k {
	case KindNewCommitment:
		return "NewCommitment"
	case KindNewNullifier:
		return "NewNullifier"
	case KindPublicKey:
		return "PublicKey"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Record is one entry of the public log. Seq totally orders the log; Tx
// groups the entries written by one committed transaction.
type Record struct {
	Seq     uint64
	Tx      uint64
	Kind    EventKind
	Payload []byte
}

func newRecord(tx uint64, kind EventKind, ev interface{}) Record {
	bz, err := rlp.EncodeToBytes(ev)
	if err != nil {
		panic(fmt.Sprintf("failed to RLP encode %s: %v", kind, err))
	}
	return Record{Tx: tx, Kind: kind, Payload: bz}
}

func CommitmentRecord(tx uint64, ev *types.NewCommitment) Record {
	return newRecord(tx, KindNewCommitment, ev)
}

func NullifierRecord(tx uint64, ev *types.NewNullifier) Record {
	return newRecord(tx, KindNewNullifier, ev)
}

func PublicKeyRecord(tx uint64, ev *types.PublicKeyRegistered) Record {
	return newRecord(tx, KindPublicKey, ev)
}

func (r *Record) decode(kind EventKind, out interface{}) error {
	if r.Kind != kind {
		return fmt.Errorf("record %d is %s, not %s", r.Seq, r.Kind, kind)
	}
	return rlp.DecodeBytes(r.Payload, out)
}

func (r *Record) NewCommitment() (*types.NewCommitment, error) {
	ev := new(types.NewCommitment)
	if err := r.decode(KindNewCommitment, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *Record) NewNullifier() (*types.NewNullifier, error) {
	ev := new(types.NewNullifier)
	if err := r.decode(KindNewNullifier, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *Record) PublicKey() (*types.PublicKeyRegistered, error) {
	ev := new(types.PublicKeyRegistered)
	if err := r.decode(KindPublicKey, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *Record) Bytes() []byte {
	bz, err := rlp.EncodeToBytes(r)
	if err != nil {
		panic(fmt.Sprintf("failed to RLP encode Record: %v", err))
	}
	return bz
}

func RecordFromBytes(bz []byte) (Record, error) {
	var r Record
	err := rlp.DecodeBytes(bz, &r)
	return r, err
}

// Digest is the record's leaf in a log checkpoint tree.
func (r *Record) Digest() []byte {
	e := utils.ReduceBytes(ethcrypto.Keccak256(r.Bytes()))
	b := e.Bytes()
	return b[:]
}
