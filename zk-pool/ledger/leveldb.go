package ledger

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var recordPrefix = []byte("rec_")

// LevelDBStore persists the log in a LevelDB database, one key per record.
// Big-endian sequence numbers keep the iteration order equal to the log order.
type LevelDBStore struct {
	db *leveldb.DB
}

func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open log store: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

func recordKey(seq uint64) []byte {
	key := make([]byte, len(recordPrefix)+8)
	copy(key, recordPrefix)
	binary.BigEndian.PutUint64(key[len(recordPrefix):], seq)
	return key
}

func (s *LevelDBStore) Append(_ context.Context, recs []Record) error {
	batch := new(leveldb.Batch)
	for i := range recs {
		batch.Put(recordKey(recs[i].Seq), recs[i].Bytes())
	}
	return s.db.Write(batch, nil)
}

func (s *LevelDBStore) Truncate(_ context.Context, from uint64) error {
	iter := s.db.NewIterator(&util.Range{Start: recordKey(from), Limit: util.BytesPrefix(recordPrefix).Limit}, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		batch.Delete(key)
	}
	if err := iter.Error(); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}

func (s *LevelDBStore) Load(_ context.Context) ([]Record, error) {
	iter := s.db.NewIterator(util.BytesPrefix(recordPrefix), nil)
	defer iter.Release()

	recs := make([]Record, 0)
	for iter.Next() {
		r, err := RecordFromBytes(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode record %x: %w", iter.Key(), err)
		}
		recs = append(recs, r)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
