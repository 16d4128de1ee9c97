package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		URL:             "postgres://localhost:5432/zkpool?sslmode=disable",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

const logSchema = `
CREATE TABLE IF NOT EXISTS pool_log (
	seq     BIGINT PRIMARY KEY,
	tx      BIGINT NOT NULL,
	kind    SMALLINT NOT NULL,
	payload BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pool_log_tx ON pool_log(tx);
`

// PostgresStore persists the log in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgresStore(ctx context.Context, cfg *PostgresConfig) (*PostgresStore, error) {
	if cfg == nil {
		cfg = DefaultPostgresConfig()
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, logSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create log schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Append(ctx context.Context, recs []Record) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i := range recs {
			batch.Queue(
				`INSERT INTO pool_log (seq, tx, kind, payload) VALUES ($1, $2, $3, $4)`,
				int64(recs[i].Seq), int64(recs[i].Tx), int16(recs[i].Kind), recs[i].Payload,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *PostgresStore) Truncate(ctx context.Context, from uint64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM pool_log WHERE seq >= $1`, int64(from))
	return err
}

func (s *PostgresStore) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT seq, tx, kind, payload FROM pool_log ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := make([]Record, 0)
	for rows.Next() {
		var (
			seq, tx int64
			kind    int16
			payload []byte
		)
		if err := rows.Scan(&seq, &tx, &kind, &payload); err != nil {
			return nil, err
		}
		recs = append(recs, Record{Seq: uint64(seq), Tx: uint64(tx), Kind: EventKind(kind), Payload: payload})
	}
	return recs, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
