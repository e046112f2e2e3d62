package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lockScope/internal/model"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS account_snapshots (
	chain_id       BIGINT      NOT NULL,
	account        TEXT        NOT NULL,
	block_number   BIGINT      NOT NULL,
	network        TEXT        NOT NULL,
	native_balance NUMERIC     NOT NULL,
	token_balance  NUMERIC     NOT NULL,
	total_supply   NUMERIC     NOT NULL,
	locked         NUMERIC,
	token_address  TEXT        NOT NULL,
	token_symbol   TEXT,
	token_decimals SMALLINT    NOT NULL,
	fetched_at     TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, account, block_number)
);

CREATE TABLE IF NOT EXISTS tx_records (
	chain_id   BIGINT      NOT NULL,
	tx_hash    TEXT        NOT NULL,
	account    TEXT        NOT NULL,
	kind       TEXT        NOT NULL,
	amount     NUMERIC     NOT NULL,
	mined_at   TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, tx_hash)
);

CREATE TABLE IF NOT EXISTS app_state (
	name       TEXT PRIMARY KEY,
	chain_id   BIGINT      NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for account snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutSnapshots inserts or updates account snapshots.
func (s *Store) PutSnapshots(ctx context.Context, snapshots []model.AccountSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		var locked *string
		if snap.Locked != "" {
			locked = &snap.Locked
		}
		batch.Queue(`
			INSERT INTO account_snapshots (
				chain_id, account, block_number, network, native_balance, token_balance, total_supply,
				locked, token_address, token_symbol, token_decimals, fetched_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
			ON CONFLICT (chain_id, account, block_number)
			DO UPDATE SET
				native_balance = EXCLUDED.native_balance,
				token_balance = EXCLUDED.token_balance,
				total_supply = EXCLUDED.total_supply,
				locked = EXCLUDED.locked,
				token_symbol = EXCLUDED.token_symbol,
				token_decimals = EXCLUDED.token_decimals,
				fetched_at = GREATEST(account_snapshots.fetched_at, EXCLUDED.fetched_at),
				updated_at = now()
		`,
			int64(snap.ChainID),
			snap.Account,
			int64(snap.BlockNumber),
			snap.Network,
			snap.NativeBalance,
			snap.TokenBalance,
			snap.TotalSupply,
			locked,
			snap.TokenAddress,
			snap.TokenSymbol,
			int16(snap.TokenDecimals),
			snap.FetchedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutTxRecords inserts transaction records, ignoring ones already stored.
func (s *Store) PutTxRecords(ctx context.Context, records []model.TxRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO tx_records (chain_id, tx_hash, account, kind, amount, mined_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (chain_id, tx_hash) DO NOTHING
		`,
			int64(rec.ChainID),
			rec.TxHash,
			rec.Account,
			rec.Kind,
			rec.Amount,
			rec.MinedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadNetwork returns the saved chain id for a name.
func (s *Store) LoadNetwork(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var chainID int64
	row := s.pool.QueryRow(ctx, `SELECT chain_id FROM app_state WHERE name=$1`, name)
	if err := row.Scan(&chainID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(chainID), true, nil
}

// SaveNetwork upserts the chain id for a name.
func (s *Store) SaveNetwork(ctx context.Context, name string, chainID uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_state (name, chain_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET chain_id = EXCLUDED.chain_id, updated_at = now()
	`, name, int64(chainID))
	return err
}
