package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists wallet state.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, addr common.Address) (Wallet, error)
	Save(ctx context.Context, wallet Wallet) error
}

// PostgresRepository stores wallets in PostgreSQL. The full state is kept as a
// JSONB document next to the columns used for lookups.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	state, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("encode wallet: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (address, owner_ein, state, terminated, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)`,
		addressKey(wallet.Address), wallet.OwnerEIN, state, wallet.Terminated, wallet.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrWalletExists
		}
		return err
	}
	return nil
}

// Get fetches wallet state by address.
func (r *PostgresRepository) Get(ctx context.Context, addr common.Address) (Wallet, error) {
	var state []byte
	err := r.db.QueryRow(ctx, `SELECT state FROM wallets WHERE address = $1`, addressKey(addr)).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	var w Wallet
	if err := json.Unmarshal(state, &w); err != nil {
		return Wallet{}, fmt.Errorf("decode wallet %s: %w", addr.Hex(), err)
	}
	if w.Pending == nil {
		w.Pending = map[Kind]Slot{}
	}
	if w.Requests == nil {
		w.Requests = map[string]RequestRecord{}
	}
	if w.PendingCommits == nil {
		w.PendingCommits = map[common.Hash]bool{}
	}
	return w, nil
}

// Save overwrites the stored state.
func (r *PostgresRepository) Save(ctx context.Context, wallet Wallet) error {
	state, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("encode wallet: %w", err)
	}
	cmd, err := r.db.Exec(ctx, `UPDATE wallets SET state = $1, terminated = $2, updated_at = $3 WHERE address = $4`,
		state, wallet.Terminated, time.Now().UTC(), addressKey(wallet.Address))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func addressKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
