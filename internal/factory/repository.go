package factory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the factory registry: the active wallet per EIN, the
// EINs that destroyed a wallet before, and the provisioning nonce.
type Repository interface {
	Active(ctx context.Context, ein uint64) (common.Address, error)
	SetActive(ctx context.Context, ein uint64, wallet common.Address) error
	MarkDeleted(ctx context.Context, ein uint64) error
	EverDeleted(ctx context.Context, ein uint64) (bool, error)
	NextNonce(ctx context.Context) (uint64, error)
}

type memoryRepository struct {
	mu          sync.RWMutex
	active      map[uint64]common.Address
	everDeleted map[uint64]bool
	nonce       uint64
}

// NewMemoryRepository builds an in-memory registry for tests and development.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		active:      make(map[uint64]common.Address),
		everDeleted: make(map[uint64]bool),
	}
}

func (r *memoryRepository) Active(_ context.Context, ein uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.active[ein]
	if !ok {
		return common.Address{}, ErrNoActiveWallet
	}
	return addr, nil
}

func (r *memoryRepository) SetActive(_ context.Context, ein uint64, wallet common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[ein] = wallet
	return nil
}

func (r *memoryRepository) MarkDeleted(_ context.Context, ein uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, ein)
	r.everDeleted[ein] = true
	return nil
}

func (r *memoryRepository) EverDeleted(_ context.Context, ein uint64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.everDeleted[ein], nil
}

func (r *memoryRepository) NextNonce(_ context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.nonce
	r.nonce++
	return n, nil
}

// PostgresRepository stores the registry in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed registry.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Active returns the wallet currently recorded for ein.
func (r *PostgresRepository) Active(ctx context.Context, ein uint64) (common.Address, error) {
	var wallet *string
	err := r.db.QueryRow(ctx, `SELECT wallet FROM factory_wallets WHERE ein = $1`, ein).Scan(&wallet)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.Address{}, ErrNoActiveWallet
		}
		return common.Address{}, err
	}
	if wallet == nil {
		return common.Address{}, ErrNoActiveWallet
	}
	return common.HexToAddress(*wallet), nil
}

// SetActive records wallet as the active wallet of ein.
func (r *PostgresRepository) SetActive(ctx context.Context, ein uint64, wallet common.Address) error {
	_, err := r.db.Exec(ctx, `INSERT INTO factory_wallets (ein, wallet, ever_deleted, updated_at)
        VALUES ($1, $2, FALSE, $3)
        ON CONFLICT (ein) DO UPDATE SET wallet = EXCLUDED.wallet, updated_at = EXCLUDED.updated_at`,
		ein, strings.ToLower(wallet.Hex()), time.Now().UTC())
	return err
}

// MarkDeleted clears the active wallet and remembers the deletion.
func (r *PostgresRepository) MarkDeleted(ctx context.Context, ein uint64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE factory_wallets SET wallet = NULL, ever_deleted = TRUE, updated_at = $1 WHERE ein = $2`,
		time.Now().UTC(), ein)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNoActiveWallet
	}
	return nil
}

// EverDeleted reports whether ein destroyed a wallet before.
func (r *PostgresRepository) EverDeleted(ctx context.Context, ein uint64) (bool, error) {
	var deleted bool
	err := r.db.QueryRow(ctx, `SELECT ever_deleted FROM factory_wallets WHERE ein = $1`, ein).Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return deleted, err
}

// NextNonce draws the next provisioning nonce from a sequence.
func (r *PostgresRepository) NextNonce(ctx context.Context) (uint64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('factory_nonce') - 1`).Scan(&n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}
