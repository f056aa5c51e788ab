package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists identities.
type Repository interface {
	Create(ctx context.Context, ident Identity) (uint64, error)
	FindByAddress(ctx context.Context, addr common.Address) (Identity, error)
	FindByEIN(ctx context.Context, ein uint64) (Identity, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new identity and returns the EIN assigned by the sequence.
func (r *PostgresRepository) Create(ctx context.Context, ident Identity) (uint64, error) {
	var ein uint64
	err := r.db.QueryRow(ctx, `INSERT INTO identities (address, recovery_address, label, created_at)
        VALUES ($1, $2, $3, $4) RETURNING ein`,
		addressKey(ident.Address), addressKey(ident.RecoveryAddress), ident.Label, ident.CreatedAt.UTC()).Scan(&ein)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrAddressTaken
		}
		return 0, err
	}
	return ein, nil
}

// FindByAddress fetches the identity an address is associated with.
func (r *PostgresRepository) FindByAddress(ctx context.Context, addr common.Address) (Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT ein, address, recovery_address, label, created_at
        FROM identities WHERE address = $1`, addressKey(addr))
	return scanIdentity(row)
}

// FindByEIN fetches an identity by EIN.
func (r *PostgresRepository) FindByEIN(ctx context.Context, ein uint64) (Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT ein, address, recovery_address, label, created_at
        FROM identities WHERE ein = $1`, ein)
	return scanIdentity(row)
}

func scanIdentity(row pgx.Row) (Identity, error) {
	var (
		ident           Identity
		address         string
		recoveryAddress string
		createdAt       time.Time
	)
	if err := row.Scan(&ident.EIN, &address, &recoveryAddress, &ident.Label, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	ident.Address = common.HexToAddress(address)
	ident.RecoveryAddress = common.HexToAddress(recoveryAddress)
	ident.CreatedAt = createdAt.UTC()
	return ident, nil
}

func addressKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
