package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/guardwallet/guard_wallet/internal/ledger"
)

var (
	// ErrNotFound is returned when no identity matches the lookup.
	ErrNotFound = errors.New("identity not found")
	// ErrAddressTaken is returned when the address already backs an identity.
	ErrAddressTaken = errors.New("address already associated with an identity")
	// ErrInvalidInput is returned when registration data is incomplete.
	ErrInvalidInput = errors.New("invalid identity input")
)

// Service manages the identity directory.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
}

// NewService creates a new identity service. The ledger is used to open the
// identity-linked balance account of every new EIN.
func NewService(repo Repository, ledger ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// Register creates a new identity. The recovery address defaults to the
// registering address when left empty.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Identity, error) {
	if input.Address == (common.Address{}) {
		return Identity{}, fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return Identity{}, fmt.Errorf("%w: label is required", ErrInvalidInput)
	}
	recovery := input.RecoveryAddress
	if recovery == (common.Address{}) {
		recovery = input.Address
	}

	ident := Identity{
		Address:         input.Address,
		RecoveryAddress: recovery,
		Label:           label,
		CreatedAt:       time.Now().UTC(),
	}
	ein, err := s.repo.Create(ctx, ident)
	if err != nil {
		return Identity{}, err
	}
	ident.EIN = ein

	if s.ledger != nil {
		if err := s.ledger.EnsureAccount(ctx, ledger.IdentityCode(ein)); err != nil {
			return Identity{}, fmt.Errorf("open identity balance: %w", err)
		}
	}

	return ident, nil
}

// Get returns the identity registered under ein.
func (s *Service) Get(ctx context.Context, ein uint64) (Identity, error) {
	return s.repo.FindByEIN(ctx, ein)
}

// ResolveOwner maps an address to the EIN it acts for.
func (s *Service) ResolveOwner(ctx context.Context, addr common.Address) (uint64, error) {
	ident, err := s.repo.FindByAddress(ctx, addr)
	if err != nil {
		return 0, err
	}
	return ident.EIN, nil
}

// RecoveryDetails returns the verified recovery address and label of ein.
func (s *Service) RecoveryDetails(ctx context.Context, ein uint64) (common.Address, string, error) {
	ident, err := s.repo.FindByEIN(ctx, ein)
	if err != nil {
		return common.Address{}, "", err
	}
	return ident.RecoveryAddress, ident.Label, nil
}
