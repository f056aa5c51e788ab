package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/guardwallet/guard_wallet/internal/identity"
	"github.com/guardwallet/guard_wallet/internal/ledger"
	"github.com/guardwallet/guard_wallet/internal/logging"
	"github.com/guardwallet/guard_wallet/internal/wallet"
)

var (
	// ErrNoActiveWallet is returned when an EIN has no live wallet.
	ErrNoActiveWallet = errors.New("no active wallet")
	// ErrReprovisionNotAllowed is returned when an EIN never destroyed a wallet.
	ErrReprovisionNotAllowed = errors.New("reprovisioning requires a previously deleted wallet")
	// ErrInvalidExtraData is returned when registration data is not a password hash.
	ErrInvalidExtraData = errors.New("extra data must be empty or a 32 byte password hash")
)

// Builder constructs wallets.
type Builder interface {
	Create(ctx context.Context, input wallet.CreateInput) (wallet.Wallet, error)
}

// Directory is the part of the identity directory the factory needs.
type Directory interface {
	ResolveOwner(ctx context.Context, addr common.Address) (uint64, error)
	RecoveryDetails(ctx context.Context, ein uint64) (common.Address, string, error)
}

// Config holds provisioning parameters.
type Config struct {
	// Address seeds wallet address derivation.
	Address common.Address
	// DailyLimit is the standard limit every new wallet starts with.
	DailyLimit int64
	// Ledger is the token ledger every provisioned wallet pays through.
	Ledger ledger.Ledger
}

// Service provisions at most one live wallet per EIN.
type Service struct {
	mu        sync.Mutex
	repo      Repository
	wallets   Builder
	directory Directory
	cfg       Config
	logger    *slog.Logger
}

// NewService builds a factory. Attach the wallet builder with UseBuilder.
func NewService(cfg Config, repo Repository, directory Directory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, directory: directory, cfg: cfg, logger: logger}
}

// UseBuilder sets the constructor of new wallets.
func (s *Service) UseBuilder(b Builder) {
	s.wallets = b
}

// Ledger returns the ledger wallets are constructed against.
func (s *Service) Ledger() ledger.Ledger {
	return s.cfg.Ledger
}

// Address is the factory's own address.
func (s *Service) Address() common.Address {
	return s.cfg.Address
}

// OnAddition is the directory's registration hook. extraData is empty or the
// owner's 32 byte password hash.
func (s *Service) OnAddition(ctx context.Context, ein uint64, extraData []byte) (wallet.Wallet, error) {
	passwordHash, err := parseExtraData(extraData)
	if err != nil {
		return wallet.Wallet{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provision(ctx, ein, passwordHash)
}

// OnRemoval is the directory's removal hook. Removing the factory as a
// resolver leaves the wallet untouched.
func (s *Service) OnRemoval(_ context.Context, ein uint64) error {
	s.logger.Debug("factory removal ignored", slog.Uint64("ein", ein))
	return nil
}

// Reprovision gives an owner whose previous wallet was destroyed a fresh one.
func (s *Service) Reprovision(ctx context.Context, caller common.Address, ein uint64, passwordHash common.Hash) (wallet.Wallet, error) {
	resolved, err := s.directory.ResolveOwner(ctx, caller)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		return wallet.Wallet{}, wallet.ErrUnauthorized
	case err != nil:
		return wallet.Wallet{}, fmt.Errorf("resolve caller: %w", err)
	case resolved != ein:
		return wallet.Wallet{}, wallet.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.repo.EverDeleted(ctx, ein)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if !deleted {
		return wallet.Wallet{}, ErrReprovisionNotAllowed
	}
	return s.provision(ctx, ein, passwordHash)
}

// NotifyDeleted is called by a wallet destroying itself. Only the wallet on
// record for ein may clear it.
func (s *Service) NotifyDeleted(ctx context.Context, caller common.Address, ein uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.repo.Active(ctx, ein)
	if err != nil {
		if errors.Is(err, ErrNoActiveWallet) {
			return wallet.ErrUnauthorized
		}
		return err
	}
	if active != caller {
		return wallet.ErrUnauthorized
	}
	if err := s.repo.MarkDeleted(ctx, ein); err != nil {
		return err
	}
	s.logger.Info("wallet deregistered", slog.Uint64("ein", ein), slog.String("wallet", caller.Hex()))
	return nil
}

// ActiveWallet returns the live wallet of ein.
func (s *Service) ActiveWallet(ctx context.Context, ein uint64) (common.Address, error) {
	return s.repo.Active(ctx, ein)
}

// RecoveryDetails exposes the directory lookup wallets are constructed from.
func (s *Service) RecoveryDetails(ctx context.Context, ein uint64) (common.Address, string, error) {
	return s.directory.RecoveryDetails(ctx, ein)
}

func (s *Service) provision(ctx context.Context, ein uint64, passwordHash common.Hash) (wallet.Wallet, error) {
	if _, err := s.repo.Active(ctx, ein); err == nil {
		return wallet.Wallet{}, wallet.ErrWalletExists
	} else if !errors.Is(err, ErrNoActiveWallet) {
		return wallet.Wallet{}, err
	}
	if s.wallets == nil {
		return wallet.Wallet{}, errors.New("factory has no wallet builder")
	}
	if _, _, err := s.directory.RecoveryDetails(ctx, ein); err != nil {
		return wallet.Wallet{}, fmt.Errorf("lookup identity %d: %w", ein, err)
	}

	nonce, err := s.repo.NextNonce(ctx)
	if err != nil {
		return wallet.Wallet{}, fmt.Errorf("next nonce: %w", err)
	}
	w, err := s.wallets.Create(ctx, wallet.CreateInput{
		Address:      crypto.CreateAddress(s.cfg.Address, nonce),
		OwnerEIN:     ein,
		DailyLimit:   s.cfg.DailyLimit,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return wallet.Wallet{}, err
	}
	if err := s.repo.SetActive(ctx, ein, w.Address); err != nil {
		return wallet.Wallet{}, fmt.Errorf("record wallet: %w", err)
	}

	s.logger.Info("wallet provisioned", slog.Uint64("ein", ein), slog.String("wallet", w.Address.Hex()), slog.Uint64("nonce", nonce))
	return w, nil
}

func parseExtraData(extra []byte) (common.Hash, error) {
	switch len(extra) {
	case 0:
		return common.Hash{}, nil
	case common.HashLength:
		return common.BytesToHash(extra), nil
	default:
		return common.Hash{}, ErrInvalidExtraData
	}
}
