package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/guardwallet/guard_wallet/internal/ledger"
	"github.com/guardwallet/guard_wallet/internal/logging"
)

var (
	// ErrOperatorOnly is returned when someone other than the operator mints.
	ErrOperatorOnly = errors.New("only the operator may mint")
	// ErrMintDisabled is returned when no operator address is configured.
	ErrMintDisabled = errors.New("minting is disabled")
	// ErrInvalidInput marks malformed mint requests.
	ErrInvalidInput = errors.New("invalid mint request")
)

// Directory confirms that an identity exists before crediting it.
type Directory interface {
	RecoveryDetails(ctx context.Context, ein uint64) (common.Address, string, error)
}

// Service issues tokens from the treasury into external or identity accounts.
type Service struct {
	ledger    ledger.Ledger
	directory Directory
	operator  common.Address
	logger    *slog.Logger
}

// NewService prepares a funding service. A zero operator disables minting.
func NewService(ledgerBackend ledger.Ledger, directory Directory, operator common.Address, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{ledger: ledgerBackend, directory: directory, operator: operator, logger: logger}
}

// MintInput names exactly one recipient: an address or an identity.
type MintInput struct {
	Account    common.Address
	EIN        uint64
	Amount     int64
	ClientTxID string
}

// MintResult represents the outcome of an issuance.
type MintResult struct {
	TransactionID string
	Account       string
	Balance       int64
	Replayed      bool
}

// Mint credits the recipient. Repeating a ClientTxID returns the original
// posting with Replayed set.
func (s *Service) Mint(ctx context.Context, caller common.Address, input MintInput) (MintResult, error) {
	if s.operator == (common.Address{}) {
		return MintResult{}, ErrMintDisabled
	}
	if caller != s.operator {
		return MintResult{}, ErrOperatorOnly
	}
	if input.Amount <= 0 {
		return MintResult{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	hasAccount := input.Account != (common.Address{})
	if hasAccount == (input.EIN != 0) {
		return MintResult{}, fmt.Errorf("%w: exactly one of account or ein is required", ErrInvalidInput)
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}

	code := ledger.AccountCode(input.Account)
	if !hasAccount {
		if _, _, err := s.directory.RecoveryDetails(ctx, input.EIN); err != nil {
			return MintResult{}, fmt.Errorf("lookup identity %d: %w", input.EIN, err)
		}
		code = ledger.IdentityCode(input.EIN)
	}
	if err := s.ledger.EnsureAccount(ctx, code); err != nil {
		return MintResult{}, fmt.Errorf("open account: %w", err)
	}

	res, err := s.ledger.Mint(ctx, code, input.ClientTxID, input.Amount)
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return MintResult{TransactionID: res.TransactionID, Account: code, Balance: res.ToBalance, Replayed: true}, nil
	}
	if err != nil {
		return MintResult{}, fmt.Errorf("mint: %w", err)
	}

	s.logger.Info("tokens minted",
		slog.String("account", code),
		slog.Int64("amount", input.Amount),
		slog.String("client_tx_id", input.ClientTxID),
	)
	return MintResult{TransactionID: res.TransactionID, Account: code, Balance: res.ToBalance}, nil
}
