package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrUnknownAccount is returned when a posting references an account that was never opened.
	ErrUnknownAccount = errors.New("unknown account")
)

// TreasuryAccountCode is the issuing account debited by Mint. Its balance is
// the negative of the supply in circulation.
const TreasuryAccountCode = "treasury:mint"

// Transfer kinds recorded alongside every posting.
const (
	KindDeposit    = "deposit"
	KindWithdrawal = "withdrawal"
	KindOneTime    = "one_time"
	KindRecovery   = "recovery"
	KindMint       = "mint"
)

// TransactionResult captures the outcome of a ledger posting.
type TransactionResult struct {
	TransactionID string
	FromBalance   int64
	ToBalance     int64
}

// Ledger defines the token ledger the wallets hold custody in. Transfer doubles
// as transferFrom (arbitrary source) and transfer (source is the caller's own
// custody account); Balance is balanceOf.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	Transfer(ctx context.Context, fromCode, toCode, kind, clientTxID string, amount int64) (TransactionResult, error)
	// Mint issues new tokens from the treasury into toCode.
	Mint(ctx context.Context, toCode, clientTxID string, amount int64) (TransactionResult, error)
}

// AccountCode is the ledger account of a plain external address.
func AccountCode(addr common.Address) string {
	return "account:" + strings.ToLower(addr.Hex())
}

// IdentityCode is the ledger account holding an identity-linked balance.
func IdentityCode(ein uint64) string {
	return fmt.Sprintf("identity:%d", ein)
}

// WalletCode is the custody account of a protected wallet.
func WalletCode(addr common.Address) string {
	return "wallet:" + strings.ToLower(addr.Hex())
}
