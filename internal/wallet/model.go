package wallet

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Kind names one of the five two-factor request slots.
type Kind string

const (
	KindLimitChange        Kind = "limit_change"
	KindRecovery           Kind = "recovery"
	KindWithdrawToOwner    Kind = "withdraw_owner"
	KindTransferToAddress  Kind = "transfer_address"
	KindWithdrawToIdentity Kind = "withdraw_identity"
)

// Kinds lists every slot in a stable order.
var Kinds = []Kind{
	KindLimitChange,
	KindRecovery,
	KindWithdrawToOwner,
	KindTransferToAddress,
	KindWithdrawToIdentity,
}

// ParseKind validates a slot name coming from the outside.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown request kind %q", s)
}

// RequestStatus tracks an oracle request from submission to its terminal state.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestCancelled RequestStatus = "cancelled"
)

// RequestRecord correlates an oracle request id with the slot it occupies.
type RequestRecord struct {
	Kind   Kind          `json:"kind"`
	Status RequestStatus `json:"status"`
}

// Slot is an occupied pending-request slot. Only the fields relevant to the
// slot's kind are set.
type Slot struct {
	RequestID   string         `json:"request_id"`
	Amount      int64          `json:"amount,omitempty"`
	Limit       int64          `json:"limit,omitempty"`
	To          common.Address `json:"to,omitempty"`
	EIN         uint64         `json:"ein,omitempty"`
	RequestedAt time.Time      `json:"requested_at"`
}

// RequestParams carries the arguments of a two-factor request.
type RequestParams struct {
	Limit  int64
	Amount int64
	To     common.Address
	EIN    uint64
}

// DestinationKind selects where a limited withdrawal is paid.
type DestinationKind string

const (
	DestinationOwnerAccount  DestinationKind = "owner_account"
	DestinationOwnerIdentity DestinationKind = "owner_identity"
)

// Destination of a limited withdrawal. Address is used for owner_account,
// EIN for owner_identity.
type Destination struct {
	Kind    DestinationKind
	Address common.Address
	EIN     uint64
}

// SourceKind selects where a deposit is pulled from.
type SourceKind string

const (
	SourceAccount  SourceKind = "account"
	SourceIdentity SourceKind = "identity"
)

// Source of a deposit. Address is used for account sources; identity sources
// always pull from the owner's identity-linked balance.
type Source struct {
	Kind    SourceKind
	Address common.Address
}

// Wallet is the persisted state of one protected wallet.
type Wallet struct {
	Address         common.Address `json:"address"`
	OwnerEIN        uint64         `json:"owner_ein"`
	RecoveryAddress common.Address `json:"recovery_address"`
	RecoveryLabel   string         `json:"recovery_label"`

	Balance        int64     `json:"balance"`
	DailyLimit     int64     `json:"daily_limit"`
	WithdrawnToday int64     `json:"withdrawn_today"`
	WindowStart    time.Time `json:"window_start"`

	Pending         map[Kind]Slot            `json:"pending"`
	Requests        map[string]RequestRecord `json:"requests"`
	LastTwoFactorAt time.Time                `json:"last_two_factor_at"`

	HasRecoveryPassword bool                 `json:"has_recovery_password"`
	RecoveryCommitment  common.Hash          `json:"recovery_commitment"`
	PendingCommits      map[common.Hash]bool `json:"pending_commits"`

	Entropy      common.Hash `json:"entropy"`
	Terminated   bool        `json:"terminated"`
	TerminatedAt time.Time   `json:"terminated_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// IsPending reports whether slot k is occupied.
func (w Wallet) IsPending(k Kind) bool {
	_, ok := w.Pending[k]
	return ok
}

func (w Wallet) clone() Wallet {
	out := w
	out.Pending = make(map[Kind]Slot, len(w.Pending))
	for k, v := range w.Pending {
		out.Pending[k] = v
	}
	out.Requests = make(map[string]RequestRecord, len(w.Requests))
	for k, v := range w.Requests {
		out.Requests[k] = v
	}
	out.PendingCommits = make(map[common.Hash]bool, len(w.PendingCommits))
	for k, v := range w.PendingCommits {
		out.PendingCommits[k] = v
	}
	return out
}
