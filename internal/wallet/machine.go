package wallet

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// WindowLength is the rolling withdrawal accounting window.
	WindowLength = 24 * time.Hour
	// TwoFactorSpacing is the minimum time between two-factor requests.
	TwoFactorSpacing = 5 * time.Minute
	// ResetQuiescence must elapse after the last two-factor request before
	// pending state can be reset by hand.
	ResetQuiescence = time.Hour
)

// The methods below are pure transitions on a private copy of the state. The
// service commits the copy only once every collaborator effect succeeded.

func (w *Wallet) withdrawLimited(now time.Time, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > w.DailyLimit {
		return ErrLimitExceeded
	}
	if !now.Before(w.WindowStart.Add(WindowLength)) {
		w.WindowStart = now
		w.WithdrawnToday = 0
	}
	if err := w.debit(amount); err != nil {
		return err
	}
	w.WithdrawnToday += amount
	return nil
}

func (w *Wallet) credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	w.Balance += amount
	return nil
}

func (w *Wallet) debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Balance < amount {
		return ErrInsufficientBalance
	}
	w.Balance -= amount
	return nil
}

// drain empties the balance and returns what was held.
func (w *Wallet) drain() int64 {
	amount := w.Balance
	w.Balance = 0
	return amount
}

func (w *Wallet) beginRequest(now time.Time, kind Kind, params RequestParams) (Slot, error) {
	if w.IsPending(kind) {
		return Slot{}, ErrAlreadyPending
	}
	if !w.LastTwoFactorAt.IsZero() && now.Before(w.LastTwoFactorAt.Add(TwoFactorSpacing)) {
		return Slot{}, ErrRateLimited
	}

	slot := Slot{RequestedAt: now}
	switch kind {
	case KindLimitChange:
		if params.Limit < 0 {
			return Slot{}, ErrInvalidAmount
		}
		slot.Limit = params.Limit
	case KindRecovery:
	case KindWithdrawToOwner:
		if params.Amount <= 0 {
			return Slot{}, ErrInvalidAmount
		}
		slot.Amount = params.Amount
	case KindTransferToAddress:
		if params.Amount <= 0 || params.To == (common.Address{}) {
			return Slot{}, ErrInvalidAmount
		}
		slot.Amount = params.Amount
		slot.To = params.To
	case KindWithdrawToIdentity:
		if params.Amount <= 0 || params.EIN == 0 {
			return Slot{}, ErrInvalidAmount
		}
		slot.Amount = params.Amount
		slot.EIN = params.EIN
	default:
		return Slot{}, ErrUnknownRequest
	}
	return slot, nil
}

func (w *Wallet) recordRequest(now time.Time, kind Kind, slot Slot, requestID string) {
	slot.RequestID = requestID
	w.Pending[kind] = slot
	w.Requests[requestID] = RequestRecord{Kind: kind, Status: RequestPending}
	w.LastTwoFactorAt = now
}

// settle validates a callback against the correlation table and releases the
// slot. The returned slot holds the effect to apply on approval.
func (w *Wallet) settle(kind Kind, requestID string) (Slot, error) {
	rec, ok := w.Requests[requestID]
	if !ok || rec.Kind != kind {
		return Slot{}, ErrUnknownRequest
	}
	switch rec.Status {
	case RequestFulfilled:
		return Slot{}, ErrAlreadyFulfilled
	case RequestCancelled:
		return Slot{}, ErrUnknownRequest
	}
	slot, ok := w.Pending[kind]
	if !ok || slot.RequestID != requestID {
		return Slot{}, ErrUnknownRequest
	}
	delete(w.Pending, kind)
	w.Requests[requestID] = RequestRecord{Kind: kind, Status: RequestFulfilled}
	return slot, nil
}

func (w *Wallet) resetPending(now time.Time) ([]string, error) {
	if !now.After(w.LastTwoFactorAt.Add(ResetQuiescence)) {
		return nil, ErrRateLimited
	}
	cancelled := make([]string, 0, len(w.Pending))
	for _, k := range Kinds {
		slot, ok := w.Pending[k]
		if !ok {
			continue
		}
		w.Requests[slot.RequestID] = RequestRecord{Kind: k, Status: RequestCancelled}
		cancelled = append(cancelled, slot.RequestID)
		delete(w.Pending, k)
	}
	return cancelled, nil
}

func (w *Wallet) addCommit(hash common.Hash) (bool, error) {
	if !w.HasRecoveryPassword {
		return false, ErrRecoveryDisabled
	}
	if w.PendingCommits[hash] {
		return false, nil
	}
	w.PendingCommits[hash] = true
	return true, nil
}

func (w *Wallet) useCommit(hash common.Hash, destination common.Address, password string) error {
	if !w.HasRecoveryPassword {
		return ErrRecoveryDisabled
	}
	if !w.PendingCommits[hash] {
		return ErrInvalidCommitment
	}
	if PasswordCommitment(w.Address, PasswordHash(password)) != w.RecoveryCommitment {
		return ErrInvalidPassword
	}
	if CommitHash(destination, password) != hash {
		return ErrInvalidCommitment
	}
	delete(w.PendingCommits, hash)
	return nil
}

func (w *Wallet) terminate(now time.Time) {
	w.Terminated = true
	w.TerminatedAt = now
}

func (w *Wallet) challenge(now time.Time) uint32 {
	w.Entropy = nextEntropy(w.Entropy, w.Address, now.UnixNano())
	return shortCode(w.Entropy)
}
