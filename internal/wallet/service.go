package wallet

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/guardwallet/guard_wallet/internal/identity"
	"github.com/guardwallet/guard_wallet/internal/ledger"
	"github.com/guardwallet/guard_wallet/internal/logging"
	"github.com/guardwallet/guard_wallet/internal/notification"
	"github.com/guardwallet/guard_wallet/internal/oracle"
)

// Directory resolves caller addresses to owner identities.
type Directory interface {
	ResolveOwner(ctx context.Context, addr common.Address) (uint64, error)
	RecoveryDetails(ctx context.Context, ein uint64) (common.Address, string, error)
}

// Registry is told when a wallet destroys itself. The wallet passes its own
// address as caller.
type Registry interface {
	NotifyDeleted(ctx context.Context, caller common.Address, ein uint64) error
}

// Deps aggregates the collaborators of the wallet service.
type Deps struct {
	Repo          Repository
	Ledger        ledger.Ledger
	Directory     Directory
	Oracle        oracle.Channel
	Notifier      notification.Notifier
	Logger        *slog.Logger
	OracleAddress common.Address
	JobID         string
	Now           func() time.Time
}

// Service runs the protected wallet state machine. Every exported operation
// is one serialized transition on a single wallet.
type Service struct {
	repo          Repository
	ledger        ledger.Ledger
	directory     Directory
	oracle        oracle.Channel
	notifier      notification.Notifier
	logger        *slog.Logger
	oracleAddress common.Address
	jobID         string
	now           func() time.Time
	registry      Registry

	// locks serializes transitions per wallet. Wallets sharing a stripe
	// also serialize with each other.
	locks [lockStripes]sync.Mutex
}

const lockStripes = 256

// NewService builds a wallet service instance.
func NewService(d Deps) *Service {
	s := &Service{
		repo:          d.Repo,
		ledger:        d.Ledger,
		directory:     d.Directory,
		oracle:        d.Oracle,
		notifier:      d.Notifier,
		logger:        d.Logger,
		oracleAddress: d.OracleAddress,
		jobID:         d.JobID,
		now:           d.Now,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// UseRegistry sets the factory notified on wallet destruction.
func (s *Service) UseRegistry(r Registry) {
	s.registry = r
}

// CreateInput captures data required to construct a wallet.
type CreateInput struct {
	Address    common.Address
	OwnerEIN   uint64
	DailyLimit int64
	// PasswordHash is H(password); the zero hash disables commit-reveal recovery.
	PasswordHash common.Hash
}

// Create constructs a wallet bound to the owner's verified recovery details
// and opens its ledger custody account.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if input.Address == (common.Address{}) {
		return Wallet{}, fmt.Errorf("%w: wallet address is required", ErrInvalidRequest)
	}
	if input.DailyLimit < 0 {
		return Wallet{}, ErrInvalidAmount
	}

	recovery, label, err := s.directory.RecoveryDetails(ctx, input.OwnerEIN)
	if err != nil {
		return Wallet{}, fmt.Errorf("recovery details for %d: %w", input.OwnerEIN, err)
	}

	now := s.now()
	w := Wallet{
		Address:         input.Address,
		OwnerEIN:        input.OwnerEIN,
		RecoveryAddress: recovery,
		RecoveryLabel:   label,
		DailyLimit:      input.DailyLimit,
		WindowStart:     now,
		Pending:         map[Kind]Slot{},
		Requests:        map[string]RequestRecord{},
		PendingCommits:  map[common.Hash]bool{},
		Entropy:         nextEntropy(common.Hash{}, input.Address, now.UnixNano()),
		CreatedAt:       now,
	}
	if input.PasswordHash != (common.Hash{}) {
		w.HasRecoveryPassword = true
		w.RecoveryCommitment = PasswordCommitment(input.Address, input.PasswordHash)
	}

	if err := s.ledger.EnsureAccount(ctx, ledger.WalletCode(w.Address)); err != nil {
		return Wallet{}, fmt.Errorf("open custody account: %w", err)
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return Wallet{}, err
	}

	s.logger.Info("wallet created",
		slog.String("wallet", w.Address.Hex()),
		slog.Uint64("owner_ein", w.OwnerEIN),
		slog.Int64("daily_limit", w.DailyLimit),
		slog.Bool("recovery_password", w.HasRecoveryPassword),
	)
	s.emit(ctx, notification.KindWalletCreated, w.Address, fmt.Sprintf("owner %d", w.OwnerEIN))
	return w, nil
}

// Get retrieves wallet state.
func (s *Service) Get(ctx context.Context, addr common.Address) (Wallet, error) {
	return s.repo.Get(ctx, addr)
}

// LedgerBalance returns what the ledger holds in the wallet's custody account.
func (s *Service) LedgerBalance(ctx context.Context, addr common.Address) (int64, error) {
	return s.ledger.Balance(ctx, ledger.WalletCode(addr))
}

// Deposit credits the wallet with tokens pulled from src.
func (s *Service) Deposit(ctx context.Context, caller, addr common.Address, src Source, amount int64) (Wallet, error) {
	unlock := s.lock(addr)
	defer unlock()

	w, err := s.loadActive(ctx, addr)
	if err != nil {
		return Wallet{}, err
	}

	var from string
	switch src.Kind {
	case SourceAccount:
		if src.Address == (common.Address{}) {
			src.Address = caller
		}
		if src.Address != caller {
			return Wallet{}, ErrUnauthorized
		}
		from = ledger.AccountCode(src.Address)
	case SourceIdentity:
		if err := s.authorizeOwner(ctx, caller, w); err != nil {
			return Wallet{}, err
		}
		from = ledger.IdentityCode(w.OwnerEIN)
	default:
		return Wallet{}, fmt.Errorf("%w: unknown deposit source %q", ErrInvalidRequest, src.Kind)
	}

	next := w.clone()
	if err := next.credit(amount); err != nil {
		return Wallet{}, err
	}
	p := posting{from: from, to: ledger.WalletCode(addr), kind: ledger.KindDeposit, amount: amount}
	if err := s.commit(ctx, w, next, []posting{p}, false); err != nil {
		return Wallet{}, err
	}

	s.logger.Info("wallet deposit", slog.String("wallet", addr.Hex()), slog.String("source", from), slog.Int64("amount", amount))
	s.emit(ctx, notification.KindDeposited, addr, fmt.Sprintf("%d from %s", amount, from))
	return next, nil
}

// Withdraw pays out at most the daily limit per call without escalation.
func (s *Service) Withdraw(ctx context.Context, caller, addr common.Address, amount int64, dest Destination) (Wallet, error) {
	unlock := s.lock(addr)
	defer unlock()

	w, err := s.loadActive(ctx, addr)
	if err != nil {
		return Wallet{}, err
	}
	if err := s.authorizeOwner(ctx, caller, w); err != nil {
		return Wallet{}, err
	}

	var to string
	switch dest.Kind {
	case DestinationOwnerAccount:
		if dest.Address == (common.Address{}) {
			return Wallet{}, fmt.Errorf("%w: destination address is required", ErrInvalidRequest)
		}
		to = ledger.AccountCode(dest.Address)
	case DestinationOwnerIdentity:
		ein := dest.EIN
		if ein == 0 {
			ein = w.OwnerEIN
		}
		if ein != w.OwnerEIN {
			if err := s.checkIdentity(ctx, ein); err != nil {
				return Wallet{}, err
			}
		}
		to = ledger.IdentityCode(ein)
	default:
		return Wallet{}, fmt.Errorf("%w: unknown destination kind %q", ErrInvalidRequest, dest.Kind)
	}

	next := w.clone()
	if err := next.withdrawLimited(s.now(), amount); err != nil {
		return Wallet{}, err
	}
	p := posting{from: ledger.WalletCode(addr), to: to, kind: ledger.KindWithdrawal, amount: amount}
	if err := s.commit(ctx, w, next, []posting{p}, false); err != nil {
		return Wallet{}, err
	}

	s.logger.Info("wallet withdrawal",
		slog.String("wallet", addr.Hex()),
		slog.String("destination", to),
		slog.Int64("amount", amount),
		slog.Int64("withdrawn_today", next.WithdrawnToday),
	)
	s.emit(ctx, notification.KindWithdrawn, addr, fmt.Sprintf("%d to %s", amount, to))
	return next, nil
}

// Request places slot kind into the pending state and submits the matching
// oracle request. It returns the request id the callback must carry.
func (s *Service) Request(ctx context.Context, caller, addr common.Address, kind Kind, params RequestParams) (string, error) {
	unlock := s.lock(addr)
	defer unlock()

	w, err := s.loadActive(ctx, addr)
	if err != nil {
		return "", err
	}
	if err := s.authorizeOwner(ctx, caller, w); err != nil {
		return "", err
	}

	if kind == KindWithdrawToIdentity && params.EIN != 0 {
		if err := s.checkIdentity(ctx, params.EIN); err != nil {
			return "", err
		}
	}

	now := s.now()
	next := w.clone()
	slot, err := next.beginRequest(now, kind, params)
	if err != nil {
		return "", err
	}
	code := next.challenge(now)

	id, err := s.oracle.Submit(ctx, oracle.Request{
		JobType:     s.jobID,
		Callback:    oracle.Callback{Wallet: addr, Kind: string(kind)},
		Payload:     requestPayload(next, kind, slot, code),
		SubmittedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("submit oracle request: %w", err)
	}

	next.recordRequest(now, kind, slot, id)
	if err := s.repo.Save(ctx, next); err != nil {
		s.logger.Error("orphaned oracle request", slog.String("request_id", id), slog.Any("error", err))
		return "", fmt.Errorf("save wallet: %w", err)
	}

	s.logger.Info("two-factor requested", slog.String("wallet", addr.Hex()), slog.String("kind", string(kind)), slog.String("request_id", id))
	s.emit(ctx, notification.KindTwoFactorRequest, addr, fmt.Sprintf("%s %s", kind, id))
	return id, nil
}

// RequestLimitChange escalates a daily limit change.
func (s *Service) RequestLimitChange(ctx context.Context, caller, addr common.Address, limit int64) (string, error) {
	return s.Request(ctx, caller, addr, KindLimitChange, RequestParams{Limit: limit})
}

// RequestRecovery escalates destroying the wallet in favour of the recovery address.
func (s *Service) RequestRecovery(ctx context.Context, caller, addr common.Address) (string, error) {
	return s.Request(ctx, caller, addr, KindRecovery, RequestParams{})
}

// RequestWithdrawToOwner escalates a one-time payout to the owner's identity balance.
func (s *Service) RequestWithdrawToOwner(ctx context.Context, caller, addr common.Address, amount int64) (string, error) {
	return s.Request(ctx, caller, addr, KindWithdrawToOwner, RequestParams{Amount: amount})
}

// RequestTransfer escalates a one-time payout to an external address.
func (s *Service) RequestTransfer(ctx context.Context, caller, addr, to common.Address, amount int64) (string, error) {
	return s.Request(ctx, caller, addr, KindTransferToAddress, RequestParams{Amount: amount, To: to})
}

// RequestWithdrawToIdentity escalates a one-time payout to another identity.
func (s *Service) RequestWithdrawToIdentity(ctx context.Context, caller, addr common.Address, ein uint64, amount int64) (string, error) {
	return s.Request(ctx, caller, addr, KindWithdrawToIdentity, RequestParams{Amount: amount, EIN: ein})
}

// Fulfill consumes the oracle callback for requestID. Approval applies the
// slot's effect exactly once; rejection only clears the slot.
func (s *Service) Fulfill(ctx context.Context, caller, addr common.Address, kind Kind, requestID string, approved bool) (Wallet, error) {
	if s.oracleAddress == (common.Address{}) || caller != s.oracleAddress {
		return Wallet{}, ErrUnauthorized
	}

	unlock := s.lock(addr)
	defer unlock()

	w, err := s.repo.Get(ctx, addr)
	if err != nil {
		return Wallet{}, err
	}

	now := s.now()
	next := w.clone()
	slot, err := next.settle(kind, requestID)
	if err != nil {
		return Wallet{}, err
	}
	if w.Terminated {
		return Wallet{}, ErrWalletTerminated
	}

	var (
		postings   []posting
		deregister bool
	)
	if approved {
		custody := ledger.WalletCode(addr)
		switch kind {
		case KindLimitChange:
			next.DailyLimit = slot.Limit
		case KindRecovery:
			amount := next.drain()
			postings = append(postings, posting{from: custody, to: ledger.AccountCode(next.RecoveryAddress), kind: ledger.KindRecovery, amount: amount})
			next.terminate(now)
			deregister = true
		case KindWithdrawToOwner, KindTransferToAddress, KindWithdrawToIdentity:
			if err := next.debit(slot.Amount); err != nil {
				return Wallet{}, err
			}
			var to string
			switch kind {
			case KindWithdrawToOwner:
				to = ledger.IdentityCode(next.OwnerEIN)
			case KindTransferToAddress:
				to = ledger.AccountCode(slot.To)
			default:
				to = ledger.IdentityCode(slot.EIN)
			}
			postings = append(postings, posting{from: custody, to: to, kind: ledger.KindOneTime, amount: slot.Amount})
		}
	}

	if err := s.commit(ctx, w, next, postings, deregister); err != nil {
		return Wallet{}, err
	}

	s.logger.Info("two-factor settled",
		slog.String("wallet", addr.Hex()),
		slog.String("kind", string(kind)),
		slog.String("request_id", requestID),
		slog.Bool("approved", approved),
	)
	s.emit(ctx, notification.KindTwoFactorSettled, addr, fmt.Sprintf("%s %s approved=%t", kind, requestID, approved))
	if deregister {
		s.emit(ctx, notification.KindWalletDestroyed, addr, "recovery approved")
	}
	return next, nil
}

// ResetPending clears every slot without applying effects. Callbacks for the
// cleared requests are rejected afterwards.
func (s *Service) ResetPending(ctx context.Context, caller, addr common.Address) ([]string, error) {
	unlock := s.lock(addr)
	defer unlock()

	w, err := s.loadActive(ctx, addr)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, caller, w); err != nil {
		return nil, err
	}

	next := w.clone()
	cancelled, err := next.resetPending(s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save wallet: %w", err)
	}

	s.logger.Info("pending state reset", slog.String("wallet", addr.Hex()), slog.Int("cancelled", len(cancelled)))
	s.emit(ctx, notification.KindPendingReset, addr, strconv.Itoa(len(cancelled)))
	return cancelled, nil
}

// Commit records the first half of a commit-reveal recovery. Recording a hash
// twice is a no-op.
func (s *Service) Commit(ctx context.Context, caller, addr common.Address, hash common.Hash) error {
	unlock := s.lock(addr)
	defer unlock()

	w, err := s.loadActive(ctx, addr)
	if err != nil {
		return err
	}
	if caller != w.RecoveryAddress {
		if err := s.authorizeOwner(ctx, caller, w); err != nil {
			return err
		}
	}

	next := w.clone()
	added, err := next.addCommit(hash)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}

	s.emit(ctx, notification.KindCommitRecorded, addr, hash.Hex())
	return nil
}

// Reveal completes recovery: the whole balance goes to destination and the
// wallet is destroyed.
func (s *Service) Reveal(ctx context.Context, caller, addr common.Address, hash common.Hash, destination common.Address, password string) (int64, error) {
	unlock := s.lock(addr)
	defer unlock()

	w, err := s.loadActive(ctx, addr)
	if err != nil {
		return 0, err
	}

	next := w.clone()
	if err := next.useCommit(hash, destination, password); err != nil {
		return 0, err
	}
	amount := next.drain()
	next.terminate(s.now())

	p := posting{from: ledger.WalletCode(addr), to: ledger.AccountCode(destination), kind: ledger.KindRecovery, amount: amount}
	if err := s.commit(ctx, w, next, []posting{p}, true); err != nil {
		return 0, err
	}

	s.logger.Info("wallet recovered by password",
		slog.String("wallet", addr.Hex()),
		slog.String("caller", caller.Hex()),
		slog.String("destination", destination.Hex()),
		slog.Int64("amount", amount),
	)
	s.emit(ctx, notification.KindWalletDestroyed, addr, fmt.Sprintf("%d to %s", amount, destination.Hex()))
	return amount, nil
}

type posting struct {
	from   string
	to     string
	kind   string
	amount int64
}

// commit performs the ledger postings and persists next. When deregister is
// set the terminated snapshot is saved before the registry is told, and prev is
// saved back if the registry refuses. Postings already made are reversed when
// a later step fails.
func (s *Service) commit(ctx context.Context, prev, next Wallet, postings []posting, deregister bool) error {
	done := make([]posting, 0, len(postings))
	for _, p := range postings {
		if p.amount == 0 {
			continue
		}
		if err := s.ledger.EnsureAccount(ctx, p.to); err != nil {
			s.reverse(ctx, done)
			return fmt.Errorf("open destination account: %w", err)
		}
		if _, err := s.ledger.Transfer(ctx, p.from, p.to, p.kind, uuid.NewString(), p.amount); err != nil {
			s.reverse(ctx, done)
			if errors.Is(err, ledger.ErrInsufficientFunds) || errors.Is(err, ledger.ErrUnknownAccount) {
				return fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
			}
			return fmt.Errorf("ledger transfer: %w", err)
		}
		done = append(done, p)
	}

	if err := s.repo.Save(ctx, next); err != nil {
		s.reverse(ctx, done)
		return fmt.Errorf("save wallet: %w", err)
	}

	if deregister && s.registry != nil {
		if err := s.registry.NotifyDeleted(ctx, next.Address, next.OwnerEIN); err != nil {
			if rerr := s.repo.Save(ctx, prev); rerr != nil {
				s.logger.Error("restore wallet after failed deregistration",
					slog.String("wallet", prev.Address.Hex()),
					slog.Any("error", rerr),
				)
			}
			s.reverse(ctx, done)
			return fmt.Errorf("deregister wallet: %w", err)
		}
	}
	return nil
}

func (s *Service) reverse(ctx context.Context, done []posting) {
	for i := len(done) - 1; i >= 0; i-- {
		p := done[i]
		if _, err := s.ledger.Transfer(ctx, p.to, p.from, p.kind+"_reversal", uuid.NewString(), p.amount); err != nil {
			s.logger.Error("reverse ledger posting",
				slog.String("from", p.from),
				slog.String("to", p.to),
				slog.Int64("amount", p.amount),
				slog.Any("error", err),
			)
		}
	}
}

func (s *Service) lock(addr common.Address) func() {
	l := &s.locks[binary.BigEndian.Uint32(addr[common.AddressLength-4:])%lockStripes]
	l.Lock()
	return l.Unlock
}

func (s *Service) loadActive(ctx context.Context, addr common.Address) (Wallet, error) {
	w, err := s.repo.Get(ctx, addr)
	if err != nil {
		return Wallet{}, err
	}
	if w.Terminated {
		return Wallet{}, ErrWalletTerminated
	}
	return w, nil
}

func (s *Service) authorizeOwner(ctx context.Context, caller common.Address, w Wallet) error {
	ein, err := s.directory.ResolveOwner(ctx, caller)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("resolve caller: %w", err)
	}
	if ein != w.OwnerEIN {
		return ErrUnauthorized
	}
	return nil
}

func (s *Service) checkIdentity(ctx context.Context, ein uint64) error {
	if _, _, err := s.directory.RecoveryDetails(ctx, ein); err != nil {
		return fmt.Errorf("identity %d: %w", ein, err)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, kind string, addr common.Address, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: addr.Hex(), Body: body}); err != nil {
		s.logger.Warn("emit event", slog.String("kind", kind), slog.Any("error", err))
	}
}

func requestPayload(w Wallet, kind Kind, slot Slot, code uint32) map[string]string {
	payload := map[string]string{
		"kind":   string(kind),
		"wallet": w.Address.Hex(),
		"label":  w.RecoveryLabel,
		"code":   fmt.Sprintf("%06d", code),
	}
	switch kind {
	case KindLimitChange:
		payload["limit"] = strconv.FormatInt(slot.Limit, 10)
	case KindWithdrawToOwner:
		payload["amount"] = strconv.FormatInt(slot.Amount, 10)
	case KindTransferToAddress:
		payload["amount"] = strconv.FormatInt(slot.Amount, 10)
		payload["to"] = slot.To.Hex()
	case KindWithdrawToIdentity:
		payload["amount"] = strconv.FormatInt(slot.Amount, 10)
		payload["ein"] = strconv.FormatUint(slot.EIN, 10)
	}
	return payload
}
