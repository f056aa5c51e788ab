package wallet

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/guardwallet/guard_wallet/internal/identity"
	"github.com/guardwallet/guard_wallet/internal/middleware"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type slotResponse struct {
	Kind        Kind      `json:"kind"`
	RequestID   string    `json:"request_id"`
	Amount      int64     `json:"amount,omitempty"`
	Limit       int64     `json:"limit,omitempty"`
	To          string    `json:"to,omitempty"`
	EIN         uint64    `json:"ein,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

type walletResponse struct {
	Address             string         `json:"address"`
	OwnerEIN            uint64         `json:"owner_ein"`
	RecoveryAddress     string         `json:"recovery_address"`
	Balance             int64          `json:"balance"`
	DailyLimit          int64          `json:"daily_limit"`
	WithdrawnToday      int64          `json:"withdrawn_today"`
	WindowStart         time.Time      `json:"window_start"`
	Pending             []slotResponse `json:"pending"`
	HasRecoveryPassword bool           `json:"has_recovery_password"`
	Terminated          bool           `json:"terminated"`
}

func toResponse(w Wallet) walletResponse {
	resp := walletResponse{
		Address:             w.Address.Hex(),
		OwnerEIN:            w.OwnerEIN,
		RecoveryAddress:     w.RecoveryAddress.Hex(),
		Balance:             w.Balance,
		DailyLimit:          w.DailyLimit,
		WithdrawnToday:      w.WithdrawnToday,
		WindowStart:         w.WindowStart,
		Pending:             []slotResponse{},
		HasRecoveryPassword: w.HasRecoveryPassword,
		Terminated:          w.Terminated,
	}
	for _, k := range Kinds {
		slot, ok := w.Pending[k]
		if !ok {
			continue
		}
		sr := slotResponse{Kind: k, RequestID: slot.RequestID, Amount: slot.Amount, Limit: slot.Limit, EIN: slot.EIN, RequestedAt: slot.RequestedAt}
		if slot.To != (common.Address{}) {
			sr.To = slot.To.Hex()
		}
		resp.Pending = append(resp.Pending, sr)
	}
	return resp
}

// Get returns the wallet state. Reading is public.
func (h *Handler) Get(c *fiber.Ctx) error {
	addr, err := addressParam(c)
	if err != nil {
		return err
	}
	w, err := h.service.Get(c.UserContext(), addr)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(w))
}

type depositRequest struct {
	Amount int64  `json:"amount"`
	Source string `json:"source"`
}

// Deposit credits the wallet from the caller's account or identity balance.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	caller, addr, err := callerAndWallet(c)
	if err != nil {
		return err
	}
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	src := Source{Kind: SourceAccount, Address: caller}
	if req.Source != "" {
		src.Kind = SourceKind(req.Source)
	}
	w, err := h.service.Deposit(c.UserContext(), caller, addr, src, req.Amount)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(w))
}

type withdrawRequest struct {
	Amount      int64  `json:"amount"`
	Destination string `json:"destination"`
	Address     string `json:"address"`
	EIN         uint64 `json:"ein"`
}

// Withdraw pays out within the daily limit.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	caller, addr, err := callerAndWallet(c)
	if err != nil {
		return err
	}
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	dest := Destination{Kind: DestinationOwnerAccount, Address: caller, EIN: req.EIN}
	if req.Destination != "" {
		dest.Kind = DestinationKind(req.Destination)
	}
	if req.Address != "" {
		to, err := parseAddress(req.Address)
		if err != nil {
			return err
		}
		dest.Address = to
	}
	w, err := h.service.Withdraw(c.UserContext(), caller, addr, req.Amount, dest)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(w))
}

type twoFactorRequest struct {
	Limit  int64  `json:"limit"`
	Amount int64  `json:"amount"`
	To     string `json:"to"`
	EIN    uint64 `json:"ein"`
}

// Request opens a two-factor request in the slot named by :kind.
func (h *Handler) Request(c *fiber.Ctx) error {
	caller, addr, err := callerAndWallet(c)
	if err != nil {
		return err
	}
	kind, err := ParseKind(c.Params("kind"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	var req twoFactorRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	params := RequestParams{Limit: req.Limit, Amount: req.Amount, EIN: req.EIN}
	if req.To != "" {
		to, err := parseAddress(req.To)
		if err != nil {
			return err
		}
		params.To = to
	}
	id, err := h.service.Request(c.UserContext(), caller, addr, kind, params)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"wallet":     addr.Hex(),
		"kind":       kind,
		"request_id": id,
	})
}

// Reset clears every pending slot.
func (h *Handler) Reset(c *fiber.Ctx) error {
	caller, addr, err := callerAndWallet(c)
	if err != nil {
		return err
	}
	cancelled, err := h.service.ResetPending(c.UserContext(), caller, addr)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"cancelled": cancelled})
}

type commitRequest struct {
	Hash string `json:"hash"`
}

// Commit records a recovery commitment.
func (h *Handler) Commit(c *fiber.Ctx) error {
	caller, addr, err := callerAndWallet(c)
	if err != nil {
		return err
	}
	var req commitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	hash, err := parseHash(req.Hash)
	if err != nil {
		return err
	}
	if err := h.service.Commit(c.UserContext(), caller, addr, hash); err != nil {
		return HTTPError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

type revealRequest struct {
	Hash        string `json:"hash"`
	Destination string `json:"destination"`
	Password    string `json:"password"`
}

// Reveal completes password recovery.
func (h *Handler) Reveal(c *fiber.Ctx) error {
	caller, addr, err := callerAndWallet(c)
	if err != nil {
		return err
	}
	var req revealRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	hash, err := parseHash(req.Hash)
	if err != nil {
		return err
	}
	dest, err := parseAddress(req.Destination)
	if err != nil {
		return err
	}
	amount, err := h.service.Reveal(c.UserContext(), caller, addr, hash, dest, req.Password)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet":      addr.Hex(),
		"destination": dest.Hex(),
		"amount":      amount,
	})
}

type callbackRequest struct {
	RequestID string `json:"request_id"`
	Approved  bool   `json:"approved"`
}

// Callback receives the oracle's verdict for a two-factor request.
func (h *Handler) Callback(c *fiber.Ctx) error {
	caller, addr, err := callerAndWallet(c)
	if err != nil {
		return err
	}
	kind, err := ParseKind(c.Params("kind"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	var req callbackRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.RequestID == "" {
		return fiber.NewError(http.StatusBadRequest, "request_id is required")
	}
	w, err := h.service.Fulfill(c.UserContext(), caller, addr, kind, req.RequestID, req.Approved)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(w))
}

func callerAndWallet(c *fiber.Ctx) (common.Address, common.Address, error) {
	caller, ok := middleware.Caller(c)
	if !ok {
		return common.Address{}, common.Address{}, fiber.NewError(http.StatusUnauthorized, "missing caller address")
	}
	addr, err := addressParam(c)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return caller, addr, nil
}

func addressParam(c *fiber.Ctx) (common.Address, error) {
	return parseAddress(c.Params("address"))
}

func parseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fiber.NewError(http.StatusBadRequest, "invalid address "+raw)
	}
	return common.HexToAddress(raw), nil
}

func parseHash(raw string) (common.Hash, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if len(raw) != 2*common.HashLength {
		return common.Hash{}, fiber.NewError(http.StatusBadRequest, "hash must be 32 bytes of hex")
	}
	return common.HexToHash(raw), nil
}

// HTTPError maps domain failures onto HTTP statuses.
func HTTPError(err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ErrWalletNotFound), errors.Is(err, ErrUnknownRequest), errors.Is(err, identity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrWalletTerminated):
		status = http.StatusGone
	case errors.Is(err, ErrAlreadyPending), errors.Is(err, ErrAlreadyFulfilled), errors.Is(err, ErrWalletExists):
		status = http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, ErrLimitExceeded), errors.Is(err, ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidCommitment), errors.Is(err, ErrInvalidPassword):
		status = http.StatusForbidden
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrRecoveryDisabled):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		return err
	}
	return fiber.NewError(status, err.Error())
}
