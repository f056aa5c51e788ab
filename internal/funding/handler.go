package funding

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/guardwallet/guard_wallet/internal/identity"
	"github.com/guardwallet/guard_wallet/internal/middleware"
)

// Handler exposes the operator mint endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type mintRequest struct {
	Account    string `json:"account"`
	EIN        uint64 `json:"ein"`
	Amount     int64  `json:"amount"`
	ClientTxID string `json:"client_tx_id"`
}

type mintResponse struct {
	TransactionID string `json:"transaction_id"`
	Account       string `json:"account"`
	Balance       int64  `json:"balance"`
}

// Mint issues tokens to an address or identity account.
func (h *Handler) Mint(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing caller address")
	}
	var req mintRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	input := MintInput{EIN: req.EIN, Amount: req.Amount, ClientTxID: req.ClientTxID}
	if raw := strings.TrimSpace(req.Account); raw != "" {
		if !common.IsHexAddress(raw) {
			return fiber.NewError(http.StatusBadRequest, "invalid account address")
		}
		input.Account = common.HexToAddress(raw)
	}

	result, err := h.service.Mint(c.UserContext(), caller, input)
	if err != nil {
		switch {
		case errors.Is(err, ErrOperatorOnly), errors.Is(err, ErrMintDisabled):
			return fiber.NewError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrInvalidInput):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		default:
			return err
		}
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	return c.Status(status).JSON(mintResponse{
		TransactionID: result.TransactionID,
		Account:       result.Account,
		Balance:       result.Balance,
	})
}
