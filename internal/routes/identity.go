package routes

import (
    "encoding/hex"
    "log/slog"
    "net/http"
    "strings"

    "github.com/ethereum/go-ethereum/common"
    "github.com/gofiber/fiber/v2"

    "github.com/guardwallet/guard_wallet/internal/factory"
    "github.com/guardwallet/guard_wallet/internal/identity"
    "github.com/guardwallet/guard_wallet/internal/middleware"
)

// RegisterIdentityRoutes wires identity endpoints and provisions a wallet
// through the factory on registration.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, factorySvc *factory.Service, logger *slog.Logger) {
    r.Post("/identities", middleware.RequireCaller(), func(c *fiber.Ctx) error {
        caller, _ := middleware.Caller(c)
        var req struct {
            RecoveryAddress string `json:"recovery_address"`
            Label           string `json:"label"`
            PasswordHash    string `json:"password_hash"`
        }
        if err := c.BodyParser(&req); err != nil {
            return fiber.NewError(http.StatusBadRequest, err.Error())
        }

        input := identity.RegisterInput{Address: caller, Label: req.Label}
        if req.RecoveryAddress != "" {
            if !common.IsHexAddress(req.RecoveryAddress) {
                return fiber.NewError(http.StatusBadRequest, "invalid recovery_address")
            }
            input.RecoveryAddress = common.HexToAddress(req.RecoveryAddress)
        }
        extra, err := decodeHex(req.PasswordHash)
        if err != nil {
            return fiber.NewError(http.StatusBadRequest, "password_hash must be hex")
        }

        ident, err := ids.Register(c.UserContext(), input)
        if err != nil {
            return domainError(err)
        }
        w, err := factorySvc.OnAddition(c.UserContext(), ident.EIN, extra)
        if err != nil {
            logger.Error("wallet provisioning failed", slog.Uint64("ein", ident.EIN), slog.Any("error", err))
            return domainError(err)
        }

        logger.Info("identity.register completed",
            slog.Uint64("ein", ident.EIN),
            slog.String("address", ident.Address.Hex()),
            slog.String("wallet", w.Address.Hex()),
            slog.Int("status", http.StatusCreated),
        )
        return c.Status(http.StatusCreated).JSON(fiber.Map{
            "ein":              ident.EIN,
            "address":          ident.Address.Hex(),
            "recovery_address": ident.RecoveryAddress.Hex(),
            "label":            ident.Label,
            "wallet":           w.Address.Hex(),
            "daily_limit":      w.DailyLimit,
        })
    })

    r.Get("/identities/:ein", func(c *fiber.Ctx) error {
        ein, err := einParam(c)
        if err != nil {
            return err
        }
        ident, err := ids.Get(c.UserContext(), ein)
        if err != nil {
            return domainError(err)
        }
        return c.Status(http.StatusOK).JSON(fiber.Map{
            "ein":              ident.EIN,
            "address":          ident.Address.Hex(),
            "recovery_address": ident.RecoveryAddress.Hex(),
            "label":            ident.Label,
            "created_at":       ident.CreatedAt,
        })
    })
}

func decodeHex(s string) ([]byte, error) {
    s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
    if s == "" {
        return nil, nil
    }
    return hex.DecodeString(s)
}
