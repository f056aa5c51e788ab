package routes

import (
    "net/http"
    "strconv"

    "github.com/ethereum/go-ethereum/common"
    "github.com/gofiber/fiber/v2"

    "github.com/guardwallet/guard_wallet/internal/factory"
    "github.com/guardwallet/guard_wallet/internal/middleware"
)

// RegisterFactoryRoutes exposes the factory registry.
func RegisterFactoryRoutes(r fiber.Router, factorySvc *factory.Service) {
    r.Get("/identities/:ein/wallet", func(c *fiber.Ctx) error {
        ein, err := einParam(c)
        if err != nil {
            return err
        }
        addr, err := factorySvc.ActiveWallet(c.UserContext(), ein)
        if err != nil {
            return domainError(err)
        }
        return c.Status(http.StatusOK).JSON(fiber.Map{"ein": ein, "wallet": addr.Hex()})
    })

    // Reprovision after the previous wallet destroyed itself.
    r.Post("/identities/:ein/wallet", middleware.RequireCaller(), func(c *fiber.Ctx) error {
        caller, _ := middleware.Caller(c)
        ein, err := einParam(c)
        if err != nil {
            return err
        }
        var req struct {
            PasswordHash string `json:"password_hash"`
        }
        if len(c.Body()) > 0 {
            if err := c.BodyParser(&req); err != nil {
                return fiber.NewError(http.StatusBadRequest, err.Error())
            }
        }
        raw, err := decodeHex(req.PasswordHash)
        if err != nil || (len(raw) != 0 && len(raw) != common.HashLength) {
            return fiber.NewError(http.StatusBadRequest, "password_hash must be 32 bytes of hex")
        }
        w, err := factorySvc.Reprovision(c.UserContext(), caller, ein, common.BytesToHash(raw))
        if err != nil {
            return domainError(err)
        }
        return c.Status(http.StatusCreated).JSON(fiber.Map{"ein": ein, "wallet": w.Address.Hex()})
    })
}

func einParam(c *fiber.Ctx) (uint64, error) {
    ein, err := strconv.ParseUint(c.Params("ein"), 10, 64)
    if err != nil || ein == 0 {
        return 0, fiber.NewError(http.StatusBadRequest, "invalid ein")
    }
    return ein, nil
}
