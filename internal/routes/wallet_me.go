package routes

import (
    "net/http"

    "github.com/gofiber/fiber/v2"

    "github.com/guardwallet/guard_wallet/internal/factory"
    "github.com/guardwallet/guard_wallet/internal/identity"
    "github.com/guardwallet/guard_wallet/internal/middleware"
    "github.com/guardwallet/guard_wallet/internal/wallet"
)

// RegisterWalletMeRoute exposes the caller's identity together with its live wallet.
func RegisterWalletMeRoute(r fiber.Router, ids *identity.Service, factorySvc *factory.Service, wallets *wallet.Service) {
    r.Get("/me/wallet", middleware.RequireCaller(), func(c *fiber.Ctx) error {
        caller, _ := middleware.Caller(c)
        ein, err := ids.ResolveOwner(c.UserContext(), caller)
        if err != nil {
            return domainError(err)
        }
        ident, err := ids.Get(c.UserContext(), ein)
        if err != nil {
            return domainError(err)
        }
        addr, err := factorySvc.ActiveWallet(c.UserContext(), ein)
        if err != nil {
            return domainError(err)
        }
        w, err := wallets.Get(c.UserContext(), addr)
        if err != nil {
            return domainError(err)
        }
        held, err := wallets.LedgerBalance(c.UserContext(), addr)
        if err != nil {
            return fiber.NewError(http.StatusInternalServerError, err.Error())
        }
        return c.Status(http.StatusOK).JSON(fiber.Map{
            "identity": fiber.Map{
                "ein":              ident.EIN,
                "address":          ident.Address.Hex(),
                "recovery_address": ident.RecoveryAddress.Hex(),
                "label":            ident.Label,
            },
            "wallet": fiber.Map{
                "address":         w.Address.Hex(),
                "balance":         w.Balance,
                "ledger_balance":  held,
                "daily_limit":     w.DailyLimit,
                "withdrawn_today": w.WithdrawnToday,
                "window_start":    w.WindowStart,
            },
        })
    })
}
