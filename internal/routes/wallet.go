package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/guardwallet/guard_wallet/internal/wallet"
)

// RegisterWalletRoutes wires owner-facing wallet endpoints. revealLimiter
// guards password guessing and may be nil.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, revealLimiter fiber.Handler) {
    r.Get("/wallets/:address", h.Get)
    r.Post("/wallets/:address/deposits", h.Deposit)
    r.Post("/wallets/:address/withdrawals", h.Withdraw)
    r.Post("/wallets/:address/requests/:kind", h.Request)
    r.Post("/wallets/:address/reset", h.Reset)
    r.Post("/wallets/:address/commits", h.Commit)
    if revealLimiter != nil {
        r.Post("/wallets/:address/reveal", revealLimiter, h.Reveal)
    } else {
        r.Post("/wallets/:address/reveal", h.Reveal)
    }
}

// RegisterOracleRoutes wires the oracle callback endpoint.
func RegisterOracleRoutes(r fiber.Router, h *wallet.Handler) {
    r.Post("/oracle/wallets/:address/callbacks/:kind", h.Callback)
}
