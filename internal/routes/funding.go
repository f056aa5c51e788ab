package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/guardwallet/guard_wallet/internal/funding"
    "github.com/guardwallet/guard_wallet/internal/middleware"
)

// RegisterFundingRoutes wires the operator issuance endpoint.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
    r.Post("/funding/mint", middleware.RequireCaller(), h.Mint)
}
