package middleware

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

// CallerHeader carries the address on whose behalf a request is made.
const CallerHeader = "X-Caller-Address"

const callerLocal = "caller_address"

// CallerAddress parses the caller header when present and stores the address
// for downstream handlers. A malformed address is rejected.
func CallerAddress() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get(CallerHeader))
		if raw == "" {
			return c.Next()
		}
		if !common.IsHexAddress(raw) {
			return fiber.NewError(http.StatusBadRequest, "invalid caller address")
		}
		c.Locals(callerLocal, common.HexToAddress(raw))
		return c.Next()
	}
}

// RequireCaller rejects requests that carry no caller address.
func RequireCaller() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := Caller(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, "missing caller address")
		}
		return c.Next()
	}
}

// Caller returns the address stored by CallerAddress.
func Caller(c *fiber.Ctx) (common.Address, bool) {
	addr, ok := c.Locals(callerLocal).(common.Address)
	return addr, ok
}
