package routes

import (
    "context"
    "net/http"
    "time"

    "github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds liveness and readiness endpoints. Readiness
// reports the backing stores and the depth of the oracle request queue.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
    app.Get("/livez", func(c *fiber.Ctx) error {
        return c.SendStatus(http.StatusNoContent)
    })

    app.Get("/healthz", func(c *fiber.Ctx) error {
        status := fiber.Map{"postgres": "memory", "redis": "memory"}
        healthy := true

        ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
        defer cancel()
        if d.DB != nil {
            status["postgres"] = "ok"
            if err := d.DB.Ping(ctx); err != nil {
                status["postgres"] = err.Error()
                healthy = false
            }
        }
        if d.Cache != nil {
            status["redis"] = "ok"
            if err := d.Cache.Ping(ctx).Err(); err != nil {
                status["redis"] = err.Error()
                healthy = false
            } else if n, err := d.Cache.LLen(ctx, d.Cfg.OracleQueueKey).Result(); err == nil {
                status["oracle_queue"] = n
            }
        }

        code := http.StatusOK
        if !healthy {
            code = http.StatusServiceUnavailable
        }
        return c.Status(code).JSON(fiber.Map{
            "status":    status,
            "timestamp": time.Now().UTC().Format(time.RFC3339Nano),
        })
    })
}
