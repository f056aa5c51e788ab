package middleware

import (
    "log/slog"
    "net/http"
    "strings"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/redis/go-redis/v9"
)

// RateLimit caps requests per caller address (or IP when anonymous) within
// one minute windows kept in Redis. scope separates independent limits.
func RateLimit(cache *redis.Client, scope string, maxPerMin int, logger *slog.Logger) fiber.Handler {
    if maxPerMin <= 0 {
        maxPerMin = 5
    }
    return func(c *fiber.Ctx) error {
        if cache == nil {
            return c.Next()
        }
        subject := c.IP()
        if addr, ok := Caller(c); ok {
            subject = strings.ToLower(addr.Hex())
        }
        key := "rl:" + scope + ":" + subject
        cnt, err := cache.Incr(c.UserContext(), key).Result()
        if err != nil {
            // fail open
            if logger != nil {
                logger.Warn("rate limit lookup failed", slog.String("scope", scope), slog.Any("error", err))
            }
            return c.Next()
        }
        if cnt == 1 {
            cache.Expire(c.UserContext(), key, time.Minute)
        }
        if cnt > int64(maxPerMin) {
            return fiber.NewError(http.StatusTooManyRequests, "too many attempts, try again later")
        }
        return c.Next()
    }
}
