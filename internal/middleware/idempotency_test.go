package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/guardwallet/guard_wallet/internal/logging"
)

const (
	aliceAddr = "0x1000000000000000000000000000000000000001"
	bobAddr   = "0x2000000000000000000000000000000000000002"
)

func setupTestApp(t *testing.T) (*fiber.App, *int32) {
	t.Helper()
	mr := miniredis.RunT(t)

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var hits int32
	app := fiber.New()
	app.Use(CallerAddress())
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	handler := func(c *fiber.Ctx) error {
		n := atomic.AddInt32(&hits, 1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "hit": n})
	}
	app.Post("/deposits", handler)
	app.Post("/withdrawals", handler)
	return app, &hits
}

func post(t *testing.T, app *fiber.App, path, key, caller string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, _ := setupTestApp(t)

	if status, _ := post(t, app, "/deposits", "", aliceAddr); status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, hits := setupTestApp(t)

	status, payload := post(t, app, "/deposits", "abc123", aliceAddr)
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	status, cached := post(t, app, "/deposits", "abc123", aliceAddr)
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if string(cached) != string(payload) {
		t.Fatalf("expected cached payload %s got %s", payload, cached)
	}
	if atomic.LoadInt32(hits) != 1 {
		t.Fatalf("handler ran %d times", atomic.LoadInt32(hits))
	}

	var decoded map[string]any
	if err := json.Unmarshal(cached, &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
}

func TestIdempotencyKeysAreScopedPerCaller(t *testing.T) {
	app, hits := setupTestApp(t)

	post(t, app, "/deposits", "same-key", aliceAddr)
	if status, _ := post(t, app, "/deposits", "same-key", bobAddr); status != fiber.StatusCreated {
		t.Fatalf("expected fresh response for another caller, got %d", status)
	}
	if atomic.LoadInt32(hits) != 2 {
		t.Fatalf("expected handler to run twice, ran %d", atomic.LoadInt32(hits))
	}
}

func TestIdempotencyRejectsKeyReuseAcrossRoutes(t *testing.T) {
	app, _ := setupTestApp(t)

	post(t, app, "/deposits", "k1", aliceAddr)
	if status, _ := post(t, app, "/withdrawals", "k1", aliceAddr); status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected %d got %d", fiber.StatusUnprocessableEntity, status)
	}
}
