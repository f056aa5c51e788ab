package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("DEFAULT_DAILY_LIMIT", "")
	t.Setenv("IDEMPOTENCY_TTL", "")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "")
	t.Setenv("SHUTDOWN_TIMEOUT", "")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultDailyLimit != defaultDailyLimit {
		t.Fatalf("expected default limit %d, got %d", defaultDailyLimit, cfg.DefaultDailyLimit)
	}
	if cfg.IdempotencyTTL != defaultIdempotencyTTL || cfg.ShutdownPeriod != defaultShutdownDelay {
		t.Fatalf("unexpected durations %v/%v", cfg.IdempotencyTTL, cfg.ShutdownPeriod)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected listen address %s", cfg.Address())
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DEFAULT_DAILY_LIMIT", "2500")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "")
	t.Setenv("IDEMPOTENCY_TTL", "90m")
	t.Setenv("ORACLE_ADDRESS", "0x4000000000000000000000000000000000000004")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultDailyLimit != 2500 {
		t.Fatalf("expected 2500, got %d", cfg.DefaultDailyLimit)
	}
	if cfg.ShutdownPeriod != 3*time.Second || cfg.IdempotencyTTL != 90*time.Minute {
		t.Fatalf("unexpected durations %v/%v", cfg.ShutdownPeriod, cfg.IdempotencyTTL)
	}
	if cfg.OracleAddress != common.HexToAddress("0x4000000000000000000000000000000000000004") {
		t.Fatalf("unexpected oracle address %s", cfg.OracleAddress.Hex())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("ORACLE_ADDRESS", "not-an-address")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid oracle address to fail")
	}

	t.Setenv("ORACLE_ADDRESS", "")
	t.Setenv("DEFAULT_DAILY_LIMIT", "-1")
	if _, err := Load(); err == nil {
		t.Fatalf("expected negative limit to fail")
	}
}

func TestLoadRequiresBackendsOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing DATABASE_URL to fail in production")
	}
}
