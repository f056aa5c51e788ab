package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultAppName        = "GuardWallet"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultDailyLimit     = 1000
	defaultOracleJobID    = "two-factor-v1"
	defaultOracleQueueKey = "oracle:requests:v1"
	defaultRevealPerMin   = 5
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	// AutoMigrate applies the embedded schema on start.
	AutoMigrate bool

	DefaultDailyLimit int64
	OracleAddress     common.Address
	OracleJobID       string
	OracleQueueKey    string
	FactoryAddress    common.Address
	// OperatorAddress may mint tokens. The zero address disables minting.
	OperatorAddress common.Address
	// RevealPerMinute caps password reveal attempts per caller.
	RevealPerMinute int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		OracleJobID:       getEnv("ORACLE_JOB_ID", defaultOracleJobID),
		OracleQueueKey:    getEnv("ORACLE_QUEUE_KEY", defaultOracleQueueKey),
		DefaultDailyLimit: defaultDailyLimit,
		RevealPerMinute:   defaultRevealPerMin,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AutoMigrate, err = boolEnv("AUTO_MIGRATE", true); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("DEFAULT_DAILY_LIMIT"); v != "" {
		limit, err := strconv.ParseInt(v, 10, 64)
		if err != nil || limit < 0 {
			return Config{}, fmt.Errorf("invalid DEFAULT_DAILY_LIMIT %q", v)
		}
		cfg.DefaultDailyLimit = limit
	}
	if v := os.Getenv("REVEAL_RATE_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid REVEAL_RATE_PER_MINUTE %q", v)
		}
		cfg.RevealPerMinute = n
	}

	if cfg.OracleAddress, err = addressEnv("ORACLE_ADDRESS"); err != nil {
		return Config{}, err
	}
	if cfg.FactoryAddress, err = addressEnv("FACTORY_ADDRESS"); err != nil {
		return Config{}, err
	}
	if cfg.OperatorAddress, err = addressEnv("OPERATOR_ADDRESS"); err != nil {
		return Config{}, err
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.OracleAddress == (common.Address{}) {
			return Config{}, fmt.Errorf("ORACLE_ADDRESS must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.FactoryAddress == (common.Address{}) {
			return Config{}, fmt.Errorf("FACTORY_ADDRESS must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether in-memory backends are acceptable.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads <key>_SECONDS as an integer first, then <key> as a Go duration.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func addressEnv(key string) (common.Address, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid %s %q", key, v)
	}
	return common.HexToAddress(v), nil
}
