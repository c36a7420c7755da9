package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBSource string
	Port     string
	Env      string

	RedisAddr string
	AMQPURL   string

	// ProviderFailureThreshold is the number of consecutive catalog sync
	// failures after which a provider is deactivated.
	ProviderFailureThreshold int
	// DispatchMaxAttempts bounds retries of a single provider placement
	// call on transient errors.
	DispatchMaxAttempts int
	DispatchBackoffBase time.Duration
	ProviderTimeout     time.Duration

	SweepInterval  time.Duration
	SweepBatchSize int

	StatsCacheTTL time.Duration
}

func Load() (*Config, error) {
	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	cfg := &Config{
		DBSource:                 dbSource,
		Port:                     getEnv("SERVER_PORT", "8080"),
		Env:                      getEnv("ENVIRONMENT", "development"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		AMQPURL:                  os.Getenv("AMQP_URL"),
		ProviderFailureThreshold: getEnvInt("PROVIDER_FAILURE_THRESHOLD", 3),
		DispatchMaxAttempts:      getEnvInt("DISPATCH_MAX_ATTEMPTS", 3),
		DispatchBackoffBase:      getEnvDuration("DISPATCH_BACKOFF_BASE", 500*time.Millisecond),
		ProviderTimeout:          getEnvDuration("PROVIDER_TIMEOUT", 15*time.Second),
		SweepInterval:            getEnvDuration("SWEEP_INTERVAL", time.Minute),
		SweepBatchSize:           getEnvInt("SWEEP_BATCH_SIZE", 50),
		StatsCacheTTL:            getEnvDuration("STATS_CACHE_TTL", 30*time.Second),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
