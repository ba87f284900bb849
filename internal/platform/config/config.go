package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"lockmint/internal/platform/httpserver"
	"lockmint/pkg/domain"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	MetricsAddr   string
	LogLevel      string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	AdminAddress  domain.Address
	DatabaseURL   string
	HTTP          httpserver.Config
	Redis         RedisConfig
	Kafka         KafkaConfig
	Lock          LockConfig
	Sale          SaleConfig
}

// RedisConfig configures the optional Redis lock store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional audit stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LockConfig seeds lock accounting.
type LockConfig struct {
	DeploymentTime time.Time
	PenaltyRate    uint64
	BaseTokenURI   string
}

// SaleConfig seeds the allowance ledger.
type SaleConfig struct {
	LedgerAddress   domain.Address
	DailySupply     uint64
	PricePerUnit    uint64
	PaymentReceiver domain.Address
	PaymentAsset    string
	MembershipRoot  string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          envOr("LOCKMINT_ADDR", ":8080"),
		MetricsAddr:   envOr("METRICS_ADDR", ":9090"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envOr("JWT_ISSUER", "lockmint"),
		JWTAudience:   envOr("JWT_AUDIENCE", "lockmint-api"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		HTTP:          httpserver.DefaultConfig(),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: envOr("AUDIT_TOPIC", "lockmint.audit"),
		},
		Lock: LockConfig{
			BaseTokenURI: os.Getenv("BASE_TOKEN_URI"),
		},
		Sale: SaleConfig{
			PaymentAsset:   envOr("PAYMENT_ASSET", "USDC"),
			MembershipRoot: os.Getenv("MEMBERSHIP_ROOT"),
		},
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}

	var err error
	if cfg.Redis.PoolSize, err = intEnv("REDIS_POOL_SIZE", cfg.Redis.PoolSize); err != nil {
		return Server{}, err
	}
	if cfg.Redis.MinIdleConns, err = intEnv("REDIS_MIN_IDLE_CONNS", cfg.Redis.MinIdleConns); err != nil {
		return Server{}, err
	}

	if cfg.HTTP.WriteTimeout, err = durationEnv("HTTP_WRITE_TIMEOUT", cfg.HTTP.WriteTimeout); err != nil {
		return Server{}, err
	}
	if cfg.HTTP.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout); err != nil {
		return Server{}, err
	}

	cfg.Lock.DeploymentTime = time.Now().UTC().Truncate(time.Second)
	if raw := os.Getenv("DEPLOYMENT_TIME"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Server{}, fmt.Errorf("DEPLOYMENT_TIME: %w", err)
		}
		cfg.Lock.DeploymentTime = t.UTC()
	}
	if cfg.Lock.PenaltyRate, err = uintEnv("PENALTY_RATE", 0); err != nil {
		return Server{}, err
	}
	if cfg.Sale.DailySupply, err = uintEnv("DAILY_SUPPLY", 100); err != nil {
		return Server{}, err
	}
	if cfg.Sale.PricePerUnit, err = uintEnv("PRICE_PER_UNIT", 1); err != nil {
		return Server{}, err
	}
	if cfg.AdminAddress, err = addressEnv("ADMIN_ADDRESS"); err != nil {
		return Server{}, err
	}
	if cfg.Sale.LedgerAddress, err = addressEnv("LEDGER_ADDRESS"); err != nil {
		return Server{}, err
	}
	if cfg.Sale.PaymentReceiver, err = addressEnv("PAYMENT_RECEIVER"); err != nil {
		return Server{}, err
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func uintEnv(key string, fallback uint64) (uint64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// addressEnv returns the null address when key is unset.
func addressEnv(key string) (domain.Address, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return domain.NullAddress, nil
	}
	a, err := domain.ParseAddress(raw)
	if err != nil {
		return domain.NullAddress, fmt.Errorf("%s: %w", key, err)
	}
	return a, nil
}
