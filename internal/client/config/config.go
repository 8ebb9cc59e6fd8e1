package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Transports of the direct backend.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Secret store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds runtime settings for the BizKeeper CLI.
//
// Units: durations are time.Duration; RequestTimeout bounds one call to an
// identity backend, OnlineCheckInterval is the connectivity probe period.
type Config struct {
	DirectEndpointURL   string        `env:"BIZ_DIRECT_URL, overwrite" validate:"required_if=DirectTransport http"`
	DirectTransport     string        `env:"BIZ_DIRECT_TRANSPORT, overwrite" validate:"oneof=http grpc"`
	DirectGRPCAddr      string        `env:"BIZ_DIRECT_GRPC_ADDR, overwrite" validate:"required_if=DirectTransport grpc"`
	RequestTimeout      time.Duration `env:"BIZ_REQUEST_TIMEOUT, overwrite" validate:"gt=0"`
	OnlineCheckInterval time.Duration `env:"BIZ_ONLINE_CHECK_INTERVAL, overwrite" validate:"gt=0"`

	FederatedIssuerURL    string   `env:"BIZ_FEDERATED_ISSUER, overwrite" validate:"omitempty,url"`
	FederatedClientID     string   `env:"BIZ_FEDERATED_CLIENT_ID, overwrite" validate:"required_with=FederatedIssuerURL"`
	FederatedClientSecret string   `env:"BIZ_FEDERATED_CLIENT_SECRET, overwrite"`
	FederatedScopes       []string `env:"BIZ_FEDERATED_SCOPES, overwrite"`

	DemoEmail               string `env:"BIZ_DEMO_EMAIL, overwrite" validate:"required,email"`
	DemoPassword            string `env:"BIZ_DEMO_PASSWORD, overwrite" validate:"required"`
	OfflineVerificationCode string `env:"BIZ_OFFLINE_CODE, overwrite" validate:"required,numeric,len=6"`

	DatabaseDSN        string `env:"BIZ_DATABASE_DSN, overwrite" validate:"required_if=SecretStoreBackend sqlite"`
	SecretStoreBackend string `env:"BIZ_SECRET_STORE, overwrite" validate:"oneof=sqlite redis memory"`
	RedisAddr          string `env:"BIZ_REDIS_ADDR, overwrite" validate:"required_if=SecretStoreBackend redis"`
	RedisDB            int    `env:"BIZ_REDIS_DB, overwrite" validate:"gte=0"`
	DeviceSecret       string `env:"BIZ_DEVICE_SECRET, overwrite"`

	TokenVerifyKey string        `env:"BIZ_TOKEN_VERIFY_KEY, overwrite"`
	TokenLeeway    time.Duration `env:"BIZ_TOKEN_LEEWAY, overwrite" validate:"gte=0"`

	LogLevel    string `env:"BIZ_LOG_LEVEL, overwrite" validate:"oneof=debug info warn error"`
	LogFormat   string `env:"BIZ_LOG_FORMAT, overwrite" validate:"oneof=text json zerolog"`
	MetricsAddr string `env:"BIZ_METRICS_ADDR, overwrite" validate:"omitempty,hostname_port"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DirectEndpointURL = "http://127.0.0.1:8080/api"
	c.DirectTransport = TransportHTTP
	c.DirectGRPCAddr = "127.0.0.1:50051"
	c.RequestTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second

	c.FederatedScopes = []string{"openid", "profile", "email", "offline_access"}

	c.DemoEmail = "demo@bizkeeper.app"
	c.DemoPassword = "demo123"
	c.OfflineVerificationCode = "123456"

	c.DatabaseDSN = "file:bizkeeper.db?_pragma=busy_timeout(5000)"
	c.SecretStoreBackend = BackendSQLite
	c.RedisAddr = "127.0.0.1:6379"

	c.TokenLeeway = 30 * time.Second

	c.LogLevel = "info"
	c.LogFormat = "text"
}

// FederatedEnabled reports whether a federated identity platform is set up.
func (c *Config) FederatedEnabled() bool {
	return c.FederatedIssuerURL != ""
}

// LoadConfig builds a Config from the process arguments and environment.
func LoadConfig(ctx context.Context) (*Config, error) {
	return Load(ctx, os.Args[1:], envconfig.OsLookuper())
}

// Load applies defaults, then the JSON file named by -c/-config in args,
// then environment variables from env, then flags. Later sources take
// precedence over earlier ones. The result is validated.
func Load(ctx context.Context, args []string, env envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(ctx, cfg, env); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func parseEnv(ctx context.Context, cfg *Config, env envconfig.Lookuper) error {
	if env == nil {
		return nil
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: cfg, Lookuper: env}); err != nil {
		return fmt.Errorf("config env: %w", err)
	}
	return nil
}
