package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/bizkeeper/internal/flagx"
	"github.com/dmitrijs2005/bizkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// use timex.Duration so the file may say "3s" or give nanoseconds.
type JsonConfig struct {
	DirectEndpointURL   string         `json:"direct_endpoint_url"`
	DirectTransport     string         `json:"direct_transport"`
	DirectGRPCAddr      string         `json:"direct_grpc_addr"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`

	FederatedIssuerURL    string   `json:"federated_issuer_url"`
	FederatedClientID     string   `json:"federated_client_id"`
	FederatedClientSecret string   `json:"federated_client_secret"`
	FederatedScopes       []string `json:"federated_scopes"`

	DemoEmail               string `json:"demo_email"`
	DemoPassword            string `json:"demo_password"`
	OfflineVerificationCode string `json:"offline_verification_code"`

	DatabaseDSN        string `json:"database_dsn"`
	SecretStoreBackend string `json:"secret_store"`
	RedisAddr          string `json:"redis_addr"`
	RedisDB            int    `json:"redis_db"`
	DeviceSecret       string `json:"device_secret"`

	TokenVerifyKey string         `json:"token_verify_key"`
	TokenLeeway    timex.Duration `json:"token_leeway"`

	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`
	MetricsAddr string `json:"metrics_addr"`
}

func toJSON(c *Config) JsonConfig {
	return JsonConfig{
		DirectEndpointURL:       c.DirectEndpointURL,
		DirectTransport:         c.DirectTransport,
		DirectGRPCAddr:          c.DirectGRPCAddr,
		RequestTimeout:          timex.Duration{Duration: c.RequestTimeout},
		OnlineCheckInterval:     timex.Duration{Duration: c.OnlineCheckInterval},
		FederatedIssuerURL:      c.FederatedIssuerURL,
		FederatedClientID:       c.FederatedClientID,
		FederatedClientSecret:   c.FederatedClientSecret,
		FederatedScopes:         c.FederatedScopes,
		DemoEmail:               c.DemoEmail,
		DemoPassword:            c.DemoPassword,
		OfflineVerificationCode: c.OfflineVerificationCode,
		DatabaseDSN:             c.DatabaseDSN,
		SecretStoreBackend:      c.SecretStoreBackend,
		RedisAddr:               c.RedisAddr,
		RedisDB:                 c.RedisDB,
		DeviceSecret:            c.DeviceSecret,
		TokenVerifyKey:          c.TokenVerifyKey,
		TokenLeeway:             timex.Duration{Duration: c.TokenLeeway},
		LogLevel:                c.LogLevel,
		LogFormat:               c.LogFormat,
		MetricsAddr:             c.MetricsAddr,
	}
}

func (jc JsonConfig) apply(c *Config) {
	c.DirectEndpointURL = jc.DirectEndpointURL
	c.DirectTransport = jc.DirectTransport
	c.DirectGRPCAddr = jc.DirectGRPCAddr
	c.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	c.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	c.FederatedIssuerURL = jc.FederatedIssuerURL
	c.FederatedClientID = jc.FederatedClientID
	c.FederatedClientSecret = jc.FederatedClientSecret
	c.FederatedScopes = jc.FederatedScopes
	c.DemoEmail = jc.DemoEmail
	c.DemoPassword = jc.DemoPassword
	c.OfflineVerificationCode = jc.OfflineVerificationCode
	c.DatabaseDSN = jc.DatabaseDSN
	c.SecretStoreBackend = jc.SecretStoreBackend
	c.RedisAddr = jc.RedisAddr
	c.RedisDB = jc.RedisDB
	c.DeviceSecret = jc.DeviceSecret
	c.TokenVerifyKey = jc.TokenVerifyKey
	c.TokenLeeway = time.Duration(jc.TokenLeeway.Duration)
	c.LogLevel = jc.LogLevel
	c.LogFormat = jc.LogFormat
	c.MetricsAddr = jc.MetricsAddr
}

// parseJSON overlays cfg with the JSON file named by -c or -config. Keys
// missing from the file keep their current value. No flag, no change.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	jc := toJSON(cfg)
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	jc.apply(cfg)
	return nil
}
