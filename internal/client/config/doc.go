// Package config loads runtime configuration for the BizKeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. BIZ_* environment variables (go-envconfig).
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string   REST base URL of the direct backend
//	-g string   host:port of the direct backend gRPC endpoint
//	-t string   direct transport, http or grpc
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
// Intervals are timex.Duration values, so "3s" and integer nanoseconds both
// work. Keys left out of the file keep their default:
//
//	{
//	  "direct_endpoint_url": "https://api.bizkeeper.app",
//	  "online_check_interval": "3s",
//	  "federated_issuer_url": "https://bizkeeper.eu.auth0.com",
//	  "federated_client_id": "cli",
//	  "secret_store": "sqlite",
//	  "log_format": "zerolog"
//	}
//
// The demo account and the offline verification code are configuration
// too; they default to demo@bizkeeper.app / demo123 and 123456.
package config
