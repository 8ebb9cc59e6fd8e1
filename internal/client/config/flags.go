package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/bizkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   REST base URL of the direct backend
//	-g string   host:port of the direct backend gRPC endpoint
//	-t string   direct transport, http or grpc
//	-i int      online check interval in seconds
//
// Only these flags are looked at; the rest of args is left to other parsers.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-t", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DirectEndpointURL, "a", cfg.DirectEndpointURL, "direct backend base URL")
	fs.StringVar(&cfg.DirectGRPCAddr, "g", cfg.DirectGRPCAddr, "direct backend gRPC address")
	fs.StringVar(&cfg.DirectTransport, "t", cfg.DirectTransport, "direct backend transport (http|grpc)")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("config flags: %w", err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	return nil
}
