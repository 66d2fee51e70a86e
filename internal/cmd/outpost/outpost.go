// Package outpost parses engine command flags and launches the engine runtime.
package outpost

import (
	"context"
	"flag"
	"time"

	"github.com/louisbranch/outpost/internal/app"
	entrypoint "github.com/louisbranch/outpost/internal/platform/cmd"
)

// Config holds engine command configuration.
type Config struct {
	Port          int           `env:"OUTPOST_PORT" envDefault:"8086"`
	DBPath        string        `env:"OUTPOST_DB_PATH" envDefault:"data/outpost.db"`
	RemoteBaseURL string        `env:"OUTPOST_REMOTE_BASE_URL"`
	ProbeInterval time.Duration `env:"OUTPOST_PROBE_INTERVAL" envDefault:"15s"`
	LeaseTTL      time.Duration `env:"OUTPOST_LEASE_TTL" envDefault:"30s"`
	MaxAttempts   int           `env:"OUTPOST_MAX_ATTEMPTS" envDefault:"8"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The engine health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The engine SQLite database path")
	fs.StringVar(&cfg.RemoteBaseURL, "remote-base-url", cfg.RemoteBaseURL, "The remote order store base URL")
	fs.DurationVar(&cfg.ProbeInterval, "probe-interval", cfg.ProbeInterval, "Connectivity probe interval")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "Sync lease duration")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Maximum remote write attempts before parking an order")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the engine runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEngine, func(context.Context) error {
		return app.Run(ctx, app.RuntimeConfig{
			Port:          cfg.Port,
			DBPath:        cfg.DBPath,
			RemoteBaseURL: cfg.RemoteBaseURL,
			ProbeInterval: cfg.ProbeInterval,
			LeaseTTL:      cfg.LeaseTTL,
			MaxAttempts:   cfg.MaxAttempts,
		})
	})
}
