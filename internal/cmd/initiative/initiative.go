// Package initiative parses encounter server flags and launches the process.
package initiative

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/initiative/internal/platform/cmd"
	server "github.com/louisbranch/initiative/internal/services/encounter/app"
)

// Config holds encounter server configuration.
type Config struct {
	HTTPAddr            string `env:"HTTP_ADDR"                  envDefault:":8090"`
	GRPCAddr            string `env:"GRPC_ADDR"                  envDefault:":8091"`
	DBPath              string `env:"DB_PATH"                    envDefault:"data/initiative.db"`
	UpstreamAddr        string `env:"UPSTREAM_ADDR"`
	AllowNegativeHealth bool   `env:"ALLOW_NEGATIVE_HEALTH"`
	RollbackOnFailure   bool   `env:"ROLLBACK_ON_UPDATE_FAILURE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP/WebSocket listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "SheetService gRPC listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sqlite database path")
	fs.StringVar(&cfg.UpstreamAddr, "upstream-addr", cfg.UpstreamAddr, "serve sheets from this SheetService instead of a local database")
	fs.BoolVar(&cfg.AllowNegativeHealth, "allow-negative-health", cfg.AllowNegativeHealth, "keep health below zero instead of clamping")
	fs.BoolVar(&cfg.RollbackOnFailure, "rollback-on-update-failure", cfg.RollbackOnFailure, "restore the previous sheet when an update fails")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the encounter server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceInitiative, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:            cfg.HTTPAddr,
			GRPCAddr:            cfg.GRPCAddr,
			DBPath:              cfg.DBPath,
			UpstreamAddr:        cfg.UpstreamAddr,
			AllowNegativeHealth: cfg.AllowNegativeHealth,
			RollbackOnFailure:   cfg.RollbackOnFailure,
		}); err != nil {
			return fmt.Errorf("serve initiative: %w", err)
		}
		return nil
	})
}
