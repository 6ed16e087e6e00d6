// Package cmd holds the startup plumbing shared by initiative commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/louisbranch/initiative/internal/platform/config"
	"github.com/louisbranch/initiative/internal/platform/otel"
	"github.com/louisbranch/initiative/internal/platform/timeouts"
)

// Telemetry service names.
const (
	ServiceInitiative = "initiative"
	ServiceSeed       = "seed"
)

// ParseConfig fills cfg from INITIATIVE_* variables. Commands bind flags to
// the loaded values afterwards, so a flag overrides its variable.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnvPrefix(cfg, config.EnvPrefix)
}

// ParseArgs parses args with fs. A nil args slice parses as empty so the
// test binary's own flags never leak in.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag set is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry installs the trace provider for service, runs run and
// flushes pending spans once run returns.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	switch {
	case service == "":
		return fmt.Errorf("service name is required")
	case run == nil:
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	flush, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("set up telemetry: %w", err)
	}
	runErr := run(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := flush(flushCtx); err != nil {
		log.Printf("%s: flush telemetry: %v", service, err)
	}
	return runErr
}
