package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"amsprobe/internal"
	"amsprobe/internal/config"
	"amsprobe/internal/errors"
)

// exitConfig is returned for configuration errors, exitFailure for anything
// else that stops a run.
const (
	exitConfig  = 2
	exitFailure = 1
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "amsprobe",
		Short:         "Equivalence checker for analog/mixed-signal models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newCheckCmd(),
		newAgentCmd(),
		newVectorsCmd(),
		newModelCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.HasCode(err, errors.CodeConfigInvalid) {
			os.Exit(exitConfig)
		}
		os.Exit(exitFailure)
	}
}

// loadConfig reads the process configuration and builds the logger.
func loadConfig() (*config.Config, *internal.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel)), nil
}
