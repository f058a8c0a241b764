package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"amsprobe/internal/agent"
)

func newAgentCmd() *cobra.Command {
	var listen, root string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Serve simulation jobs for remote checkers",
		Long: `Run simulation jobs posted by "amsprobe check --agent".

Each job gets its own directory under --root. HDL files named in the
simulator configuration must be reachable on this host under the same paths.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if root == "" {
				root = cfg.Agent.Root
			}
			srv, err := agent.NewServer(root, cfg.Agent.Timeout, logger)
			if err != nil {
				return err
			}

			httpSrv := &http.Server{
				Addr:              listen,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("agent listening on %s, jobs under %s", listen, root)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-cmd.Context().Done():
				logger.Info("shutting down agent")
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpSrv.Shutdown(ctx)
			}
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8710", "Listen address")
	cmd.Flags().StringVar(&root, "root", "", "Job directory root (default AMSPROBE_AGENT_ROOT)")
	return cmd
}
