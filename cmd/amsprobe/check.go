package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"amsprobe/internal/agent"
	"amsprobe/internal/runchecker"
	"amsprobe/internal/simulation"
)

func newCheckCmd() *cobra.Command {
	var opt runchecker.Options
	var agentAddr string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the revised model against the golden model",
		Long: `Run every test of the test configuration on both models, fit linear
models to the responses and compare them.

Results go to <workdir>/.amsprobe: per-test vectors, measurements and
regression dumps, and extracted_linear_model.yaml. The report is written to
<workdir>/<report> unless --extract is given.

Example: amsprobe check -t test.yaml -s sim.yaml -w run -p 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("workdir") {
				opt.WorkDir = cfg.Run.WorkDir
			}
			if !cmd.Flags().Changed("process") {
				opt.Processes = cfg.Run.Processes
			}
			if !cmd.Flags().Changed("agent") {
				agentAddr = cfg.Agent.Addr
			}
			if opt.LedgerDSN == "" {
				opt.LedgerDSN = cfg.Ledger.DSN
			}
			opt.Logger = logger

			if agentAddr != "" {
				clients := make([]*agent.Client, max(opt.Processes, 1))
				for i := range clients {
					clients[i] = agent.NewClient(agentAddr, cfg.Agent.Timeout)
				}
				if err := clients[0].Health(cmd.Context()); err != nil {
					return err
				}
				opt.Shell = simulation.NewRemoteShell(clients...)
				logger.Info("simulating on agent %s", agentAddr)
			}

			rc, err := runchecker.New(opt)
			if err != nil {
				return err
			}
			res, err := rc.Run(cmd.Context())
			if err != nil {
				return err
			}
			if res.ReportFile != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "report: %s\n", res.ReportFile)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "extracted model: %s\n", res.ParamsFile)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opt.TestFile, "test", "t", "test.yaml", "Test configuration file")
	f.StringVarP(&opt.SimFile, "sim", "s", "sim.yaml", "Simulator configuration file")
	f.StringVarP(&opt.WorkDir, "workdir", "w", ".", "Working directory")
	f.StringVarP(&opt.ReportFile, "rpt", "r", "report.html", "Report file name, relative to the working directory")
	f.IntVarP(&opt.Processes, "process", "p", 1, "Number of simulations run in parallel")
	f.BoolVarP(&opt.UseCache, "use-cache", "c", false, "Reuse vectors and simulation results of a previous run")
	f.BoolVarP(&opt.NoOTF, "no-otf-check", "n", false, "Simulate every vector without the on-the-fly check")
	f.BoolVarP(&opt.Extract, "extract", "e", false, "Characterize the golden model only")
	f.StringSliceVar(&opt.Tests, "only", nil, "Run only the named tests")
	f.Int64Var(&opt.Seed, "seed", 0, "Vector generator seed (0 is time based)")
	f.StringVar(&agentAddr, "agent", "", "Simulation agent address (host:port)")
	f.StringVar(&opt.LedgerDSN, "ledger", "", "Run ledger DSN (sqlite3://path or postgres://...)")

	return cmd
}
