// Package runchecker runs every test of a test configuration and collects
// the verdicts, the extracted model parameters and the report.
package runchecker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"amsprobe/domain/core"
	"amsprobe/domain/port"
	"amsprobe/domain/verdict"
	"amsprobe/internal"
	"amsprobe/internal/checker"
	"amsprobe/internal/config"
	"amsprobe/internal/errors"
	"amsprobe/internal/ledger"
	"amsprobe/internal/modelparam"
	"amsprobe/internal/simulation"
	"amsprobe/internal/summary"
	"amsprobe/internal/testunit"
	"amsprobe/internal/vector"
)

// RootDirName holds the run data of every test under the work directory.
const RootDirName = ".amsprobe"

// Options configure a checker run.
type Options struct {
	TestFile string
	SimFile  string
	WorkDir  string
	// ReportFile is relative to WorkDir unless absolute.
	ReportFile string
	// Tests restricts the run to the named tests, in configuration order.
	Tests     []string
	Processes int
	UseCache  bool
	NoOTF     bool
	Extract   bool
	Seed      int64
	Shell     simulation.Shell
	LedgerDSN string
	Logger    *internal.Logger

	// Runners replaces the simulator drivers of a test when set.
	Runners func(spec *config.TestSpec) (golden, revised simulation.Runner)
}

// Result summarizes a checker run.
type Result struct {
	Verdicts   []verdict.ModeVerdict
	ParamsFile string
	ReportFile string
	// RunID is empty when no ledger is configured or it is unreachable.
	RunID string
}

// Failed reports whether any response failed a check.
func (r *Result) Failed() bool {
	return slices.ContainsFunc(r.Verdicts, verdict.ModeVerdict.Failed)
}

// RootDir is the directory holding the run data of every test.
func RootDir(workDir string) string {
	return filepath.Join(workDir, RootDirName)
}

// RunChecker runs the configured tests in order.
type RunChecker struct {
	opt    Options
	tests  *config.TestConfig
	sim    *config.SimConfig
	root   string
	store  *ledger.Store
	logger *internal.Logger
}

// New loads and validates both configuration files. Every configuration
// error surfaces here, before any simulation starts.
func New(opt Options) (*RunChecker, error) {
	if opt.Logger == nil {
		opt.Logger = internal.DefaultLogger
	}
	if opt.WorkDir == "" {
		opt.WorkDir = "."
	}
	if opt.ReportFile == "" {
		opt.ReportFile = summary.DefaultFile
	}
	if !filepath.IsAbs(opt.ReportFile) {
		opt.ReportFile = filepath.Join(opt.WorkDir, opt.ReportFile)
	}

	tests, err := config.LoadTestConfig(opt.TestFile)
	if err != nil {
		return nil, err
	}
	if len(opt.Tests) > 0 {
		selected := &config.TestConfig{}
		for _, name := range opt.Tests {
			if _, ok := tests.Get(name); !ok {
				return nil, errors.ConfigInvalidf("test %q is not defined in %s", name, opt.TestFile)
			}
		}
		for _, t := range tests.Tests {
			if slices.Contains(opt.Tests, t.Name) {
				selected.Tests = append(selected.Tests, t)
			}
		}
		tests = selected
	}
	sim, err := config.LoadSimConfig(opt.SimFile, opt.Extract)
	if err != nil {
		return nil, err
	}

	root := RootDir(opt.WorkDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", root)
	}
	return &RunChecker{
		opt:    opt,
		tests:  tests,
		sim:    sim,
		root:   root,
		logger: opt.Logger.WithComponent("RunChecker"),
	}, nil
}

// Run checks every test and writes the extracted model and the report.
func (c *RunChecker) Run(ctx context.Context) (*Result, error) {
	c.logger.Section("List of tests", 1)
	c.logger.Info("%v", c.tests.Names())

	res := &Result{}
	runID := c.openLedger(ctx)
	if c.store != nil {
		defer c.store.Close()
	}

	params := modelparam.New()
	cwd, _ := os.Getwd()
	report := &summary.Report{Header: summary.Header{
		CurrentDir: cwd,
		WorkDir:    c.opt.WorkDir,
		RunDir:     c.root,
		TestFile:   c.opt.TestFile,
		SimFile:    c.opt.SimFile,
		ReportFile: c.opt.ReportFile,
	}}

	for _, spec := range c.tests.Tests {
		modes, ports, err := c.runTest(ctx, spec)
		if err != nil {
			return res, err
		}

		eqs := make([]modelparam.ModeEquations, len(modes))
		section := summary.Test{Name: spec.Name, DUT: spec.DUT, Description: spec.Description, Ports: ports}
		for i, m := range modes {
			eqs[i] = modelparam.ModeEquations{Mode: modeCodes(m.Mode), Equations: m.Equations}
			res.Verdicts = append(res.Verdicts, m.Verdicts(spec.Name)...)
			sm := summary.Mode{Text: m.Text, Samples: m.Samples, StoppedEarly: m.StoppedEarly}
			if m.Report != nil {
				sm.Pin, sm.Accuracy = m.Report.SimpleSuggested, m.Report.FullSuggested
			}
			section.Modes = append(section.Modes, sm)
		}
		if err := params.Formulate(spec.Name, eqs); err != nil {
			return res, err
		}
		report.Tests = append(report.Tests, section)
	}

	path, err := params.Save(c.root)
	if err != nil {
		return res, err
	}
	res.ParamsFile = path
	c.logger.Info("extracted model parameters saved to %s", path)

	if !c.opt.Extract {
		c.logger.Section("Summary of all tests", 1)
		c.logger.Info("\n%s", checker.RenderSummary(checker.SummaryTable(res.Verdicts)))

		report.Verdicts = res.Verdicts
		if err := report.Write(c.opt.ReportFile); err != nil {
			return res, err
		}
		res.ReportFile = c.opt.ReportFile
		c.logger.Info("report written to %s", c.opt.ReportFile)
	}

	if runID != "" {
		if err := c.store.RecordVerdicts(ctx, runID, res.Verdicts); err != nil {
			c.logger.Warn("ledger: %v", err)
		}
		if err := c.store.FinishRun(ctx, runID); err != nil {
			c.logger.Warn("ledger: %v", err)
		}
		res.RunID = runID
	}
	return res, nil
}

func (c *RunChecker) runTest(ctx context.Context, spec *config.TestSpec) ([]testunit.ModeResult, []*port.Port, error) {
	c.logger.Section(fmt.Sprintf("Running test %q", spec.Name), 1)
	dir := filepath.Join(c.root, spec.Name)
	if !c.opt.UseCache {
		if _, err := os.Stat(dir); err == nil {
			c.logger.Warn("%s exists and will be overwritten", dir)
		}
	}

	opt := testunit.Options{
		UseCache:  c.opt.UseCache,
		NoOTF:     c.opt.NoOTF,
		Extract:   c.opt.Extract,
		Processes: c.opt.Processes,
		Seed:      c.opt.Seed,
		Shell:     c.opt.Shell,
		Logger:    c.opt.Logger,
	}
	if c.opt.Runners != nil {
		opt.Golden, opt.Revised = c.opt.Runners(spec)
	}
	unit, err := testunit.New(spec, c.sim, dir, opt)
	if err != nil {
		return nil, nil, err
	}
	modes, err := unit.Run(ctx)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "test %s", spec.Name)
	}

	if c.sim.Golden.SweepFile && c.sim.Revised.SweepFile {
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Warn("could not remove %s: %v", dir, err)
		} else {
			c.logger.Info("simulation files of %s removed", spec.Name)
		}
	}
	c.logger.Info("== end of test %q ==", spec.Name)
	return modes, unit.Ports().All(), nil
}

// openLedger records the run when a ledger is configured. Ledger failures
// never stop a run.
func (c *RunChecker) openLedger(ctx context.Context) string {
	if c.opt.LedgerDSN == "" {
		return ""
	}
	store, err := ledger.Open(ctx, c.opt.LedgerDSN, c.opt.Logger)
	if err != nil {
		c.logger.Warn("ledger disabled: %v", err)
		return ""
	}
	run := &ledger.Run{
		TestFile:   c.opt.TestFile,
		SimFile:    c.opt.SimFile,
		WorkDir:    c.opt.WorkDir,
		Extract:    c.opt.Extract,
		ConfigHash: c.configHash().String(),
	}
	if err := store.RecordRun(ctx, run); err != nil {
		c.logger.Warn("ledger disabled: %v", err)
		store.Close()
		return ""
	}
	c.store = store
	c.logger.Info("ledger run %s, configuration %s", run.ID, core.ConfigHash(run.ConfigHash).Short())
	return run.ID
}

// configHash fingerprints the test and simulator configuration files.
// Unreadable files hash as empty documents.
func (c *RunChecker) configHash() core.ConfigHash {
	testDoc, _ := os.ReadFile(c.opt.TestFile)
	simDoc, _ := os.ReadFile(c.opt.SimFile)
	return core.NewConfigHash(testDoc, simDoc)
}

func modeCodes(m vector.Vector) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = int(v)
	}
	return out
}
