// Package testunit runs the equivalence check of one test: it simulates the
// golden and revised models mode by mode, fits regression models to both and
// compares them, stopping a mode early once a discrepancy is certain.
package testunit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"amsprobe/domain/port"
	"amsprobe/domain/verdict"
	"amsprobe/internal"
	"amsprobe/internal/checker"
	"amsprobe/internal/config"
	"amsprobe/internal/errors"
	"amsprobe/internal/simulation"
	"amsprobe/internal/vector"
)

// Batch sizing of the on-the-fly check.
const (
	minFirstBatch = 8
	minNextBatch  = 4
	// dummyRows is the sample count fed to the regression when the test has
	// no free analog input and every run sees the same stimulus.
	dummyRows = 20
)

// Options configure a TestUnit.
type Options struct {
	UseCache bool
	// NoOTF disables the on-the-fly check; every vector is simulated.
	NoOTF bool
	// Extract simulates the golden model only and skips the checker.
	Extract   bool
	Processes int
	// Seed fixes the vector generator; zero is time based.
	Seed   int64
	Shell  simulation.Shell
	Logger *internal.Logger

	// Golden and Revised replace the simulator drivers when set.
	Golden  simulation.Runner
	Revised simulation.Runner
}

// ModeResult is the outcome of one digital mode.
type ModeResult struct {
	Index int
	Mode  vector.Vector
	Text  string
	// Samples is the number of vectors simulated before the mode finished.
	Samples int
	// StoppedEarly is set when the on-the-fly check cut the mode short.
	StoppedEarly bool
	Pin          map[string]verdict.Status
	Residual     map[string]verdict.Status
	// Equations of the suggested full golden model.
	Equations []string
	Report    *Report
}

// Verdicts flattens the per-response verdicts of a mode.
func (r ModeResult) Verdicts(test string) []verdict.ModeVerdict {
	names := make([]string, 0, len(r.Pin))
	for k := range r.Pin {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]verdict.ModeVerdict, 0, len(names))
	for _, dv := range names {
		out = append(out, verdict.ModeVerdict{Test: test, Mode: r.Text, Response: dv, Pin: r.Pin[dv], Residual: r.Residual[dv]})
	}
	return out
}

// TestUnit checks one test.
type TestUnit struct {
	spec *config.TestSpec
	dir  string
	opt  Options

	ph      *port.Handler
	gen     *vector.Generator
	golden  simulation.Runner
	revised simulation.Runner
	exec    *Executor
	checker *checker.UnitChecker
	models  Models
	logger  *internal.Logger
}

// New prepares ports, vectors and simulators of spec under dir.
func New(spec *config.TestSpec, sim *config.SimConfig, dir string, opt Options) (*TestUnit, error) {
	if opt.Logger == nil {
		opt.Logger = internal.DefaultLogger
	}
	logger := opt.Logger.WithComponent("TestUnit")

	logger.Section("Port information", 2)
	ph, err := spec.PortHandler()
	if err != nil {
		return nil, errors.ConfigInvalidf("test %s: %v", spec.Name, err)
	}
	if ph.AddDummyDigitalMode() {
		logger.Warn("no digital mode port in %s, a pinned dummy mode is used", spec.Name)
	}
	if ph.AddDummyAnalogInput() {
		logger.Warn("no free analog input in %s, a pinned dummy input is used", spec.Name)
	}
	for _, p := range ph.All() {
		logger.Info("%s", p)
	}

	u := &TestUnit{
		spec:    spec,
		dir:     dir,
		opt:     opt,
		ph:      ph,
		exec:    NewExecutor(opt.Processes),
		checker: checker.NewUnitChecker(spec.Option.SensitivityThreshold, opt.Logger),
		models:  newModels(ph, opt.Logger),
		logger:  logger,
	}
	u.gen = vector.NewGenerator(ph, vector.Options{
		MinDepth:  spec.Option.MinAnalogLevel,
		MaxSample: spec.Option.MaxSample,
		Order:     spec.Option.Order,
		Interact:  spec.Option.Interact,
		Seed:      opt.Seed,
	}, opt.Logger)

	if opt.UseCache {
		if err := simulation.CheckCacheRoot(dir); err != nil {
			return nil, err
		}
		if err := u.gen.Load(dir); err != nil {
			return nil, err
		}
	} else {
		for _, d := range []string{u.modelDir(true), u.modelDir(false)} {
			if err := os.MkdirAll(d, 0o755); err != nil {
				return nil, errors.Wrapf(err, "create %s", d)
			}
		}
		u.gen.Generate()
		if err := u.gen.Dump(dir); err != nil {
			return nil, err
		}
	}

	if u.golden, err = u.runner(opt.Golden, sim.Golden); err != nil {
		return nil, err
	}
	if !opt.Extract {
		if u.revised, err = u.runner(opt.Revised, sim.Revised); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (u *TestUnit) runner(override simulation.Runner, model config.SimModel) (simulation.Runner, error) {
	if override != nil {
		return override, nil
	}
	d, err := simulation.NewDriver(u.spec, model, u.ph, simulation.Options{
		UseCache: u.opt.UseCache,
		Shell:    u.opt.Shell,
		Logger:   u.opt.Logger,
	})
	if err != nil {
		return nil, err
	}
	if !u.opt.UseCache {
		if err := d.WriteTestbench(u.dir); err != nil {
			return nil, errors.Wrapf(err, "write %s testbench", model.Name())
		}
	}
	return d, nil
}

// Ports returns the port registry, including any dummy ports.
func (u *TestUnit) Ports() *port.Handler { return u.ph }

// Generator returns the vector generator of the test.
func (u *TestUnit) Generator() *vector.Generator { return u.gen }

func (u *TestUnit) modelDir(golden bool) string {
	if golden {
		return filepath.Join(u.dir, "golden")
	}
	return filepath.Join(u.dir, "revised")
}

func (u *TestUnit) runDir(golden bool, mode, idx int) string {
	return filepath.Join(u.modelDir(golden), fmt.Sprintf("run_mode%d_%d", mode, idx))
}

// otf reports whether batches are checked on the fly.
func (u *TestUnit) otf() bool {
	return !u.opt.NoOTF && !u.opt.UseCache && !u.opt.Extract
}

// batchSizes returns the size of the first batch and of every later one.
func (u *TestUnit) batchSizes(total int) (first, next int) {
	if !u.otf() {
		return total, total
	}
	return max(minFirstBatch, u.gen.UnitTermCount()), max(minNextBatch, u.gen.UnitTermCountOTF())
}

// Run checks every digital mode in order.
func (u *TestUnit) Run(ctx context.Context) ([]ModeResult, error) {
	modes := u.gen.DigitalModes()
	texts := make([]string, len(modes))
	for i, m := range modes {
		texts[i] = vector.FormatMode(m, u.ph)
	}
	u.logger.Info("%d mode(s) in test %s: %s", len(modes), u.spec.Name, strings.Join(texts, "; "))

	out := make([]ModeResult, 0, len(modes))
	for i, mode := range modes {
		u.logger.Section(fmt.Sprintf("Testing the mode (%s)", texts[i]), 2)
		res, err := u.runMode(ctx, i, mode)
		if err != nil {
			return out, err
		}
		res.Text = texts[i]
		if !u.opt.Extract {
			u.logger.Section(fmt.Sprintf("Summary of the mode (%s)", texts[i]), 3)
			u.logger.Info("\n%s", checker.RenderSummary(checker.SummaryTable(res.Verdicts(u.spec.Name))))
		}
		u.logger.Info("-- end of mode (%s) --", texts[i])
		out = append(out, res)
	}
	return out, nil
}

func (u *TestUnit) runMode(ctx context.Context, nth int, mode vector.Vector) (ModeResult, error) {
	u.logger.Section("Running simulations", 3)
	analog := u.gen.AnalogVectors()
	total := len(analog)
	if u.opt.UseCache {
		u.logger.Info("using cached simulation results")
	}
	vectors := make([]vector.Vector, total)
	for i, a := range analog {
		vectors[i] = a.Merge(mode)
	}

	res := ModeResult{Index: nth, Mode: mode}
	first, next := u.batchSizes(total)
	var golden, revised []simulation.Result
	for idx := 0; idx < total; {
		n := first
		if idx >= first {
			n = next
		}
		n = min(n, total-idx)

		g, r, err := u.exercise(ctx, nth, idx, vectors[idx:idx+n], total)
		if err != nil {
			return res, err
		}
		golden = append(golden, g...)
		revised = append(revised, r...)
		idx += n

		if u.otf() && idx < total {
			if err := u.models.regress(u.sample(vectors[:idx], golden, revised, mode), u.regressionOptions()); err != nil {
				return res, err
			}
			if dv, stop := u.discrepant(); stop {
				u.logger.Info("stopping after %d of %d vectors: %s fail both the pin and the accuracy check", idx, total, dv)
				res.StoppedEarly = true
				break
			}
			u.logger.Debug("%d of %d vectors simulated, no certain discrepancy yet", idx, total)
		}
	}
	res.Samples = len(golden)

	s := u.sample(vectors[:res.Samples], golden, revised, mode)
	if err := u.dumpMeasurements(nth, vectors[:res.Samples], golden, revised); err != nil {
		return res, err
	}
	if err := u.models.regress(s, u.regressionOptions()); err != nil {
		return res, err
	}
	u.logEquations()
	if err := u.dumpRegression(nth); err != nil {
		return res, err
	}
	res.Equations = u.models.FullSuggested.Golden.Equations()

	if !u.opt.Extract {
		res.Report = u.report()
		res.Pin, res.Residual = res.Report.Verdicts()
	}
	return res, nil
}

// exercise simulates one batch of both models. In extraction mode the
// revised results mirror the golden ones.
func (u *TestUnit) exercise(ctx context.Context, nth, offset int, batch []vector.Vector, total int) ([]simulation.Result, []simulation.Result, error) {
	jobs := make([]Job, 0, 2*len(batch))
	for i, v := range batch {
		u.logger.Info("vector %d/%d: %s", offset+i+1, total, formatVector(v, u.ph))
		jobs = append(jobs, Job{Index: offset + i, Runner: u.golden, Vector: v, Dir: u.runDir(true, nth, offset+i)})
	}
	if !u.opt.Extract {
		for i, v := range batch {
			jobs = append(jobs, Job{Index: offset + i, Runner: u.revised, Vector: v, Dir: u.runDir(false, nth, offset+i)})
		}
	}
	results, err := u.exec.Run(ctx, jobs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "simulation batch interrupted")
	}
	golden := results[:len(batch)]
	revised := golden
	if !u.opt.Extract {
		revised = results[len(batch):]
	}
	for i := range batch {
		u.logger.Info("[Golden] %d/%d: %s", offset+i+1, total, formatMeasurement(golden[i]))
		if !u.opt.Extract {
			u.logger.Info("[Revised] %d/%d: %s", offset+i+1, total, formatMeasurement(revised[i]))
		}
	}
	return golden, revised, nil
}

// discrepant reports whether every response of the suggested models fails
// both the pin check and the accuracy check, listing them.
func (u *TestUnit) discrepant() (string, bool) {
	simple := u.checker.Run(u.models.SimpleSuggested.Golden, u.models.SimpleSuggested.Revised, u.ph, true)
	accurate := u.checker.Run(u.models.FullSuggested.Golden, u.models.FullSuggested.Revised, u.ph, false)
	if len(simple) == 0 {
		return "", false
	}
	names := make([]string, 0, len(simple))
	for k := range simple {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, dv := range names {
		if !simple[dv].PinStatus.IsFailure() || !accurate[dv].ResidualStatus.IsFailure() {
			return "", false
		}
	}
	return strings.Join(names, ", "), true
}

func (u *TestUnit) logEquations() {
	for _, title := range []string{"simple", "full"} {
		pair := u.models.SimpleSuggested
		if title == "full" {
			pair = u.models.FullSuggested
		}
		u.logger.Section(fmt.Sprintf("[Golden] suggested %s model", title), 4)
		for _, eq := range pair.Golden.Equations() {
			u.logger.Info("%s", eq)
		}
		u.logger.Section(fmt.Sprintf("[Revised] suggested %s model", title), 4)
		for _, eq := range pair.Revised.Equations() {
			u.logger.Info("%s", eq)
		}
	}
	if u.logger.GetLevel() >= internal.LogLevelDebug {
		for _, dv := range u.models.FullSuggested.Golden.Responses() {
			u.logger.Debug("[Golden] %s", u.models.FullSuggested.Golden.Summary(dv))
			u.logger.Debug("[Revised] %s", u.models.FullSuggested.Revised.Summary(dv))
		}
	}
}

func formatVector(v vector.Vector, ph *port.Handler) string {
	parts := make([]string, 0, len(v))
	for _, k := range v.Keys() {
		if p, ok := ph.Get(k); ok && p.Kind().IsDigital() {
			parts = append(parts, fmt.Sprintf("'%s': %s", k, vector.ToBin(int(v[k]), p.BitWidth())))
			continue
		}
		parts = append(parts, fmt.Sprintf("'%s': %g", k, v[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatMeasurement(r simulation.Result) string {
	if len(r.Measurement) == 0 {
		return "no measurement"
	}
	s := formatVector(r.Measurement, port.NewHandler())
	if !r.OK {
		return "(invalid) " + s
	}
	return s
}
