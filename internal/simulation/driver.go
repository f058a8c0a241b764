package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"amsprobe/domain/core"
	"amsprobe/domain/port"
	"amsprobe/internal"
	"amsprobe/internal/config"
	"amsprobe/internal/errors"
	"amsprobe/internal/vector"
)

// Files written into every run directory.
const (
	VectorFile     = "vector.json"
	LogFile        = "amsprobe_sim.log"
	PostProcessLog = "amsprobe_pp.log"
)

// Result is the outcome of one run. OK is false when a measurement is
// missing, unparsable or out of the output port bounds; Measurement then
// holds whatever could be read.
type Result struct {
	OK          bool
	Measurement map[string]float64
}

// Runner executes one simulation for a vector in its own directory.
type Runner interface {
	Run(ctx context.Context, v vector.Vector, dir string) Result
}

// Options configure a Driver.
type Options struct {
	UseCache bool
	// Shell executes the run script and the post-processor. Nil means LocalShell.
	Shell  Shell
	Logger *internal.Logger
}

// Driver simulates one model of one test.
type Driver struct {
	spec     *config.TestSpec
	model    config.SimModel
	ph       *port.Handler
	backend  Backend
	shell    Shell
	raw      string
	tbName   string
	outputs  []string
	useCache bool
	logger   *internal.Logger
}

// NewDriver prepares the unbound testbench and selects the backend.
func NewDriver(spec *config.TestSpec, model config.SimModel, ph *port.Handler, opt Options) (*Driver, error) {
	backend, err := NewBackend(model)
	if err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	raw, err := GenerateTestbench(spec, model)
	if err != nil {
		return nil, errors.Wrapf(err, "testbench of %s", spec.Name)
	}
	if opt.Shell == nil {
		opt.Shell = LocalShell{}
	}
	if opt.Logger == nil {
		opt.Logger = internal.DefaultLogger
	}
	return &Driver{
		spec:     spec,
		model:    model,
		ph:       ph,
		backend:  backend,
		shell:    opt.Shell,
		raw:      raw,
		tbName:   TestbenchFile(spec.Name, model.Name()),
		outputs:  ph.OutputNames(),
		useCache: opt.UseCache,
		logger:   opt.Logger.WithComponent("Simulation"),
	}, nil
}

// Testbench returns the unbound testbench text.
func (d *Driver) Testbench() string { return d.raw }

// WriteTestbench saves the unbound testbench under dir for inspection.
func (d *Driver) WriteTestbench(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, d.tbName), []byte(d.raw), 0o644)
}

// Run simulates v in dir, or reads the files already there in cached mode.
// It never returns an error: failures show up as Result.OK == false.
func (d *Driver) Run(ctx context.Context, v vector.Vector, dir string) Result {
	cached := d.useCache
	if cached {
		if _, err := os.Stat(dir); err != nil {
			d.logger.Warn("cached run %s does not exist, simulating instead", dir)
			cached = false
		}
	}
	if !cached {
		if err := d.simulate(ctx, v, dir); err != nil {
			d.logger.Warn("%v", errors.SimulationFailure(dir, err))
		}
	}

	meas, ok, err := ReadMeasurement(dir, d.outputs)
	if err != nil {
		d.logger.Debug("measurement in %s unavailable: %v", dir, err)
	}
	if bad := outOfRange(meas, d.ph); len(bad) > 0 {
		d.logger.Warn("%s: %v out of the declared output range", dir, bad)
		ok = false
	}
	return Result{OK: ok, Measurement: meas}
}

func (d *Driver) simulate(ctx context.Context, v vector.Vector, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	vb, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, VectorFile), vb, 0o644); err != nil {
		return err
	}

	ic := d.spec.Testbench.InitialCondition.For(d.model.IsGolden)
	tb, err := Bind(d.tbName, d.raw, BindData(v, d.spec.Simulation.TranTime, d.spec.Testbench.Temperature, ic))
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, d.tbName), []byte(tb), 0o644); err != nil {
		return err
	}
	script, err := d.backend.Prepare(dir, Job{
		Testbench:   d.tbName,
		Vector:      v,
		Timescale:   d.spec.Simulation.Timescale(),
		SimTime:     d.spec.Simulation.TranTime,
		Temperature: d.spec.Testbench.Temperature,
		IC:          ic,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", d.backend.Name(), err)
	}
	if err := os.WriteFile(filepath.Join(dir, RunScript), []byte(script), 0o755); err != nil {
		return err
	}

	log, err := d.shell.Exec(ctx, dir, "sh "+RunScript)
	_ = os.WriteFile(filepath.Join(dir, LogFile), []byte(log), 0o644)
	if err != nil {
		// simulators exit non-zero on warnings too; the measurement decides
		d.logger.Debug("%s in %s: %v", d.backend.Name(), dir, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if d.model.SweepFile {
		d.backend.Sweep(dir)
	}
	return d.postProcess(ctx, dir)
}

func (d *Driver) postProcess(ctx context.Context, dir string) error {
	pp := d.spec.Testbench.PostProcessor
	if !pp.Enabled() {
		return nil
	}
	for _, src := range pp.Scripts {
		if err := copyFile(config.ExpandPath(src), filepath.Join(dir, filepath.Base(src))); err != nil {
			return fmt.Errorf("post-processor script: %w", err)
		}
	}
	out, err := d.shell.Exec(ctx, dir, pp.Command)
	_ = os.WriteFile(filepath.Join(dir, PostProcessLog), []byte(out), 0o644)
	if err != nil {
		return fmt.Errorf("post-processor %q: %w", pp.Command, err)
	}
	return nil
}

// CheckCacheRoot fails when cached results were requested but root holds none.
func CheckCacheRoot(root string) error {
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		return errors.Wrap(fmt.Errorf("%w: %s", core.ErrCacheMissing, root), "cannot use cached results")
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
