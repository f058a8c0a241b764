package testunit

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amsprobe/domain/verdict"
	"amsprobe/internal"
	"amsprobe/internal/config"
	"amsprobe/internal/export"
	"amsprobe/internal/simulation"
	"amsprobe/internal/vector"
)

const unitYAML = `
DEFAULT:
  simulation: {timeunit: 1ns, trantime: 1us}
  port:
    vout: {port_type: analogoutput, abstol: 0.01, gaintol: 10}

amp:
  port:
    vin: {port_type: analoginput, lower_bound: 0, upper_bound: 1}

wide:
  option:
    max_sample: 40
  port:
    vin: {port_type: analoginput, lower_bound: 0, upper_bound: 1}

filtered:
  option:
    regression_method: filtered
  port:
    vin: {port_type: analoginput, lower_bound: 0, upper_bound: 1}

switch:
  port:
    vin: {port_type: analoginput, pinned: true, default_value: 0.5, lower_bound: 0, upper_bound: 1}
    sel: {port_type: digitalmode, bit_width: 1}
`

type fakeRunner struct {
	calls atomic.Int64
	f     func(v vector.Vector) float64
}

func (r *fakeRunner) Run(_ context.Context, v vector.Vector, _ string) simulation.Result {
	r.calls.Add(1)
	return simulation.Result{OK: true, Measurement: map[string]float64{"vout": r.f(v)}}
}

func linear(gain, offset float64) *fakeRunner {
	return &fakeRunner{f: func(v vector.Vector) float64 { return gain*v["vin"] + offset }}
}

func loadSpec(t *testing.T, name string) *config.TestSpec {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(unitYAML), 0o644))
	cfg, err := config.LoadTestConfig(path)
	require.NoError(t, err)
	spec, ok := cfg.Get(name)
	require.True(t, ok)
	return spec
}

func newUnit(t *testing.T, name string, golden, revised simulation.Runner, opt Options) (*TestUnit, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	opt.Golden, opt.Revised = golden, revised
	opt.Seed = 1
	opt.Processes = 4
	opt.Logger = internal.NewLogger(internal.LogLevelError)
	u, err := New(loadSpec(t, name), &config.SimConfig{}, dir, opt)
	require.NoError(t, err)
	return u, dir
}

func TestEquivalentModelsPass(t *testing.T) {
	golden, revised := linear(2, 0.5), linear(2, 0.5)
	u, dir := newUnit(t, "amp", golden, revised, Options{})

	res, err := u.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 1)

	m := res[0]
	assert.Equal(t, 8, m.Samples)
	assert.False(t, m.StoppedEarly)
	assert.Equal(t, verdict.StatusSuccess, m.Pin["vout"])
	assert.Equal(t, verdict.StatusSuccess, m.Residual["vout"])
	assert.Equal(t, int64(8), golden.calls.Load())
	assert.Equal(t, int64(8), revised.calls.Load())
	require.Len(t, m.Equations, 1)
	assert.Contains(t, m.Equations[0], "*vin")

	for _, f := range []string{
		vector.AnalogFile,
		vector.DigitalFile,
		vector.MeasFile("golden", 0),
		vector.MeasFile("revised", 0),
		RegressionFile("golden", 0),
		RegressionFile("revised", 0),
	} {
		assert.FileExists(t, filepath.Join(dir, f))
	}
	sheet, err := export.ReadSheet(filepath.Join(dir, WorkbookFile(0)), "golden")
	require.NoError(t, err)
	assert.Equal(t, []string{"vin", "vout"}, sheet.Header)
	assert.Len(t, sheet.Rows, 8)

	vs := m.Verdicts("amp")
	require.Len(t, vs, 1)
	assert.False(t, vs[0].Failed())
}

func TestFilteredMethodKeepsSuggestedModel(t *testing.T) {
	basic, _ := newUnit(t, "amp", linear(2, 0.5), linear(2, 0.5), Options{})
	filtered, _ := newUnit(t, "filtered", linear(2, 0.5), linear(2, 0.5), Options{})

	want, err := basic.Run(context.Background())
	require.NoError(t, err)
	got, err := filtered.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, want[0].Equations, got[0].Equations)
	assert.Equal(t, want[0].Samples, got[0].Samples)
	assert.Equal(t, verdict.StatusSuccess, got[0].Pin["vout"])
}

func TestGainMismatchStopsEarly(t *testing.T) {
	golden, revised := linear(2, 0.5), linear(3, 0.5)
	u, _ := newUnit(t, "wide", golden, revised, Options{})
	require.Equal(t, 40, u.Generator().MaxSample())

	res, err := u.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 1)

	m := res[0]
	assert.True(t, m.StoppedEarly)
	assert.Equal(t, 8, m.Samples)
	assert.Equal(t, int64(8), golden.calls.Load())
	assert.Equal(t, verdict.StatusFailure, m.Pin["vout"])
	assert.Equal(t, verdict.StatusFailure, m.Residual["vout"])
	assert.Equal(t, verdict.StatusFailure, m.Report.SimpleSuggested["vout"].PinStatus)
}

func TestNoOTFSimulatesEverything(t *testing.T) {
	golden, revised := linear(2, 0.5), linear(3, 0.5)
	u, _ := newUnit(t, "wide", golden, revised, Options{NoOTF: true})

	res, err := u.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res[0].StoppedEarly)
	assert.Equal(t, 40, res[0].Samples)
	assert.Equal(t, int64(40), revised.calls.Load())
	assert.Equal(t, verdict.StatusFailure, res[0].Pin["vout"])
}

func TestExtractionSkipsRevised(t *testing.T) {
	golden := linear(2, 0.5)
	u, _ := newUnit(t, "amp", golden, nil, Options{Extract: true})

	res, err := u.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8), golden.calls.Load())
	assert.Nil(t, res[0].Report)
	assert.Empty(t, res[0].Verdicts("amp"))
	assert.NotEmpty(t, res[0].Equations)
}

func TestDummyAnalogInputPerMode(t *testing.T) {
	r := &fakeRunner{f: func(v vector.Vector) float64 { return 0.3*v["sel"] + 0.1 }}
	u, _ := newUnit(t, "switch", r, r, Options{})
	assert.True(t, u.Ports().HasDummyAnalogInput())

	res, err := u.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, m := range res {
		assert.Equal(t, 1, m.Samples)
		assert.Equal(t, verdict.StatusSuccess, m.Pin["vout"])
		assert.Equal(t, verdict.StatusSuccess, m.Residual["vout"])
	}
	assert.Equal(t, "'sel'=b1", res[1].Text)
}

type orderRunner struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (r *orderRunner) Run(_ context.Context, v vector.Vector, _ string) simulation.Result {
	r.mu.Lock()
	r.active++
	r.maxSeen = max(r.maxSeen, r.active)
	r.mu.Unlock()

	time.Sleep(time.Duration(20-int(v["i"])) * time.Millisecond)

	r.mu.Lock()
	r.active--
	r.mu.Unlock()
	return simulation.Result{OK: true, Measurement: map[string]float64{"i": v["i"]}}
}

func TestExecutorKeepsOrderAndBound(t *testing.T) {
	r := &orderRunner{}
	jobs := make([]Job, 20)
	for i := range jobs {
		jobs[i] = Job{Index: i, Runner: r, Vector: vector.Vector{"i": float64(i)}}
	}

	results, err := NewExecutor(3).Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 20)
	for i, res := range results {
		assert.Equal(t, float64(i), res.Measurement["i"])
	}
	assert.LessOrEqual(t, r.maxSeen, 3)
}

func TestExecutorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExecutor(2).Run(ctx, []Job{{Runner: &orderRunner{}, Vector: vector.Vector{"i": 1}}})
	assert.ErrorIs(t, err, context.Canceled)
}
