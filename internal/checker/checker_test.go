package checker

import (
	"testing"

	"amsprobe/domain/port"
	"amsprobe/domain/verdict"
	"amsprobe/internal/regression"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ports(t *testing.T) *port.Handler {
	return portsWithGainTol(t, 10)
}

func portsWithGainTol(t *testing.T, gaintol float64) *port.Handler {
	h := port.NewHandler()
	for _, spec := range []struct {
		name string
		kind port.Kind
		c    port.Constraint
	}{
		{"x1", port.AnalogInput, port.Constraint{LowerBound: port.Float(0), UpperBound: port.Float(1)}},
		{"x2", port.AnalogInput, port.Constraint{LowerBound: port.Float(0), UpperBound: port.Float(1)}},
		{"y", port.AnalogOutput, port.Constraint{AbsTol: port.Float(0.01), GainTol: port.Float(gaintol)}},
	} {
		p, err := port.New(spec.name, spec.kind, "", spec.c)
		require.NoError(t, err)
		h.Add(p)
	}
	return h
}

var (
	x1 = []float64{0, 1, 0, 1, 0.5, 0.25, 0.75, 0.1}
	x2 = []float64{0, 0, 1, 1, 0.5, 0.75, 0.25, 0.9}
)

func fit(t *testing.T, h *port.Handler, gain1, gain2 float64, predictors ...string) *regression.Model {
	y := make([]float64, len(x1))
	for i := range y {
		y[i] = 0.2 + gain1*x1[i] + gain2*x2[i]
	}
	data := map[string][]float64{}
	for _, p := range predictors {
		switch p {
		case "x1":
			data[p] = x1
		case "x2":
			data[p] = x2
		}
	}
	m := regression.NewModel(h, nil)
	require.NoError(t, m.LoadData(map[string][]float64{"y": y}, data, regression.DefaultOptions()))
	require.NoError(t, m.Run())
	return m
}

func TestIdenticalModelsPass(t *testing.T) {
	h := ports(t)
	golden := fit(t, h, 1.5, 0, "x1")
	revised := fit(t, h, 1.5, 0, "x1")

	res := NewUnitChecker(5, nil).Run(golden, revised, h, true)
	require.Contains(t, res, "y")
	r := res["y"]
	assert.Equal(t, []string{regression.Intercept, "x1"}, r.Predictors)
	assert.Equal(t, verdict.StatusSuccess, r.PinStatus)
	assert.Equal(t, verdict.StatusSuccess, r.ResidualStatus)
	require.Len(t, r.Gain, 2)
	assert.Equal(t, verdict.StatusNormal, r.Gain[0].Status)
	assert.Equal(t, verdict.StatusNormal, r.Gain[1].Status)
	assert.Equal(t, 0.0, r.Gain[1].Error.Value)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.Equal(t, verdict.StatusNormal, r.ResidualMax[i][j].Status)
			assert.Equal(t, verdict.StatusNormal, r.ResidualStd[i][j].Status)
		}
	}
}

func TestGainOffsetFailsPinCheck(t *testing.T) {
	h := ports(t)
	golden := fit(t, h, 1.5, 0, "x1")
	revised := fit(t, h, 2.25, 0, "x1")

	r := NewUnitChecker(5, nil).Run(golden, revised, h, true)["y"]
	assert.Equal(t, verdict.StatusFailure, r.PinStatus)
	assert.Equal(t, verdict.StatusFailure, r.Gain[1].Status)
	require.True(t, r.Gain[1].Error.Valid)
	assert.InDelta(t, 50.0, r.Gain[1].Error.Value, 0.11)
	assert.Equal(t, verdict.StatusFailure, r.ResidualStatus)
	// the self-fits are still exact
	assert.Equal(t, verdict.StatusNormal, r.ResidualMax[SimGolden][ExtGolden].Status)
	assert.Equal(t, verdict.StatusFailure, r.ResidualMax[SimRevised][ExtGolden].Status)
}

func TestPinCheckDisabledOnlyReports(t *testing.T) {
	h := ports(t)
	golden := fit(t, h, 1.5, 0, "x1")
	revised := fit(t, h, 2.25, 0, "x1")

	r := NewUnitChecker(5, nil).Run(golden, revised, h, false)["y"]
	assert.Equal(t, verdict.StatusSuccess, r.PinStatus)
	for _, g := range r.Gain {
		assert.Equal(t, verdict.StatusNormal, g.Status)
	}
}

func TestVanishingTermFails(t *testing.T) {
	h := ports(t)
	golden := fit(t, h, 1.0, 1.0, "x1", "x2")
	revised := fit(t, h, 1.0, 0.0, "x1", "x2")
	r := NewUnitChecker(5, nil).Run(golden, revised, h, true)["y"]
	// x2 vanishes from the revised response
	assert.Equal(t, verdict.StatusFailure, r.Gain[2].Status)
	assert.Equal(t, verdict.StatusFailure, r.PinStatus)
}

func TestOppositeSignFailsWithinGainTol(t *testing.T) {
	h := portsWithGainTol(t, 300)
	golden := fit(t, h, 1.0, 0, "x1")
	revised := fit(t, h, -1.0, 0, "x1")
	r := NewUnitChecker(5, nil).Run(golden, revised, h, true)["y"]
	require.True(t, r.Gain[1].Error.Valid)
	assert.InDelta(t, 200.0, r.Gain[1].Error.Value, 0.11)
	assert.Equal(t, verdict.StatusFailure, r.Gain[1].Status)
	assert.Equal(t, verdict.StatusFailure, r.PinStatus)
}

func TestInsensitiveTermIsWarning(t *testing.T) {
	h := ports(t)
	golden := fit(t, h, 1.0, 0.001, "x1", "x2")
	revised := fit(t, h, 1.0, 0.002, "x1", "x2")
	r := NewUnitChecker(5, nil).Run(golden, revised, h, true)["y"]
	assert.Equal(t, verdict.StatusNormal, r.Gain[1].Status)
	assert.Equal(t, verdict.StatusWarning, r.Gain[2].Status)
	assert.Equal(t, verdict.StatusWarning, r.PinStatus)
}

func TestSingularRevisedForcesFailure(t *testing.T) {
	h := ports(t)
	golden := fit(t, h, 1.5, 0, "x1")
	revised := regression.NewModel(h, nil)
	require.NoError(t, revised.LoadData(
		map[string][]float64{"y": {1, 2}},
		map[string][]float64{"x1": {0, 1}, "x2": {1, 0}},
		regression.DefaultOptions()))
	require.NoError(t, revised.Run())

	r := NewUnitChecker(5, nil).Run(golden, revised, h, true)["y"]
	assert.Equal(t, verdict.StatusFailure, r.ResidualStatus)
	assert.Equal(t, "N/A", r.ResidualMax[SimGolden][ExtGolden].Text)
	assert.Equal(t, verdict.StatusWarning, r.Gain[1].Status)
	assert.False(t, r.Gain[1].Revised.Valid)
	assert.Equal(t, verdict.StatusWarning, r.PinStatus)
}

func TestEngr(t *testing.T) {
	assert.Equal(t, "1.500m", Engr(0.0015))
	assert.Equal(t, "-250.000m", Engr(-0.25))
	assert.Equal(t, "1.000", Engr(1))
	assert.Equal(t, "2.000k", Engr(2e3))
	assert.Equal(t, "0.0", Engr(0))
	assert.Equal(t, "5.000E", Engr(5e18))
	assert.Equal(t, "> 100.0", FormatGainError(150))
}

func TestSummaryTable(t *testing.T) {
	rows := SummaryTable([]verdict.ModeVerdict{
		{Test: "t2", Mode: "'en'=b0", Response: "vout", Pin: verdict.StatusSuccess, Residual: verdict.StatusSuccess},
		{Test: "t1", Mode: "'en'=b0", Response: "b", Pin: verdict.StatusFailure, Residual: verdict.StatusSuccess},
		{Test: "t1", Mode: "'en'=b0", Response: "a", Pin: verdict.StatusSuccess, Residual: verdict.StatusWarning},
		{Test: "t1", Mode: "'en'=b1", Response: "a", Pin: verdict.StatusSuccess, Residual: verdict.StatusSuccess},
	})
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"0", "t2", "vout", "'en'=b0", "", ""}, rows[0].Cells())
	assert.Equal(t, []string{"1", "t1", "a", "'en'=b0", "", "*warning*"}, rows[1].Cells())
	assert.Equal(t, "'en'=b1", rows[2].Mode)
	assert.Equal(t, []string{"3", "t1", "b", "'en'=b0", "*error*", ""}, rows[3].Cells())

	text := RenderSummary(rows)
	assert.Contains(t, text, "Simple pin consistency check")
	assert.Contains(t, text, "*error*")
}
