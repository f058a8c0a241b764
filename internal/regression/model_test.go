package regression

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"amsprobe/domain/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func handler(t require.TestingT, ports ...*port.Port) *port.Handler {
	h := port.NewHandler()
	for _, p := range ports {
		h.Add(p)
	}
	return h
}

func mustPort(t require.TestingT, name string, kind port.Kind, c port.Constraint) *port.Port {
	p, err := port.New(name, kind, "", c)
	require.NoError(t, err)
	return p
}

func output(t require.TestingT, name string, abstol float64) *port.Port {
	return mustPort(t, name, port.AnalogOutput, port.Constraint{AbsTol: port.Float(abstol), GainTol: port.Float(10)})
}

func analogIn(t require.TestingT, name string) *port.Port {
	return mustPort(t, name, port.AnalogInput, port.Constraint{LowerBound: port.Float(0), UpperBound: port.Float(1)})
}

func TestBuildFormula(t *testing.T) {
	binary := map[string]bool{"q_0": true, "q_1": true}
	got := BuildFormula([]string{"a", "b", "q_0", "q_1"}, 2, true, binary)
	assert.Equal(t, "a+b+q_0+q_1+a:b+a:q_0+a:q_1+b:q_0+b:q_1+I(a**2)+I(b**2)", got)

	assert.Equal(t, "a+b", BuildFormula([]string{"a", "b"}, 1, false, nil))
	assert.Equal(t, "1", BuildFormula(nil, 3, true, nil))
}

func TestParseFormula(t *testing.T) {
	assert.Equal(t, []string{"a", "b:c", "I(a**2)"}, ParseFormula("a + b:c+1+a+ I(a**2)"))
	assert.Empty(t, ParseFormula("1"))
	assert.Empty(t, ParseFormula(""))
	assert.Equal(t, "1", JoinTerms(nil))
}

func TestParseTerm(t *testing.T) {
	f, err := ParseTerm("x:I(y**3)")
	require.NoError(t, err)
	assert.Equal(t, []Factor{{Name: "x", Power: 1}, {Name: "y", Power: 3}}, f)

	for _, bad := range []string{"I(x)", "I(x**z)", "x*y", ""} {
		_, err := ParseTerm(bad)
		assert.ErrorIs(t, err, ErrBadTerm, bad)
	}
}

func TestVerilogTerm(t *testing.T) {
	h := handler(t,
		mustPort(t, "code", port.QuantizedAnalog, port.Constraint{BitWidth: 3}),
		mustPort(t, "en", port.QuantizedAnalog, port.Constraint{BitWidth: 1}),
	)
	assert.Equal(t, "code[2]", VerilogTerm("code_2", h))
	assert.Equal(t, "en", VerilogTerm("en_0", h))
	assert.Equal(t, "vin**2*code[0]", VerilogTerm("I(vin**2):code_0", h))
	// not a quantized port, so the suffix stays
	assert.Equal(t, "v_1", VerilogTerm("v_1", h))
}

func TestExactLinearFit(t *testing.T) {
	h := handler(t, analogIn(t, "x1"), analogIn(t, "x2"), output(t, "y", 0.01))
	x1 := []float64{0, 1, 0, 1, 0.5, 0.2, 0.9, 0.4}
	x2 := []float64{0, 0, 1, 1, 0.3, 0.8, 0.1, 0.6}
	y := make([]float64, len(x1))
	for i := range y {
		y[i] = 2 + 3*x1[i] - 0.5*x2[i]
	}
	m := NewModel(h, nil)
	require.NoError(t, m.LoadData(map[string][]float64{"y": y}, map[string][]float64{"x1": x1, "x2": x2}, DefaultOptions()))
	require.NoError(t, m.Run())

	assert.Equal(t, []string{Intercept, "x1", "x2"}, m.Predictors("y"))
	coefs, err := m.Coefs("y")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 3, -0.5}, coefs, 1e-9)

	r2, ok := m.RSquared("y")
	require.True(t, ok)
	assert.InDelta(t, 1.0, r2, 1e-9)
	assert.InDelta(t, 0.0, m.MaxResiduals()["y"], 1e-9)
	assert.InDelta(t, 0.0, m.StdResiduals()["y"], 1e-9)

	pred, err := m.Predicted("y")
	require.NoError(t, err)
	assert.InDeltaSlice(t, y, pred, 1e-9)
}

func TestRefitIsIdempotent(t *testing.T) {
	h := handler(t, analogIn(t, "a"), analogIn(t, "b"), output(t, "y", 0.01))
	a := []float64{0.1, 0.7, 0.3, 0.9, 0.5, 0.2, 0.8, 0.4, 0.6}
	b := []float64{0.5, 0.1, 0.9, 0.3, 0.7, 0.8, 0.2, 0.6, 0.4}
	y := []float64{1.2, 1.9, 1.1, 2.6, 1.7, 0.9, 2.3, 1.4, 1.8}
	opt := DefaultOptions()
	opt.Order = 2
	opt.Interact = true

	m := NewModel(h, nil)
	data := map[string][]float64{"a": a, "b": b}
	require.NoError(t, m.LoadData(map[string][]float64{"y": y}, data, opt))
	require.NoError(t, m.Run())
	first, err := m.Coefs("y")
	require.NoError(t, err)

	require.NoError(t, m.LoadData(map[string][]float64{"y": y}, data, opt))
	require.NoError(t, m.Run())
	second, err := m.Coefs("y")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{Intercept, "a", "b", "a:b", "I(a**2)", "I(b**2)"}, m.Predictors("y"))
}

func TestSingularFitIsRecorded(t *testing.T) {
	h := handler(t, analogIn(t, "x1"), analogIn(t, "x2"), output(t, "y", 0.01))
	x1 := []float64{0, 0.25, 0.5, 0.75, 1}
	x2 := []float64{0, 0.5, 1, 1.5, 2}
	y := []float64{1, 2, 3, 4, 5}
	m := NewModel(h, nil)
	require.NoError(t, m.LoadData(map[string][]float64{"y": y}, map[string][]float64{"x1": x1, "x2": x2}, DefaultOptions()))
	require.NoError(t, m.Run())

	_, err := m.Fit("y")
	assert.ErrorIs(t, err, ErrSingular)
	assert.Equal(t, []string{Intercept, "x1", "x2"}, m.Predictors("y"))
	_, ok := m.Coef("y", "x1")
	assert.False(t, ok)
	assert.False(t, m.Sensitivity("y", "x1").Valid)
	_, err = m.Residuals("y")
	assert.Error(t, err)
	assert.Empty(t, m.Equations())
	assert.Contains(t, m.Summary("y"), "singular")
}

func TestUnderDeterminedFit(t *testing.T) {
	h := handler(t, analogIn(t, "x1"), analogIn(t, "x2"), output(t, "y", 0.01))
	m := NewModel(h, nil)
	require.NoError(t, m.LoadData(
		map[string][]float64{"y": {1, 2}},
		map[string][]float64{"x1": {0, 1}, "x2": {1, 0}},
		DefaultOptions()))
	require.NoError(t, m.Run())
	_, err := m.Fit("y")
	assert.True(t, errors.Is(err, ErrSingular))
}

func TestLifecycleErrors(t *testing.T) {
	m := NewModel(port.NewHandler(), nil)
	assert.ErrorIs(t, m.Run(), ErrNoData)
	_, err := m.Fit("y")
	assert.ErrorIs(t, err, ErrNotFitted)

	err = m.LoadData(map[string][]float64{"y": {1, 2, 3}}, map[string][]float64{"x": {1, 2}}, DefaultOptions())
	assert.Error(t, err)

	opt := DefaultOptions()
	opt.Basis = "fourier"
	assert.Error(t, m.LoadData(map[string][]float64{"y": {1}}, nil, opt))
}

func TestResponseNeverPredictsItself(t *testing.T) {
	h := handler(t, analogIn(t, "x"), output(t, "y", 0.01), output(t, "z", 0.01))
	x := []float64{0, 0.2, 0.4, 0.6, 0.8, 1}
	y := []float64{1, 1.4, 1.8, 2.2, 2.6, 3.1}
	z := []float64{0, 0.3, 0.5, 0.6, 0.9, 1.2}
	opt := DefaultOptions()
	opt.DoNotRegress = map[string][]string{"z": {"x"}}
	m := NewModel(h, nil)
	require.NoError(t, m.LoadData(map[string][]float64{"y": y, "z": z}, map[string][]float64{"x": x, "y": y}, opt))
	require.NoError(t, m.Run())
	assert.Equal(t, []string{Intercept, "x"}, m.Predictors("y"))
	assert.Equal(t, []string{Intercept, "y"}, m.Predictors("z"))
}

func TestUserModelOverridesExpansion(t *testing.T) {
	h := handler(t, analogIn(t, "x"), output(t, "y", 0.01))
	opt := DefaultOptions().WithUserModel(map[string]string{"y": ""})
	m := NewModel(h, nil)
	require.NoError(t, m.LoadData(
		map[string][]float64{"y": {1, 2, 3, 4}},
		map[string][]float64{"x": {0, 1, 2, 3}},
		opt))
	require.NoError(t, m.Run())
	assert.Equal(t, []string{Intercept}, m.Predictors("y"))
	c, ok := m.Coef("y", Intercept)
	require.True(t, ok)
	assert.InDelta(t, 2.5, c, 1e-12)

	opt = DefaultOptions().WithUserModel(map[string]string{"y": "x+missing"})
	require.NoError(t, m.LoadData(
		map[string][]float64{"y": {1, 2, 3, 4}},
		map[string][]float64{"x": {0, 1, 2, 3}},
		opt))
	require.NoError(t, m.Run())
	_, err := m.Fit("y")
	assert.ErrorIs(t, err, ErrUnknownPredictor)
}

// orthogonal 2-level design with a residual orthogonal to every column
var (
	designX1 = []float64{0, 1, 0, 1, 0, 1, 0, 1}
	designX2 = []float64{0, 0, 1, 1, 0, 0, 1, 1}
	noise    = []float64{0.01, -0.02, 0.03, 0.01, -0.01, 0.02, -0.03, -0.01}
)

func TestSensitivityIsNormalized(t *testing.T) {
	h := handler(t, analogIn(t, "x1"), analogIn(t, "x2"), output(t, "y", 0.01))
	y := make([]float64, len(designX1))
	for i := range y {
		y[i] = 1 + 3*designX1[i] - designX2[i]
	}
	m := NewModel(h, nil)
	require.NoError(t, m.LoadData(map[string][]float64{"y": y}, map[string][]float64{"x1": designX1, "x2": designX2}, DefaultOptions()))
	require.NoError(t, m.Run())

	assert.False(t, m.Sensitivity("y", Intercept).Valid)
	s1, s2 := m.Sensitivity("y", "x1"), m.Sensitivity("y", "x2")
	require.True(t, s1.Valid)
	require.True(t, s2.Valid)
	assert.InDelta(t, 75.0, s1.Value, 1e-9)
	assert.InDelta(t, 25.0, s2.Value, 1e-9)

	opt := DefaultOptions()
	opt.SensitivityThreshold = 30
	require.NoError(t, m.LoadData(map[string][]float64{"y": y}, map[string][]float64{"x1": designX1, "x2": designX2}, opt))
	require.NoError(t, m.Run())
	assert.Equal(t, map[string]string{"y": "x1"}, m.SuggestBySensitivity())
}

func TestSuggestByAbsTol(t *testing.T) {
	h := handler(t, analogIn(t, "x1"), analogIn(t, "x2"), output(t, "y", 0.1), output(t, "w", 0.1))
	y := make([]float64, len(designX1))
	w := make([]float64, len(designX1))
	for i := range y {
		y[i] = 1 + 0.05*designX1[i]
		w[i] = 1 + 0.05*designX1[i] + 2*designX2[i]
	}
	opt := DefaultOptions()
	opt.DoNotRegress = map[string][]string{"y": {"x2"}}
	m := NewModel(h, nil)
	require.NoError(t, m.LoadData(map[string][]float64{"y": y, "w": w}, map[string][]float64{"x1": designX1, "x2": designX2}, opt))
	require.NoError(t, m.Run())

	// y has one predictor and is filtered; w has two and is kept verbatim
	assert.Equal(t, map[string]string{"y": "", "w": "x1+x2"}, m.SuggestByAbsTol(false))
	assert.Equal(t, map[string]string{"y": "", "w": "x2"}, m.SuggestByAbsTol(true))
}

func TestSuggestByConfidenceInterval(t *testing.T) {
	h := handler(t, analogIn(t, "x1"), analogIn(t, "x2"), output(t, "y", 0.01))
	y := make([]float64, len(designX1))
	for i := range y {
		y[i] = 1 + 2*designX1[i] + noise[i]
	}
	m := NewModel(h, nil)
	require.NoError(t, m.LoadData(map[string][]float64{"y": y}, map[string][]float64{"x1": designX1, "x2": designX2}, DefaultOptions()))
	require.NoError(t, m.Run())

	embraces, ok := m.ConfidenceIntervalEmbracesZero("y", "x2")
	require.True(t, ok)
	assert.True(t, embraces)
	assert.Equal(t, map[string]string{"y": "x1"}, m.SuggestByConfidenceInterval())

	f, err := m.Fit("y")
	require.NoError(t, err)
	assert.Equal(t, 5, f.DF)
	assert.Less(t, f.PValue[1], 0.05)
	assert.Greater(t, f.PValue[2], 0.05)
}

func TestPruningNeverReAddsTerms(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nVar := rapid.IntRange(1, 4).Draw(t, "nVar")
		n := rapid.IntRange(2*nVar+4, 30).Draw(t, "n")
		ports := []*port.Port{output(t, "y", rapid.Float64Range(0.001, 1).Draw(t, "abstol"))}
		data := make(map[string][]float64)
		y := make([]float64, n)
		for j := 0; j < nVar; j++ {
			name := fmt.Sprintf("x%d", j)
			ports = append(ports, analogIn(t, name))
			gain := rapid.Float64Range(-2, 2).Draw(t, "gain"+name)
			col := make([]float64, n)
			for i := range col {
				col[i] = rapid.Float64Range(0, 1).Draw(t, fmt.Sprintf("%s[%d]", name, i))
				y[i] += gain * col[i]
			}
			data[name] = col
		}
		for i := range y {
			y[i] += rapid.Float64Range(-0.01, 0.01).Draw(t, fmt.Sprintf("e[%d]", i))
		}
		h := handler(t, ports...)
		opt := DefaultOptions()
		opt.SensitivityThreshold = rapid.Float64Range(0, 50).Draw(t, "threshold")
		useAbsTol := rapid.Bool().Draw(t, "abstol rule")

		m := NewModel(h, nil)
		resp := map[string][]float64{"y": y}
		suggest := func() map[string]string {
			if useAbsTol {
				return m.SuggestByAbsTol(true)
			}
			return m.SuggestBySensitivity()
		}
		if err := m.LoadData(resp, data, opt); err != nil {
			t.Fatal(err)
		}
		_ = m.Run()
		first := suggest()
		opt = opt.WithUserModel(first)
		if err := m.LoadData(resp, data, opt); err != nil {
			t.Fatal(err)
		}
		_ = m.Run()
		second := suggest()

		kept := make(map[string]bool)
		for _, term := range ParseFormula(first["y"]) {
			kept[term] = true
		}
		for _, term := range ParseFormula(second["y"]) {
			if !kept[term] {
				t.Fatalf("term %s re-added: %q -> %q", term, first["y"], second["y"])
			}
		}
	})
}

func TestEquationRoundTrip(t *testing.T) {
	h := handler(t,
		analogIn(t, "vin"),
		mustPort(t, "code", port.QuantizedAnalog, port.Constraint{BitWidth: 2}),
		output(t, "vout", 0.01),
	)
	vin := []float64{0, 1, 0, 1, 0, 1, 0, 1}
	code0 := []float64{0, 0, 1, 1, 0, 0, 1, 1}
	code1 := []float64{0, 0, 0, 0, 1, 1, 1, 1}
	vout := make([]float64, len(vin))
	for i := range vout {
		vout[i] = 0.5 + 2*vin[i] + 0.25*code0[i] + 0.5*code1[i]
	}
	m := NewModel(h, nil)
	require.NoError(t, m.LoadData(
		map[string][]float64{"vout": vout},
		map[string][]float64{"vin": vin, "code_0": code0, "code_1": code1},
		DefaultOptions()))
	require.NoError(t, m.Run())

	eq, err := m.Equation("vout")
	require.NoError(t, err)
	assert.Equal(t, "vout = 5.000000e-01 + 2.500000e-01*code[0] + 5.000000e-01*code[1] + 2.000000e+00*vin", eq)

	resp, coefs, err := ExtractCoefficients(eq)
	require.NoError(t, err)
	assert.Equal(t, "vout", resp)
	assert.InDelta(t, 0.5, coefs[OffsetTerm], 1e-6)
	assert.InDelta(t, 0.25, coefs["code[0]"], 1e-6)
	assert.InDelta(t, 0.5, coefs["code[1]"], 1e-6)
	assert.InDelta(t, 2.0, coefs["vin"], 1e-6)

	_, _, err = ExtractCoefficients("no equals sign")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	h := handler(t, analogIn(t, "x"), output(t, "y", 0.01))
	m := NewModel(h, nil)
	require.NoError(t, m.LoadData(
		map[string][]float64{"y": {1, 2, 3}},
		map[string][]float64{"x": {0.5, 1.5, 2.5}},
		DefaultOptions()))
	path := filepath.Join(t.TempDir(), "regression.csv")
	require.NoError(t, m.WriteCSV(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, []string{",x,y", "0,0.5,1", "1,1.5,2", "2,2.5,3"}, lines)
}

func TestRelError(t *testing.T) {
	assert.Equal(t, 50.0, RelError(1, 1.5))
	assert.Equal(t, 300.0, RelError(2, -1))
	assert.Equal(t, 23.4, RelError(1, 1.2345))
	assert.True(t, math.IsInf(RelError(0, 3), 1))
	assert.True(t, math.IsInf(RelError(-2, 0), 1))
	assert.Equal(t, 0.0, RelError(0, 0))

	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Float64Range(-1e6, 1e6).Filter(func(v float64) bool { return v != 0 }).Draw(t, "a")
		b := rapid.Float64Range(-1e6, 1e6).Filter(func(v float64) bool { return v != 0 }).Draw(t, "b")
		if RelError(a, b) != RelError(b, a) {
			t.Fatalf("RelError(%g,%g)=%g but RelError(%g,%g)=%g", a, b, RelError(a, b), b, a, RelError(b, a))
		}
	})
}

func TestAbsMaxKeepsSign(t *testing.T) {
	assert.Equal(t, -3.0, AbsMax([]float64{1, -3, 2}))
	assert.Equal(t, 0.0, AbsMax(nil))
	assert.InDelta(t, 0.5, Std([]float64{0, 1}), 1e-12)
	assert.True(t, math.IsNaN(Std(nil)))
}
