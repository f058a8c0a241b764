package regression

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"amsprobe/domain/port"
	"amsprobe/internal"
)

var (
	ErrSingular         = errors.New("regression is singular or under-determined")
	ErrNotFitted        = errors.New("model has not been fitted")
	ErrNoData           = errors.New("no regression data loaded")
	ErrBadTerm          = errors.New("malformed model term")
	ErrUnknownPredictor = errors.New("unknown predictor")
	ErrUnknownResponse  = errors.New("unknown response")
)

// BasisPolynomial is the only supported expansion basis.
const BasisPolynomial = "polynomial"

// Options controls formula expansion and the pruning thresholds.
type Options struct {
	Basis    string
	Order    int
	Interact bool
	// PValueThreshold marks significant terms in Summary.
	PValueThreshold float64
	// ConfidenceLevel of the coefficient intervals, e.g. 0.95.
	ConfidenceLevel float64
	// SensitivityThreshold is the normalized sensitivity, in percent, below
	// which a term is pruned.
	SensitivityThreshold float64
	// DoNotRegress lists, per response, predictors to leave out.
	DoNotRegress map[string][]string
	// UserModel overrides the expansion per response. An empty formula
	// means intercept only.
	UserModel map[string]string
}

// DefaultOptions returns the defaults of the test configuration.
func DefaultOptions() Options {
	return Options{
		Basis:                BasisPolynomial,
		Order:                1,
		Interact:             false,
		PValueThreshold:      0.05,
		ConfidenceLevel:      0.95,
		SensitivityThreshold: 5.0,
		DoNotRegress:         map[string][]string{},
		UserModel:            map[string]string{},
	}
}

// Clone deep-copies the option maps.
func (o Options) Clone() Options {
	out := o
	out.DoNotRegress = make(map[string][]string, len(o.DoNotRegress))
	for k, v := range o.DoNotRegress {
		out.DoNotRegress[k] = append([]string(nil), v...)
	}
	out.UserModel = make(map[string]string, len(o.UserModel))
	for k, v := range o.UserModel {
		out.UserModel[k] = v
	}
	return out
}

// Simple restricts the expansion to first-order terms without interaction.
func (o Options) Simple() Options {
	out := o.Clone()
	out.Order = 1
	out.Interact = false
	return out
}

// WithUserModel returns a copy whose user models are overridden by formulas.
func (o Options) WithUserModel(formulas map[string]string) Options {
	out := o.Clone()
	for k, v := range formulas {
		out.UserModel[k] = v
	}
	return out
}

// Estimate is a value that may not be computable.
type Estimate struct {
	Value float64
	Valid bool
}

// Fit is the OLS result for one response.
type Fit struct {
	Response string
	Formula  string
	// Terms starts with Intercept.
	Terms []string
	Coef  []float64
	// StdErr, TValue, PValue and ConfInt are NaN when there are no residual
	// degrees of freedom.
	StdErr      []float64
	TValue      []float64
	PValue      []float64
	ConfInt     [][2]float64
	Fitted      []float64
	Residuals   []float64
	RSquared    float64
	AdjRSquared float64
	// Sensitivity is aligned with Terms; the intercept entry is never valid.
	Sensitivity []Estimate
	DF          int
	// Err is set when the response could not be fitted.
	Err error
}

func (f *Fit) termIndex(term string) int {
	for i, t := range f.Terms {
		if t == term {
			return i
		}
	}
	return -1
}

// Model fits one linear model per response against a shared predictor set.
type Model struct {
	ph     *port.Handler
	logger *internal.Logger

	opt        Options
	responses  map[string][]float64
	predictors map[string][]float64
	nrows      int
	dvIV       map[string][]string
	binary     map[string]bool

	formula map[string]string
	fits    map[string]*Fit
}

// NewModel returns an empty model. ph supplies tolerances and port scales.
func NewModel(ph *port.Handler, logger *internal.Logger) *Model {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Model{ph: ph, logger: logger.WithComponent("Regression")}
}

// LoadData replaces the samples and options. Every column must have the same
// length. A response is never used as its own predictor.
func (m *Model) LoadData(responses, predictors map[string][]float64, opt Options) error {
	if opt.Basis == "" {
		opt.Basis = BasisPolynomial
	}
	if opt.Basis != BasisPolynomial {
		return fmt.Errorf("unsupported regression basis %q", opt.Basis)
	}
	if opt.Order < 1 {
		opt.Order = 1
	}
	if opt.ConfidenceLevel <= 0 || opt.ConfidenceLevel >= 1 {
		opt.ConfidenceLevel = 0.95
	}
	opt = opt.Clone()

	n := -1
	check := func(kind, name string, col []float64) error {
		if n < 0 {
			n = len(col)
		}
		if len(col) != n {
			return fmt.Errorf("%s %q has %d samples, expected %d", kind, name, len(col), n)
		}
		return nil
	}
	m.responses = make(map[string][]float64, len(responses))
	for _, k := range sortedKeys(responses) {
		if err := check("response", k, responses[k]); err != nil {
			return err
		}
		m.responses[k] = append([]float64(nil), responses[k]...)
	}
	m.predictors = make(map[string][]float64, len(predictors))
	for _, k := range sortedKeys(predictors) {
		if err := check("predictor", k, predictors[k]); err != nil {
			return err
		}
		m.predictors[k] = append([]float64(nil), predictors[k]...)
	}
	if n < 0 {
		n = 0
	}
	m.nrows = n
	m.opt = opt

	ivNames := sortedKeys(m.predictors)
	m.dvIV = make(map[string][]string, len(m.responses))
	for dv := range m.responses {
		skip := map[string]bool{dv: true}
		for _, x := range opt.DoNotRegress[dv] {
			skip[x] = true
		}
		var iv []string
		for _, x := range ivNames {
			if !skip[x] {
				iv = append(iv, x)
			}
		}
		m.dvIV[dv] = iv
	}
	m.binary = make(map[string]bool, len(m.predictors))
	for k, col := range m.predictors {
		m.binary[k] = isBinary(col)
	}
	m.formula = nil
	m.fits = nil
	return nil
}

func isBinary(col []float64) bool {
	for _, v := range col {
		if v != 0 && v != 1 {
			return false
		}
	}
	return true
}

// Options returns a copy of the loaded options.
func (m *Model) Options() Options { return m.opt.Clone() }

// Responses returns the response names in sorted order.
func (m *Model) Responses() []string { return sortedKeys(m.responses) }

// Response returns the simulated samples of a response.
func (m *Model) Response(name string) ([]float64, bool) {
	col, ok := m.responses[name]
	return append([]float64(nil), col...), ok
}

// PredictorData returns the loaded predictor columns.
func (m *Model) PredictorData() map[string][]float64 {
	out := make(map[string][]float64, len(m.predictors))
	for k, v := range m.predictors {
		out[k] = append([]float64(nil), v...)
	}
	return out
}

// Len is the number of samples.
func (m *Model) Len() int { return m.nrows }

// Formulas builds the right-hand side of every response model.
func (m *Model) Formulas() map[string]string {
	out := make(map[string]string, len(m.dvIV))
	for dv, iv := range m.dvIV {
		if f, ok := m.opt.UserModel[dv]; ok {
			if f == "" {
				f = "1"
			}
			out[dv] = f
			continue
		}
		out[dv] = BuildFormula(iv, m.opt.Order, m.opt.Interact, m.binary)
	}
	return out
}

// Run fits every response. A response that cannot be fitted keeps its error
// in Fit.Err; Run itself only fails when nothing is loaded.
func (m *Model) Run() error {
	if m.responses == nil {
		return ErrNoData
	}
	m.formula = m.Formulas()
	m.fits = make(map[string]*Fit, len(m.formula))
	for _, dv := range m.Responses() {
		f := m.fitResponse(dv, m.formula[dv])
		if f.Err != nil {
			m.logger.Debug("%s ~ %s: %v", dv, m.formula[dv], f.Err)
		} else {
			m.logger.Trace("%s ~ %s", dv, m.formula[dv])
		}
		m.fits[dv] = f
	}
	return nil
}

func (m *Model) fitResponse(dv, formula string) *Fit {
	terms := append([]string{Intercept}, ParseFormula(formula)...)
	f := &Fit{Response: dv, Formula: formula, Terms: terms}
	n, p := m.nrows, len(terms)
	if n < p || n == 0 {
		f.Err = fmt.Errorf("%w: %d samples for %d terms", ErrSingular, n, p)
		return f
	}

	x := mat.NewDense(n, p, nil)
	for j, t := range terms {
		col, err := evalTerm(t, m.predictors, n)
		if err != nil {
			f.Err = err
			return f
		}
		x.SetCol(j, col)
	}
	y := mat.NewDense(n, 1, append([]float64(nil), m.responses[dv]...))

	var qr mat.QR
	qr.Factorize(x)
	var r mat.Dense
	qr.RTo(&r)
	maxDiag := 0.0
	for i := 0; i < p; i++ {
		maxDiag = math.Max(maxDiag, math.Abs(r.At(i, i)))
	}
	for i := 0; i < p; i++ {
		if math.Abs(r.At(i, i)) <= maxDiag*rankTolerance {
			f.Err = fmt.Errorf("%w: term %q is collinear with the others", ErrSingular, terms[i])
			return f
		}
	}
	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, y); err != nil {
		f.Err = fmt.Errorf("%w: %v", ErrSingular, err)
		return f
	}

	f.Coef = make([]float64, p)
	for i := range f.Coef {
		f.Coef[i] = beta.At(i, 0)
	}
	var fitted mat.Dense
	fitted.Mul(x, &beta)
	f.Fitted = make([]float64, n)
	f.Residuals = make([]float64, n)
	rss := 0.0
	for i := 0; i < n; i++ {
		f.Fitted[i] = fitted.At(i, 0)
		f.Residuals[i] = y.At(i, 0) - f.Fitted[i]
		rss += f.Residuals[i] * f.Residuals[i]
	}
	f.DF = n - p
	f.RSquared = stat.RSquaredFrom(f.Fitted, m.responses[dv], nil)
	if f.DF > 0 {
		f.AdjRSquared = 1 - (1-f.RSquared)*float64(n-1)/float64(f.DF)
	} else {
		f.AdjRSquared = math.NaN()
	}

	m.inference(f, x, rss)
	m.sensitivity(f, x)
	return f
}

// rankTolerance is relative to the largest diagonal entry of R.
const rankTolerance = 1e-10

func (m *Model) inference(f *Fit, x *mat.Dense, rss float64) {
	p := len(f.Terms)
	f.StdErr = make([]float64, p)
	f.TValue = make([]float64, p)
	f.PValue = make([]float64, p)
	f.ConfInt = make([][2]float64, p)
	nan := math.NaN()
	if f.DF <= 0 {
		for i := range f.StdErr {
			f.StdErr[i], f.TValue[i], f.PValue[i] = nan, nan, nan
			f.ConfInt[i] = [2]float64{nan, nan}
		}
		return
	}
	var xtx, inv mat.Dense
	xtx.Mul(x.T(), x)
	if err := inv.Inverse(&xtx); err != nil {
		m.logger.Debug("%s: covariance unavailable: %v", f.Response, err)
		for i := range f.StdErr {
			f.StdErr[i], f.TValue[i], f.PValue[i] = nan, nan, nan
			f.ConfInt[i] = [2]float64{nan, nan}
		}
		return
	}
	sigma2 := rss / float64(f.DF)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(f.DF)}
	q := dist.Quantile(1 - (1-m.opt.ConfidenceLevel)/2)
	for i := 0; i < p; i++ {
		se := math.Sqrt(sigma2 * inv.At(i, i))
		f.StdErr[i] = se
		f.ConfInt[i] = [2]float64{f.Coef[i] - q*se, f.Coef[i] + q*se}
		if se == 0 {
			f.TValue[i] = math.Copysign(math.Inf(1), f.Coef[i])
			f.PValue[i] = 0
			continue
		}
		t := f.Coef[i] / se
		f.TValue[i] = t
		f.PValue[i] = 2 * dist.Survival(math.Abs(t))
	}
}

// sensitivity normalizes |coef|·stdev(term) of the non-intercept terms so
// they sum to 100.
func (m *Model) sensitivity(f *Fit, x *mat.Dense) {
	p := len(f.Terms)
	f.Sensitivity = make([]Estimate, p)
	raw := make([]float64, p)
	total := 0.0
	for j := 1; j < p; j++ {
		sd := populationStd(mat.Col(nil, j, x))
		raw[j] = math.Abs(f.Coef[j]) * sd
		total += raw[j]
	}
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return
	}
	for j := 1; j < p; j++ {
		f.Sensitivity[j] = Estimate{Value: 100 * raw[j] / total, Valid: true}
	}
}

func sortedKeys(m map[string][]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
