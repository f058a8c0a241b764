package regression

import (
	"fmt"
	"math"
)

// Fit returns the result for one response, or the reason it is unavailable.
func (m *Model) Fit(response string) (*Fit, error) {
	if m.fits == nil {
		return nil, ErrNotFitted
	}
	f, ok := m.fits[response]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResponse, response)
	}
	if f.Err != nil {
		return f, f.Err
	}
	return f, nil
}

// Formula returns the formula last fitted for response.
func (m *Model) Formula(response string) string {
	return m.formula[response]
}

// Predictors returns the terms of a response model, Intercept first. The
// term list is known even when the fit itself failed.
func (m *Model) Predictors(response string) []string {
	if m.fits == nil {
		return nil
	}
	f, ok := m.fits[response]
	if !ok {
		return nil
	}
	return append([]string(nil), f.Terms...)
}

// Coef returns the coefficient of term, or false when the response was not
// fitted or does not contain term.
func (m *Model) Coef(response, term string) (float64, bool) {
	f, err := m.Fit(response)
	if err != nil {
		return 0, false
	}
	i := f.termIndex(term)
	if i < 0 {
		return 0, false
	}
	return f.Coef[i], true
}

// Coefs returns every coefficient of a response, aligned with Predictors.
func (m *Model) Coefs(response string) ([]float64, error) {
	f, err := m.Fit(response)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), f.Coef...), nil
}

// Sensitivity returns the normalized sensitivity of term in percent.
func (m *Model) Sensitivity(response, term string) Estimate {
	f, err := m.Fit(response)
	if err != nil {
		return Estimate{}
	}
	i := f.termIndex(term)
	if i < 0 {
		return Estimate{}
	}
	return f.Sensitivity[i]
}

// Residuals returns simulated minus fitted values.
func (m *Model) Residuals(response string) ([]float64, error) {
	f, err := m.Fit(response)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), f.Residuals...), nil
}

// Predicted returns the fitted values.
func (m *Model) Predicted(response string) ([]float64, error) {
	f, err := m.Fit(response)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), f.Fitted...), nil
}

// MaxResiduals returns max|residual| per fitted response.
func (m *Model) MaxResiduals() map[string]float64 {
	out := make(map[string]float64)
	for _, r := range m.Responses() {
		res, err := m.Residuals(r)
		if err != nil {
			continue
		}
		out[r] = math.Abs(AbsMax(res))
	}
	return out
}

// StdResiduals returns the population standard deviation of the residuals
// per fitted response.
func (m *Model) StdResiduals() map[string]float64 {
	out := make(map[string]float64)
	for _, r := range m.Responses() {
		res, err := m.Residuals(r)
		if err != nil {
			continue
		}
		out[r] = populationStd(res)
	}
	return out
}

// RSquared returns R² of a response.
func (m *Model) RSquared(response string) (float64, bool) {
	f, err := m.Fit(response)
	if err != nil || math.IsNaN(f.RSquared) {
		return 0, false
	}
	return f.RSquared, true
}

// ConfidenceIntervalEmbracesZero reports whether the interval of term
// contains zero. The second result is false when no interval exists.
func (m *Model) ConfidenceIntervalEmbracesZero(response, term string) (bool, bool) {
	f, err := m.Fit(response)
	if err != nil {
		return false, false
	}
	i := f.termIndex(term)
	if i < 0 || math.IsNaN(f.ConfInt[i][0]) {
		return false, false
	}
	return f.ConfInt[i][0]*f.ConfInt[i][1] <= 0, true
}
