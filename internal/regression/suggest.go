package regression

import "math"

// SuggestBySensitivity keeps the non-intercept terms whose normalized
// sensitivity reaches the configured threshold. A response that could not be
// fitted keeps its current terms.
func (m *Model) SuggestBySensitivity() map[string]string {
	threshold := m.opt.SensitivityThreshold
	return m.suggest(func(f *Fit) []string {
		var keep []string
		for i := 1; i < len(f.Terms); i++ {
			if s := f.Sensitivity[i]; s.Valid && math.Abs(s.Value) >= threshold {
				keep = append(keep, f.Terms[i])
			}
		}
		return keep
	})
}

// SuggestByAbsTol keeps the terms whose |coef·scale| reaches the response's
// abstol, where scale is the input port range (1 for derived terms). Only
// models with at most one predictor are filtered unless isSimple is set;
// larger models keep every term.
func (m *Model) SuggestByAbsTol(isSimple bool) map[string]string {
	return m.suggest(func(f *Fit) []string {
		if len(f.Terms) >= 3 && !isSimple {
			return append([]string(nil), f.Terms[1:]...)
		}
		abstol := math.Inf(1)
		if p, ok := m.ph.Get(f.Response); ok {
			abstol = p.AbsTol()
		}
		var keep []string
		for i := 1; i < len(f.Terms); i++ {
			if math.Abs(f.Coef[i]*m.ph.ScaleOf(f.Terms[i])) >= abstol {
				keep = append(keep, f.Terms[i])
			}
		}
		return keep
	})
}

// SuggestByConfidenceInterval drops terms whose confidence interval contains
// zero. Terms without an interval are kept.
func (m *Model) SuggestByConfidenceInterval() map[string]string {
	return m.suggest(func(f *Fit) []string {
		var keep []string
		for i := 1; i < len(f.Terms); i++ {
			ci := f.ConfInt[i]
			if math.IsNaN(ci[0]) || ci[0]*ci[1] > 0 {
				keep = append(keep, f.Terms[i])
			}
		}
		return keep
	})
}

func (m *Model) suggest(keep func(*Fit) []string) map[string]string {
	out := make(map[string]string, len(m.fits))
	for _, r := range m.Responses() {
		f, ok := m.fits[r]
		if !ok {
			continue
		}
		if f.Err != nil {
			out[r] = m.formula[r]
			continue
		}
		terms := keep(f)
		if len(terms) == 0 {
			out[r] = ""
			continue
		}
		out[r] = JoinTerms(terms)
	}
	return out
}
