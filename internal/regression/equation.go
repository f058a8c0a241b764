package regression

import (
	"fmt"
	"strconv"
	"strings"
)

// OffsetTerm is the key of the constant term in extracted coefficients.
const OffsetTerm = "offset"

// Equation renders a fitted response as "y = c0 + c1*x1 + c2*x[1]*x2".
func (m *Model) Equation(response string) (string, error) {
	f, err := m.Fit(response)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(f.Terms))
	for i, t := range f.Terms {
		if t == Intercept {
			parts[i] = fmt.Sprintf("%e", f.Coef[i])
			continue
		}
		parts[i] = fmt.Sprintf("%e*%s", f.Coef[i], VerilogTerm(t, m.ph))
	}
	return response + " = " + strings.Join(parts, " + "), nil
}

// Equations renders every fitted response in sorted order, skipping
// responses without a fit.
func (m *Model) Equations() []string {
	var out []string
	for _, r := range m.Responses() {
		eq, err := m.Equation(r)
		if err != nil {
			m.logger.Debug("no equation for %s: %v", r, err)
			continue
		}
		out = append(out, eq)
	}
	return out
}

// ExtractCoefficients parses an equation produced by Equation back into the
// response name and its coefficients keyed by term; the constant is keyed
// by OffsetTerm.
func ExtractCoefficients(eq string) (string, map[string]float64, error) {
	lhs, rhs, ok := strings.Cut(eq, "=")
	if !ok {
		return "", nil, fmt.Errorf("equation %q has no '='", eq)
	}
	coefs := make(map[string]float64)
	for _, t := range strings.Split(rhs, " + ") {
		c, term, hasTerm := strings.Cut(strings.TrimSpace(t), "*")
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return "", nil, fmt.Errorf("coefficient %q in %q: %w", c, eq, err)
		}
		if !hasTerm {
			term = OffsetTerm
		}
		coefs[term] = v
	}
	return strings.TrimSpace(lhs), coefs, nil
}
