package regression

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"amsprobe/domain/port"
)

// Intercept is the name of the constant term of every model.
const Intercept = "Intercept"

// InteractTerm renders the product of two predictors.
func InteractTerm(a, b string) string { return a + ":" + b }

// PowerTerm renders x raised to n.
func PowerTerm(x string, n int) string { return fmt.Sprintf("I(%s**%d)", x, n) }

// BuildFormula expands predictors into a full model: first-order terms,
// optional pairwise interactions between different ports, and powers up to
// order for non-binary predictors. An empty predictor list yields "1".
func BuildFormula(predictors []string, order int, interact bool, binary map[string]bool) string {
	if len(predictors) == 0 {
		return "1"
	}
	terms := append([]string(nil), predictors...)
	if interact && len(predictors) > 1 {
		for i, a := range predictors {
			for _, b := range predictors[i+1:] {
				// bits of the same quantized port never interact
				if port.BaseName(a) == port.BaseName(b) {
					continue
				}
				terms = append(terms, InteractTerm(a, b))
			}
		}
	}
	for n := 2; n <= order; n++ {
		for _, x := range predictors {
			if !binary[x] {
				terms = append(terms, PowerTerm(x, n))
			}
		}
	}
	return JoinTerms(terms)
}

// JoinTerms is the inverse of ParseFormula. No terms means intercept only.
func JoinTerms(terms []string) string {
	if len(terms) == 0 {
		return "1"
	}
	return strings.Join(terms, "+")
}

// ParseFormula splits a formula into its non-intercept terms, dropping
// duplicates and the explicit "1".
func ParseFormula(formula string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range strings.Split(formula, "+") {
		t = strings.Join(strings.Fields(t), "")
		if t == "" || t == "1" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Factor is one multiplicand of a term: a predictor raised to a power.
type Factor struct {
	Name  string
	Power int
}

// ParseTerm decomposes "a:I(b**2)" into its factors.
func ParseTerm(term string) ([]Factor, error) {
	parts := strings.Split(term, ":")
	out := make([]Factor, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "I(") && strings.HasSuffix(p, ")") {
			inner := strings.TrimSuffix(strings.TrimPrefix(p, "I("), ")")
			base, exp, ok := strings.Cut(inner, "**")
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrBadTerm, term)
			}
			n, err := strconv.Atoi(strings.TrimSpace(exp))
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: %q", ErrBadTerm, term)
			}
			out = append(out, Factor{Name: strings.TrimSpace(base), Power: n})
			continue
		}
		if p == "" || strings.ContainsAny(p, "()*") {
			return nil, fmt.Errorf("%w: %q", ErrBadTerm, term)
		}
		out = append(out, Factor{Name: p, Power: 1})
	}
	return out, nil
}

// evalTerm computes the design column of a term from the predictor data.
func evalTerm(term string, data map[string][]float64, n int) ([]float64, error) {
	if term == Intercept {
		col := make([]float64, n)
		for i := range col {
			col[i] = 1
		}
		return col, nil
	}
	factors, err := ParseTerm(term)
	if err != nil {
		return nil, err
	}
	col := make([]float64, n)
	for i := range col {
		col[i] = 1
	}
	for _, f := range factors {
		x, ok := data[f.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %q in term %q", ErrUnknownPredictor, f.Name, term)
		}
		for i := range col {
			col[i] *= math.Pow(x[i], float64(f.Power))
		}
	}
	return col, nil
}

// VerilogTerm rewrites a term as a Verilog expression: interactions become
// products, powers lose the I() wrapper and quantized bits are indexed.
func VerilogTerm(term string, ph *port.Handler) string {
	factors, err := ParseTerm(term)
	if err != nil {
		return term
	}
	parts := make([]string, len(factors))
	for i, f := range factors {
		name := f.Name
		if ph != nil {
			if base, bit, ok := port.SplitBitName(name); ok {
				if p, ok := ph.Get(base); ok && p.IsQuantized() {
					if p.BitWidth() == 1 {
						name = base
					} else {
						name = fmt.Sprintf("%s[%d]", base, bit)
					}
				}
			}
		}
		if f.Power > 1 {
			name = fmt.Sprintf("%s**%d", name, f.Power)
		}
		parts[i] = name
	}
	return strings.Join(parts, "*")
}
