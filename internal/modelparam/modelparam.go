// Package modelparam stores the coefficients of the extracted linear
// models so that behavioral models can be back-annotated from them.
package modelparam

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"amsprobe/domain/port"
	"amsprobe/internal/errors"
	"amsprobe/internal/regression"
)

// FileName is the extracted model file written under the run root.
const FileName = "extracted_linear_model.yaml"

// Entry holds the coefficients of one response in one digital mode.
type Entry struct {
	Mode map[string]int     `yaml:"mode"`
	Coef map[string]float64 `yaml:"coef"`
}

// Params maps test -> response -> one entry per digital mode.
type Params map[string]map[string][]Entry

// ModeEquations are the fitted equations of one digital mode.
type ModeEquations struct {
	Mode      map[string]int
	Equations []string
}

// DefaultMode is the mode of tests without a digital mode port.
func DefaultMode() map[string]int {
	return map[string]int{port.DummyDigitalMode: 0}
}

// New returns an empty parameter set.
func New() Params { return Params{} }

// Formulate parses the equations of every mode of test and appends them.
func (p Params) Formulate(test string, modes []ModeEquations) error {
	if _, ok := p[test]; !ok {
		p[test] = map[string][]Entry{}
	}
	for _, m := range modes {
		for _, eq := range m.Equations {
			dv, coef, err := regression.ExtractCoefficients(eq)
			if err != nil {
				return errors.Wrapf(err, "test %s", test)
			}
			p[test][dv] = append(p[test][dv], Entry{Mode: maps.Clone(m.Mode), Coef: coef})
		}
	}
	return nil
}

// Save writes the parameters to dir/FileName.
func (p Params) Save(dir string) (string, error) {
	out, err := yaml.Marshal(p)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

// Load reads a file written by Save.
func Load(path string) (Params, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	p := Params{}
	if err := yaml.Unmarshal(body, &p); err != nil {
		return nil, errors.ConfigInvalidf("%s: %v", path, err)
	}
	return p, nil
}

func (p Params) entry(test, dv string, mode map[string]int) (Entry, bool) {
	for _, e := range p[test][dv] {
		if maps.Equal(e.Mode, mode) {
			return e, true
		}
	}
	return Entry{}, false
}

// Coef returns the coefficient of term in the model of dv.
func (p Params) Coef(test, dv, term string, mode map[string]int) (float64, bool) {
	e, ok := p.entry(test, dv, mode)
	if !ok {
		return 0, false
	}
	v, ok := e.Coef[term]
	return v, ok
}

// Terms lists the terms of the model of dv, offset first.
func (p Params) Terms(test, dv string, mode map[string]int) []string {
	e, ok := p.entry(test, dv, mode)
	if !ok {
		return nil
	}
	terms := make([]string, 0, len(e.Coef))
	for t := range e.Coef {
		if t != regression.OffsetTerm {
			terms = append(terms, t)
		}
	}
	sort.Strings(terms)
	if _, ok := e.Coef[regression.OffsetTerm]; ok {
		terms = append([]string{regression.OffsetTerm}, terms...)
	}
	return terms
}

var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// Equation renders the model of dv as a Verilog expression, renaming ports
// through renames (port -> variable). Every port used by the model must be
// renamed.
func (p Params) Equation(test, dv string, renames map[string]string, mode map[string]int) (string, error) {
	terms := p.Terms(test, dv, mode)
	if terms == nil {
		return "", errors.NotFound(fmt.Sprintf("model of %s in test %s", dv, test))
	}
	var missing []string
	parts := make([]string, len(terms))
	for i, t := range terms {
		c, _ := p.Coef(test, dv, t, mode)
		cs := strconv.FormatFloat(c, 'g', -1, 64)
		if t == regression.OffsetTerm {
			parts[i] = cs
			continue
		}
		renamed := identRe.ReplaceAllStringFunc(t, func(id string) string {
			if v, ok := renames[id]; ok {
				return v
			}
			missing = append(missing, id)
			return id
		})
		parts[i] = cs + "*" + renamed
	}
	if len(missing) > 0 {
		return "", errors.InvalidInput(fmt.Sprintf("no variable given for %s", strings.Join(dedup(missing), ", ")))
	}
	return strings.ReplaceAll(strings.Join(parts, " + "), "+ -", "- ") + ";", nil
}

func dedup(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	for i, s := range in {
		if i == 0 || s != in[i-1] {
			out = append(out, s)
		}
	}
	return out
}
