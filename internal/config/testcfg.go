package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"amsprobe/domain/port"
	"amsprobe/internal/errors"
)

// Defaults applied to analog outputs that omit their tolerances.
const (
	DefaultAbsTol  = 1.0
	DefaultGainTol = 25.0
)

// TestConfig is the ordered set of tests read from a test configuration file.
type TestConfig struct {
	Tests []*TestSpec
}

// Names lists the test names in run order.
func (c *TestConfig) Names() []string {
	out := make([]string, len(c.Tests))
	for i, t := range c.Tests {
		out[i] = t.Name
	}
	return out
}

// Get finds a test by name.
func (c *TestConfig) Get(name string) (*TestSpec, bool) {
	for _, t := range c.Tests {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// TestSpec is one unit test: the device, its ports, regression options and
// testbench.
type TestSpec struct {
	Name        string     `yaml:"-"`
	DUT         string     `yaml:"dut"`
	Description string     `yaml:"description"`
	Option      Option     `yaml:"option"`
	Simulation  Simulation `yaml:"simulation"`
	Ports       PortSpecs  `yaml:"port" validate:"required,min=1,dive"`
	Testbench   Testbench  `yaml:"testbench"`
}

// Option holds per-test regression settings. Method is validated but does
// not change the batch loop, which always runs the abstol and sensitivity
// phases.
type Option struct {
	MaxSample            int                   `yaml:"max_sample" validate:"min=8"`
	MinAnalogLevel       int                   `yaml:"min_no_of_analog_grid" validate:"min=1"`
	Method               string                `yaml:"regression_method" validate:"oneof=basic filtered"`
	PValueThreshold      float64               `yaml:"regression_pval_threshold" validate:"gte=0,lte=1"`
	ConfidenceLevel      float64               `yaml:"regression_cint_threshold" validate:"gte=0,lte=1"`
	Basis                string                `yaml:"regression_basis" validate:"oneof=polynomial"`
	Order                int                   `yaml:"regression_order" validate:"min=1,max=10"`
	Interact             bool                  `yaml:"regression_en_interact"`
	SensitivityThreshold float64               `yaml:"regression_sval_threshold" validate:"gte=0,lte=100"`
	DoNotRegress         map[string]StringList `yaml:"regression_do_not_regress"`
	UserModel            map[string]string     `yaml:"regression_user_model"`
}

// Simulation holds the transient time and the Verilog time unit.
type Simulation struct {
	TimeUnit string `yaml:"timeunit" validate:"required,timescale"`
	TranTime string `yaml:"trantime" validate:"required,engrtime"`
}

// Timescale is the Verilog `timescale argument, unit/unit.
func (s Simulation) Timescale() string { return s.TimeUnit + "/" + s.TimeUnit }

// Units converts TranTime into TimeUnit steps.
func (s Simulation) Units() (int64, error) { return TimeUnits(s.TranTime, s.TimeUnit) }

// PortSpec is the configuration of one port.
type PortSpec struct {
	Type         string     `yaml:"port_type" validate:"required,oneof=analoginput analogoutput quantizedanalog digitalmode digitaloutput"`
	Description  string     `yaml:"description"`
	Regions      []float64  `yaml:"regions" validate:"omitempty,min=2"`
	UpperBound   *float64   `yaml:"upper_bound"`
	LowerBound   *float64   `yaml:"lower_bound"`
	Pinned       bool       `yaml:"pinned"`
	BitWidth     int        `yaml:"bit_width" validate:"gte=0,lte=20"`
	Encode       string     `yaml:"encode" validate:"omitempty,oneof=thermometer binary gray onehot"`
	DefaultValue string     `yaml:"default_value"`
	Prohibited   StringList `yaml:"prohibited"`
	AbsTol       *float64   `yaml:"abstol" validate:"omitempty,gte=0"`
	GainTol      *float64   `yaml:"gaintol" validate:"omitempty,gte=0,lte=100"`
}

// NamedPort keeps the configuration order of ports.
type NamedPort struct {
	Name string
	PortSpec
}

// PortSpecs is the port section in file order.
type PortSpecs []NamedPort

// UnmarshalYAML implements yaml.Unmarshaler.
func (ps *PortSpecs) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: port section must be a mapping", n.Line)
	}
	out := make(PortSpecs, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		var p PortSpec
		if err := n.Content[i+1].Decode(&p); err != nil {
			return fmt.Errorf("port %s: %w", n.Content[i].Value, err)
		}
		out = append(out, NamedPort{Name: n.Content[i].Value, PortSpec: p})
	}
	*ps = out
	return nil
}

// Testbench describes how the device is instantiated and measured.
type Testbench struct {
	Temperature          float64               `yaml:"temperature"`
	PreModuleDeclaration string                `yaml:"pre_module_declaration"`
	Code                 string                `yaml:"tb_code"`
	Supplement           string                `yaml:"tb_supplement"`
	InitialCondition     InitialCondition      `yaml:"initial_condition"`
	Wire                 map[string]StringList `yaml:"wire"`
	Instance             map[string]Instance   `yaml:"instance" validate:"dive"`
	Response             map[string]Response   `yaml:"response" validate:"dive"`
	PostProcessor        PostProcessor         `yaml:"post-processor"`
}

// InitialCondition lists forced node values per model; Common applies to both.
type InitialCondition struct {
	Golden  map[string]string `yaml:"golden"`
	Revised map[string]string `yaml:"revised"`
	Common  map[string]string `yaml:",inline"`
}

// For returns the initial conditions of the golden or revised model.
func (ic InitialCondition) For(golden bool) map[string]string {
	src := ic.Revised
	if golden {
		src = ic.Golden
	}
	out := make(map[string]string, len(src)+len(ic.Common))
	for k, v := range src {
		out[k] = v
	}
	for k, v := range ic.Common {
		out[k] = v
	}
	return out
}

// Instance is one module instantiated in the testbench.
type Instance struct {
	Cell       string     `yaml:"cellname" validate:"required"`
	Parameters StringList `yaml:"parameter_map"`
	Ports      StringList `yaml:"port_map" validate:"required"`
}

// Response samples Signal at time At into meas_<name>.txt.
type Response struct {
	Signal string `yaml:"signal" validate:"required"`
	At     string `yaml:"at" validate:"required,engrtime"`
}

// PostProcessor copies Scripts into each run directory and runs Command there.
type PostProcessor struct {
	Scripts StringList `yaml:"script_files"`
	Command string     `yaml:"command"`
}

// Enabled is true when both a script list and a command are configured.
func (p PostProcessor) Enabled() bool { return len(p.Scripts) > 0 && p.Command != "" }

func defaultTestSpec() TestSpec {
	return TestSpec{
		Option: Option{
			MaxSample:            8,
			MinAnalogLevel:       1,
			Method:               "basic",
			PValueThreshold:      0.05,
			ConfidenceLevel:      0.95,
			Basis:                "polynomial",
			Order:                1,
			Interact:             true,
			SensitivityThreshold: 5.0,
		},
		Testbench: Testbench{Temperature: 27},
	}
}

// LoadTestConfig reads, validates and expands a test configuration file.
// Tests whose analog inputs declare regions are split into sub-tests.
func LoadTestConfig(path string) (*TestConfig, error) {
	names, sections, err := readSections(path)
	if err != nil {
		return nil, err
	}
	cfg := &TestConfig{}
	for _, name := range names {
		spec := defaultTestSpec()
		if err := sections[name].Decode(&spec); err != nil {
			return nil, errors.ConfigInvalidf("test %s: %v", name, err)
		}
		spec.Name = name
		if err := spec.validate(); err != nil {
			return nil, err
		}
		for _, sub := range expandRegions(&spec) {
			if _, err := sub.PortHandler(); err != nil {
				return nil, errors.ConfigInvalidf("test %s: %v", sub.Name, err)
			}
			cfg.Tests = append(cfg.Tests, sub)
		}
	}
	if len(cfg.Tests) == 0 {
		return nil, errors.ConfigInvalidf("%s: no tests defined", path)
	}
	return cfg, nil
}

func (t *TestSpec) validate() error {
	if err := validate.Struct(t); err != nil {
		return errors.ConfigInvalidf("test %s: %v", t.Name, err)
	}
	for _, p := range t.Ports {
		kind, _ := port.ParseKind(p.Type)
		if kind.IsDigital() && p.BitWidth < 1 {
			return errors.ConfigInvalidf("test %s: port %s needs bit_width", t.Name, p.Name)
		}
	}
	for name := range t.Testbench.Response {
		if !t.hasPort(name) {
			return errors.ConfigInvalidf("test %s: response %s is not a declared port", t.Name, name)
		}
	}
	return nil
}

func (t *TestSpec) hasPort(name string) bool {
	for _, p := range t.Ports {
		if p.Name == name {
			return true
		}
	}
	return false
}

// PortHandler builds the port registry in configuration order.
func (t *TestSpec) PortHandler() (*port.Handler, error) {
	h := port.NewHandler()
	for _, p := range t.Ports {
		built, err := p.Build(p.Name)
		if err != nil {
			return nil, err
		}
		h.Add(built)
	}
	return h, nil
}

// Build converts the configuration of one port into a domain port.
func (p PortSpec) Build(name string) (*port.Port, error) {
	kind, err := port.ParseKind(p.Type)
	if err != nil {
		return nil, err
	}
	enc, err := port.ParseEncoding(p.Encode)
	if err != nil {
		return nil, err
	}
	c := port.Constraint{
		LowerBound: p.LowerBound,
		UpperBound: p.UpperBound,
		Pinned:     p.Pinned,
		BitWidth:   p.BitWidth,
		Encoding:   enc,
	}
	if kind == port.AnalogOutput {
		c.AbsTol, c.GainTol = p.AbsTol, p.GainTol
		if c.AbsTol == nil {
			c.AbsTol = port.Float(DefaultAbsTol)
		}
		if c.GainTol == nil {
			c.GainTol = port.Float(DefaultGainTol)
		}
	}
	if strings.TrimSpace(p.DefaultValue) != "" {
		if kind.IsAnalog() {
			c.DefaultValue, err = ParseEngr(p.DefaultValue)
		} else {
			var code int
			code, err = ParseCode(p.DefaultValue)
			c.DefaultValue = float64(code)
		}
		if err != nil {
			return nil, fmt.Errorf("port %s default_value: %w", name, err)
		}
	}
	if kind.IsDigital() {
		for _, s := range p.Prohibited {
			code, err := ParseCode(s)
			if err != nil {
				return nil, fmt.Errorf("port %s prohibited: %w", name, err)
			}
			c.Prohibited = append(c.Prohibited, code)
		}
	}
	return port.New(name, kind, p.Description, c)
}

// ParseCode reads a digital code written as decimal, 0x/0b prefixed or as
// a b-prefixed binary string such as b0110.
func ParseCode(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) > 1 && s[0] == 'b' {
		v, err := strconv.ParseInt(s[1:], 2, 64)
		return int(v), err
	}
	v, err := strconv.ParseInt(s, 0, 64)
	return int(v), err
}

// expandRegions splits a test over the regions of its unpinned analog
// inputs. Other ports with regions take their bounds from the first two
// region edges.
func expandRegions(t *TestSpec) []*TestSpec {
	type split struct {
		idx   int
		edges []float64
	}
	var multi []split
	fixed := make(map[int][]float64)
	for i, p := range t.Ports {
		if len(p.Regions) == 0 {
			continue
		}
		edges := append([]float64(nil), p.Regions...)
		sort.Float64s(edges)
		if p.Type == string(port.AnalogInput) && !p.Pinned {
			multi = append(multi, split{idx: i, edges: edges})
		} else {
			fixed[i] = edges
		}
	}
	if len(multi) == 0 && len(fixed) == 0 {
		return []*TestSpec{t}
	}
	sort.Slice(multi, func(a, b int) bool { return t.Ports[multi[a].idx].Name < t.Ports[multi[b].idx].Name })

	// cartesian product of region indices
	combos := [][]int{{}}
	for _, m := range multi {
		var next [][]int
		for _, c := range combos {
			for r := 0; r < len(m.edges)-1; r++ {
				next = append(next, append(append([]int(nil), c...), r))
			}
		}
		combos = next
	}

	out := make([]*TestSpec, 0, len(combos))
	for n, combo := range combos {
		sub := *t
		sub.Ports = append(PortSpecs(nil), t.Ports...)
		for k, m := range multi {
			p := &sub.Ports[m.idx]
			p.LowerBound = port.Float(m.edges[combo[k]])
			p.UpperBound = port.Float(m.edges[combo[k]+1])
			p.Regions = nil
		}
		for i, edges := range fixed {
			p := &sub.Ports[i]
			p.LowerBound = port.Float(edges[0])
			p.UpperBound = port.Float(edges[1])
			p.Regions = nil
		}
		if len(combos) > 1 {
			sub.Name = fmt.Sprintf("%s_%d", t.Name, n)
		}
		out = append(out, &sub)
	}
	return out
}
