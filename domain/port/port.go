package port

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"amsprobe/domain/core"
)

// Kind is the closed set of port variants a test can declare.
type Kind string

const (
	AnalogInput     Kind = "analoginput"
	AnalogOutput    Kind = "analogoutput"
	QuantizedAnalog Kind = "quantizedanalog"
	DigitalMode     Kind = "digitalmode"
	DigitalOutput   Kind = "digitaloutput"
)

// ParseKind accepts the configuration spelling of a port type.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case AnalogInput, AnalogOutput, QuantizedAnalog, DigitalMode, DigitalOutput:
		return k, nil
	default:
		return "", fmt.Errorf("unknown port type %q", s)
	}
}

// Label is the human readable name used in reports.
func (k Kind) Label() string {
	switch k {
	case AnalogInput:
		return "analog input"
	case AnalogOutput:
		return "analog output"
	case QuantizedAnalog:
		return "quantized analog input"
	case DigitalMode:
		return "digital input"
	case DigitalOutput:
		return "digital output"
	}
	return string(k)
}

// Direction of a port as seen from the device under test.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// Direction derives the pin direction from the kind.
func (k Kind) Direction() Direction {
	if k == AnalogOutput || k == DigitalOutput {
		return Output
	}
	return Input
}

// IsAnalog is true for real-valued ports.
func (k Kind) IsAnalog() bool { return k == AnalogInput || k == AnalogOutput }

// IsDigital is true for code-valued ports, including quantized analog inputs.
func (k Kind) IsDigital() bool { return !k.IsAnalog() }

// Encoding restricts the codes a digital port may take.
type Encoding string

const (
	Binary      Encoding = "binary"
	Thermometer Encoding = "thermometer"
	Gray        Encoding = "gray"
	OneHot      Encoding = "onehot"
)

// ParseEncoding defaults to binary for an empty string.
func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return Binary, nil
	case Binary, Thermometer, Gray, OneHot:
		return e, nil
	default:
		return "", fmt.Errorf("unknown encoding %q", s)
	}
}

// Codes returns every code of the given bit width that is legal under e.
func (e Encoding) Codes(bitWidth int) []int {
	switch e {
	case Thermometer:
		out := make([]int, 0, bitWidth+1)
		for v := 0; v <= bitWidth; v++ {
			out = append(out, (1<<v)-1)
		}
		return out
	case OneHot:
		out := make([]int, 0, bitWidth)
		for v := 0; v < bitWidth; v++ {
			out = append(out, 1<<v)
		}
		return out
	default:
		// every n-bit pattern is a valid binary or gray code
		out := make([]int, 1<<bitWidth)
		for i := range out {
			out[i] = i
		}
		return out
	}
}

// MaxBitWidth bounds digital ports so the full code range stays enumerable.
const MaxBitWidth = 20

// Constraint carries the per-port settings from the test configuration.
// Nil pointers fall back to the kind's defaults.
type Constraint struct {
	LowerBound   *float64
	UpperBound   *float64
	Pinned       bool
	DefaultValue float64
	AbsTol       *float64
	GainTol      *float64
	BitWidth     int
	Encoding     Encoding
	Prohibited   []int
}

func (c Constraint) clone() Constraint {
	out := c
	if c.LowerBound != nil {
		v := *c.LowerBound
		out.LowerBound = &v
	}
	if c.UpperBound != nil {
		v := *c.UpperBound
		out.UpperBound = &v
	}
	if c.AbsTol != nil {
		v := *c.AbsTol
		out.AbsTol = &v
	}
	if c.GainTol != nil {
		v := *c.GainTol
		out.GainTol = &v
	}
	out.Prohibited = append([]int(nil), c.Prohibited...)
	return out
}

// Float is a convenience for filling optional constraint fields.
func Float(v float64) *float64 { return &v }

// Port is one named pin of the device under test. It is immutable once built.
type Port struct {
	name        string
	kind        Kind
	description string
	c           Constraint
	allowed     []int
}

// New is the single constructor for every port kind.
func New(name string, kind Kind, description string, c Constraint) (*Port, error) {
	if strings.TrimSpace(name) == "" {
		return nil, core.NewPortError("<unnamed>", "empty port name")
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, core.NewPortError(name, err.Error())
	}
	p := &Port{name: name, kind: kind, description: description, c: c.clone()}
	if kind.IsAnalog() {
		if err := p.checkAnalog(); err != nil {
			return nil, err
		}
		return p, nil
	}
	if err := p.checkDigital(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Port) checkAnalog() error {
	lb, ub := p.LowerBound(), p.UpperBound()
	if lb > ub {
		return core.NewPortError(p.name, fmt.Sprintf("lower bound %g exceeds upper bound %g", lb, ub))
	}
	if p.kind == AnalogInput && !p.c.Pinned && (math.IsInf(lb, 0) || math.IsInf(ub, 0)) {
		return core.NewPortError(p.name, "unpinned analog input needs finite bounds")
	}
	if p.c.Pinned && !p.IsValid(p.c.DefaultValue) {
		return core.NewPortError(p.name, fmt.Sprintf("pinned value %g is out of bounds", p.c.DefaultValue))
	}
	if p.GainTol() < 0 {
		return core.NewPortError(p.name, "negative gain tolerance")
	}
	return nil
}

func (p *Port) checkDigital() error {
	if p.c.BitWidth == 0 {
		p.c.BitWidth = 1
	}
	if p.c.BitWidth < 1 || p.c.BitWidth > MaxBitWidth {
		return core.NewPortError(p.name, fmt.Sprintf("bit width %d out of range [1,%d]", p.c.BitWidth, MaxBitWidth))
	}
	if p.c.Encoding == "" {
		p.c.Encoding = Binary
	}
	if p.c.Pinned {
		v := p.c.DefaultValue
		if v != math.Trunc(v) || v < 0 || int(v) >= 1<<p.c.BitWidth {
			return core.NewPortError(p.name, fmt.Sprintf("pinned code %g does not fit %d bits", v, p.c.BitWidth))
		}
		p.allowed = []int{int(v)}
		return nil
	}
	prohibited := make(map[int]bool, len(p.c.Prohibited))
	for _, v := range p.c.Prohibited {
		prohibited[v] = true
	}
	for _, v := range p.c.Encoding.Codes(p.c.BitWidth) {
		if !prohibited[v] {
			p.allowed = append(p.allowed, v)
		}
	}
	if len(p.allowed) == 0 {
		return fmt.Errorf("%w: %s", core.ErrNoAllowedCode, p.name)
	}
	sort.Ints(p.allowed)
	return nil
}

func (p *Port) Name() string            { return p.name }
func (p *Port) Kind() Kind              { return p.kind }
func (p *Port) Description() string     { return p.description }
func (p *Port) Direction() Direction    { return p.kind.Direction() }
func (p *Port) IsPinned() bool          { return p.c.Pinned }
func (p *Port) Constraint() Constraint  { return p.c.clone() }
func (p *Port) BitWidth() int           { return p.c.BitWidth }
func (p *Port) Encoding() Encoding      { return p.c.Encoding }
func (p *Port) Prohibited() []int       { return append([]int(nil), p.c.Prohibited...) }
func (p *Port) IsQuantized() bool       { return p.kind == QuantizedAnalog }
func (p *Port) IsDigitalMode() bool     { return p.kind == DigitalMode }
func (p *Port) IsAnalogOutput() bool    { return p.kind == AnalogOutput }
func (p *Port) IsPureAnalogInput() bool { return p.kind == AnalogInput }

// PinnedValue is the fixed value of a pinned port.
func (p *Port) PinnedValue() (float64, bool) {
	if !p.c.Pinned {
		return 0, false
	}
	return p.c.DefaultValue, true
}

// LowerBound defaults to -Inf.
func (p *Port) LowerBound() float64 {
	if p.c.LowerBound == nil {
		return math.Inf(-1)
	}
	return *p.c.LowerBound
}

// UpperBound defaults to +Inf.
func (p *Port) UpperBound() float64 {
	if p.c.UpperBound == nil {
		return math.Inf(1)
	}
	return *p.c.UpperBound
}

// PeakToPeak is ub-lb.
func (p *Port) PeakToPeak() float64 { return p.UpperBound() - p.LowerBound() }

// Scale is |ub-lb|, used to weight gains in abstol pruning.
func (p *Port) Scale() float64 { return math.Abs(p.PeakToPeak()) }

// AbsTol is the residual tolerance of an analog output, +Inf when unset.
func (p *Port) AbsTol() float64 {
	if p.c.AbsTol == nil {
		return math.Inf(1)
	}
	return *p.c.AbsTol
}

// GainTol is the gain error tolerance in percent, 0 when unset.
func (p *Port) GainTol() float64 {
	if p.c.GainTol == nil {
		return 0
	}
	return *p.c.GainTol
}

// Allowed returns the legal codes of a digital port in ascending order.
func (p *Port) Allowed() []int {
	return append([]int(nil), p.allowed...)
}

// IsValid checks v against the bounds (analog) or the allowed codes (digital).
func (p *Port) IsValid(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if p.kind.IsAnalog() {
		return p.LowerBound() <= v && v <= p.UpperBound()
	}
	if v != math.Trunc(v) {
		return false
	}
	for _, a := range p.allowed {
		if float64(a) == v {
			return true
		}
	}
	return false
}

// String renders the port for debug logs.
func (p *Port) String() string {
	if p.kind.IsAnalog() {
		s := fmt.Sprintf("%s(%s) [%g, %g]", p.name, p.kind, p.LowerBound(), p.UpperBound())
		if p.kind == AnalogOutput {
			s += fmt.Sprintf(" abstol=%g gaintol=%g%%", p.AbsTol(), p.GainTol())
		}
		if v, ok := p.PinnedValue(); ok {
			s += fmt.Sprintf(" pinned=%g", v)
		}
		return s
	}
	s := fmt.Sprintf("%s(%s) %d-bit %s allowed=%v", p.name, p.kind, p.c.BitWidth, p.c.Encoding, p.allowed)
	if v, ok := p.PinnedValue(); ok {
		s += fmt.Sprintf(" pinned=%d", int(v))
	}
	return s
}

// SingleBitName names bit i of a multi-bit port, LSB first.
func SingleBitName(name string, bit int) string {
	return fmt.Sprintf("%s_%d", name, bit)
}

var bitSuffix = regexp.MustCompile(`_\d+$`)

// BaseName strips a trailing _<digits> bit suffix.
func BaseName(term string) string {
	return bitSuffix.ReplaceAllString(term, "")
}

// SplitBitName splits "x_3" into ("x", 3, true).
func SplitBitName(term string) (string, int, bool) {
	loc := bitSuffix.FindStringIndex(term)
	if loc == nil {
		return term, 0, false
	}
	var bit int
	if _, err := fmt.Sscanf(term[loc[0]+1:], "%d", &bit); err != nil {
		return term, 0, false
	}
	return term[:loc[0]], bit, true
}
