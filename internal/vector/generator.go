package vector

import (
	"math"
	"math/rand"
	"time"

	"amsprobe/domain/port"
	"amsprobe/internal"
	"amsprobe/internal/sampling"
)

// Options controls the sampling budget of a test.
type Options struct {
	// MinDepth is the minimum number of levels per analog variable.
	MinDepth int
	// MaxSample is the requested number of analog vectors per mode; it is
	// raised when the regression needs more.
	MaxSample int
	Order     int
	Interact  bool
	// Seed fixes the random draws; zero picks a time-based seed.
	Seed int64
}

// DefaultOptions mirrors the defaults of the test configuration.
func DefaultOptions() Options {
	return Options{MinDepth: 3, MaxSample: 1, Order: 1}
}

// Generator produces the digital-mode and analog stimulus of one test.
type Generator struct {
	ph     *port.Handler
	opt    Options
	rng    *rand.Rand
	logger *internal.Logger

	unpinAnalog    []*port.Port
	pinAnalog      []*port.Port
	unpinQuantized []*port.Port
	pinQuantized   []*port.Port

	depth     int
	maxSample int

	digital *Table
	analog  *Table
}

// NewGenerator sizes the sampling budget for the ports in ph. Call Generate
// or Load to fill the vector tables.
func NewGenerator(ph *port.Handler, opt Options, logger *internal.Logger) *Generator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if opt.Order < 1 {
		opt.Order = 1
	}
	if opt.MinDepth < 2 {
		opt.MinDepth = 2
	}
	seed := opt.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &Generator{
		ph:             ph,
		opt:            opt,
		rng:            rand.New(rand.NewSource(seed)),
		logger:         logger.WithComponent("VectorGenerator"),
		unpinAnalog:    port.Unpinned(ph.PureAnalogInputs()),
		pinAnalog:      port.Pinned(ph.PureAnalogInputs()),
		unpinQuantized: port.Unpinned(ph.QuantizedAnalogs()),
		pinQuantized:   port.Pinned(ph.QuantizedAnalogs()),
	}
	g.sizeBudget()
	return g
}

func (g *Generator) freeVars() int { return len(g.unpinAnalog) + len(g.unpinQuantized) }

func (g *Generator) maxBitWidth() int {
	m := 0
	for _, p := range g.unpinQuantized {
		if p.BitWidth() > m {
			m = p.BitWidth()
		}
	}
	return m
}

// UnitTermCount is 1 + the number of regression terms the full model can
// have, i.e. the fewest vectors that keep the fit well posed.
func (g *Generator) UnitTermCount() int {
	n := len(g.unpinAnalog)
	nh := n * (g.opt.Order - 1)
	nqa := 0
	for _, p := range g.unpinQuantized {
		nqa += p.BitWidth()
	}
	nqaInt := 0
	if len(g.unpinQuantized) > 1 {
		nqaInt = 1
		for _, p := range g.unpinQuantized {
			nqaInt *= p.BitWidth()
		}
	}
	total := 1 + n + nh + nqa
	if g.opt.Interact {
		return total + n*(n-1)/2 + nqa*n + nqaInt
	}
	return total
}

// UnitTermCountOTF is the batch increment used by the on-the-fly check.
func (g *Generator) UnitTermCountOTF() int {
	n := len(g.unpinAnalog) * g.opt.Order
	for _, p := range g.unpinQuantized {
		n += p.BitWidth()
	}
	if n < 4 {
		return 4
	}
	return n
}

func (g *Generator) sizeBudget() {
	g.depth = g.opt.MinDepth
	g.maxSample = g.opt.MaxSample
	if g.maxSample < 1 {
		g.maxSample = 1
	}
	if g.ph.HasDummyAnalogInput() {
		g.maxSample = 1
	}
	if mb := g.maxBitWidth(); g.depth <= mb {
		g.depth = mb + 1
		g.logger.Info("analog grid depth raised to %d to cover the widest quantized port", g.depth)
	}
	g.logger.Info("requested max_sample: %d", g.maxSample)
	if g.ph.HasDummyAnalogInput() {
		return
	}
	if floor := max(8, 2*g.UnitTermCount()); g.maxSample < floor {
		g.maxSample = floor
		g.logger.Info("max_sample raised to %d (twice the number of regression terms)", floor)
	}

	var oa sampling.OrthogonalArray
	na := g.freeVars()
	rows0, ok := oa.Exists(na, g.depth)
	if !ok {
		return
	}
	if rows0 > g.maxSample {
		g.maxSample = rows0
	} else {
		limit := sampling.MaxDepth
		if na == 1 {
			limit = sampling.MaxSingleVarDepth
		}
		best := g.depth
		for d := g.depth; d <= limit; d++ {
			rows, ok := oa.Exists(na, d)
			if !ok {
				break
			}
			best = d
			if rows >= g.maxSample {
				break
			}
		}
		g.depth = best
		if rows, _ := oa.Exists(na, g.depth); rows > g.maxSample {
			g.maxSample = rows
		}
	}
	rows, _ := oa.Exists(na, g.depth)
	g.logger.Info("max_sample: %d, analog grid depth: %d, orthogonal array rows: %d", g.maxSample, g.depth, rows)
}

// Depth is the number of levels per analog variable.
func (g *Generator) Depth() int { return g.depth }

// MaxSample is the number of analog vectors per mode.
func (g *Generator) MaxSample() int { return g.maxSample }

// Generate builds the digital cross-product and the scaled analog vectors.
func (g *Generator) Generate() {
	g.digital = g.generateDigital()
	g.analog = g.generateAnalog()
	g.logger.Info("%d digital mode(s), %d analog vector(s) per mode", g.digital.Len(), g.analog.Len())
}

// Digital returns the digital-mode table (one row per mode).
func (g *Generator) Digital() *Table { return g.digital }

// Analog returns the analog stimulus table (one row per run).
func (g *Generator) Analog() *Table { return g.analog }

// DigitalModes returns every mode as a vector.
func (g *Generator) DigitalModes() []Vector {
	if g.digital == nil {
		return nil
	}
	return g.digital.Rows()
}

// AnalogVectors returns every analog vector.
func (g *Generator) AnalogVectors() []Vector {
	if g.analog == nil {
		return nil
	}
	return g.analog.Rows()
}

// generateDigital enumerates the Cartesian product of every mode port's
// allowed codes; the last port varies fastest.
func (g *Generator) generateDigital() *Table {
	modes := g.ph.DigitalModes()
	rows := []Vector{{}}
	for _, p := range modes {
		next := make([]Vector, 0, len(rows)*len(p.Allowed()))
		for _, r := range rows {
			for _, code := range p.Allowed() {
				next = append(next, r.Merge(Vector{p.Name(): float64(code)}))
			}
		}
		rows = next
	}
	names := make([]string, len(modes))
	for i, p := range modes {
		names[i] = p.Name()
	}
	return TableFromRows(names, rows)
}

func (g *Generator) generateAnalog() *Table {
	s := sampling.NewSampler(g.rng, g.logger)
	grid := s.Sample(g.freeVars(), g.depth, g.maxSample)
	n := len(grid.Rows)
	g.maxSample = n

	t := NewTable()
	for j, p := range g.unpinAnalog {
		raw := make([]float64, n)
		for i, r := range grid.Rows {
			raw[i] = float64(r[j])
		}
		t.Set(p.Name(), scaleColumn(raw, p))
	}
	for _, p := range g.unpinQuantized {
		t.Set(p.Name(), g.quantizedColumn(p, n))
	}
	for _, p := range append(append([]*port.Port(nil), g.pinAnalog...), g.pinQuantized...) {
		v, _ := p.PinnedValue()
		col := make([]float64, n)
		for i := range col {
			col[i] = v
		}
		t.Set(p.Name(), col)
	}
	return t
}

// scaleColumn maps raw levels linearly onto [lb, ub].
func scaleColumn(raw []float64, p *port.Port) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range raw {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	ptp := hi - lo
	out := make([]float64, len(raw))
	for i, v := range raw {
		if ptp == 0 {
			out[i] = p.LowerBound()
			continue
		}
		x := (v-lo)/ptp*p.PeakToPeak() + p.LowerBound()
		out[i] = math.Min(math.Max(x, p.LowerBound()), p.UpperBound())
	}
	return out
}

// quantizedColumn picks n codes so that every bit toggles when the allowed
// set permits it: thermometer codes first, then one code per stuck bit, then
// random allowed codes, all shuffled.
func (g *Generator) quantizedColumn(p *port.Port, n int) []float64 {
	allowed := p.Allowed()
	allowedSet := make(map[int]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}
	var codes []int
	for _, c := range port.Thermometer.Codes(p.BitWidth()) {
		if allowedSet[c] {
			codes = append(codes, c)
		}
	}
	g.logger.Debug("base codes of %s: %v", p.Name(), codes)

	for b := 0; b < p.BitWidth(); b++ {
		has0, has1 := bitSeen(codes, b)
		for _, c := range allowed {
			if has0 && has1 {
				break
			}
			if bit := (c >> b) & 1; (bit == 0 && !has0) || (bit == 1 && !has1) {
				codes = append(codes, c)
				has0, has1 = bitSeen(codes, b)
			}
		}
		if !(has0 && has1) {
			g.logger.Warn("bit %d of %s cannot toggle within its allowed codes", b, p.Name())
		}
	}

	if remain := n - len(codes); remain > 0 {
		for _, k := range g.rng.Perm(remain) {
			codes = append(codes, allowed[k%len(allowed)])
		}
	} else if remain < 0 {
		g.logger.Warn("%s has %d toggle codes but only %d vectors are generated", p.Name(), len(codes), n)
		codes = coveringCodes(codes, p.BitWidth(), n)
	}
	g.rng.Shuffle(len(codes), func(i, j int) { codes[i], codes[j] = codes[j], codes[i] })

	out := make([]float64, len(codes))
	for i, c := range codes {
		out[i] = float64(c)
	}
	return out
}

// coveringCodes picks n of codes, taking first the code that adds the most
// unseen (bit, value) pairs, so truncation keeps every toggle it can.
func coveringCodes(codes []int, bw, n int) []int {
	rest := append([]int(nil), codes...)
	seen := make([][2]bool, bw)
	out := make([]int, 0, n)
	for len(out) < n && len(rest) > 0 {
		best, bestGain := 0, -1
		for i, c := range rest {
			gain := 0
			for b := 0; b < bw; b++ {
				if !seen[b][(c>>b)&1] {
					gain++
				}
			}
			if gain > bestGain {
				best, bestGain = i, gain
			}
		}
		c := rest[best]
		for b := 0; b < bw; b++ {
			seen[b][(c>>b)&1] = true
		}
		out = append(out, c)
		rest = append(rest[:best], rest[best+1:]...)
	}
	return out
}

func bitSeen(codes []int, b int) (has0, has1 bool) {
	for _, c := range codes {
		if (c>>b)&1 == 1 {
			has1 = true
		} else {
			has0 = true
		}
	}
	return has0, has1
}
