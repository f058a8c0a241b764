package port

import (
	"sort"

	"amsprobe/domain/core"
)

const (
	DummyDigitalMode = "dummy_digitalmode"
	DummyAnalogInput = "dummy_analoginput"
)

// Handler is the ordered set of ports of one test.
type Handler struct {
	ports []*Port
	index map[string]int
}

// NewHandler returns an empty handler.
func NewHandler() *Handler {
	return &Handler{index: make(map[string]int)}
}

// Add inserts p, replacing any port with the same name in place.
func (h *Handler) Add(p *Port) {
	if i, ok := h.index[p.name]; ok {
		h.ports[i] = p
		return
	}
	h.index[p.name] = len(h.ports)
	h.ports = append(h.ports, p)
}

// Remove deletes a port by name and reports whether it existed.
func (h *Handler) Remove(name string) bool {
	i, ok := h.index[name]
	if !ok {
		return false
	}
	h.ports = append(h.ports[:i], h.ports[i+1:]...)
	delete(h.index, name)
	for j := i; j < len(h.ports); j++ {
		h.index[h.ports[j].name] = j
	}
	return true
}

// Copy duplicates src as dst, letting override adjust the constraint first.
func (h *Handler) Copy(src, dst string, override func(*Constraint)) error {
	p, ok := h.Get(src)
	if !ok {
		return core.NewNotFoundError("port", src)
	}
	c := p.Constraint()
	if override != nil {
		override(&c)
	}
	np, err := New(dst, p.kind, p.description, c)
	if err != nil {
		return err
	}
	h.Add(np)
	return nil
}

// Get looks a port up by name.
func (h *Handler) Get(name string) (*Port, bool) {
	i, ok := h.index[name]
	if !ok {
		return nil, false
	}
	return h.ports[i], true
}

// All returns every port in declaration order.
func (h *Handler) All() []*Port {
	return append([]*Port(nil), h.ports...)
}

// Len is the number of ports.
func (h *Handler) Len() int { return len(h.ports) }

// ByKind returns the ports of the given kinds in declaration order.
func (h *Handler) ByKind(kinds ...Kind) []*Port {
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []*Port
	for _, p := range h.ports {
		if want[p.kind] {
			out = append(out, p)
		}
	}
	return out
}

func (h *Handler) PureAnalogInputs() []*Port { return h.ByKind(AnalogInput) }
func (h *Handler) QuantizedAnalogs() []*Port { return h.ByKind(QuantizedAnalog) }
func (h *Handler) DigitalModes() []*Port     { return h.ByKind(DigitalMode) }
func (h *Handler) AnalogOutputs() []*Port    { return h.ByKind(AnalogOutput) }

// AnalogInputs are the pure and quantized analog inputs.
func (h *Handler) AnalogInputs() []*Port { return h.ByKind(AnalogInput, QuantizedAnalog) }

// Digital returns every code-valued port.
func (h *Handler) Digital() []*Port {
	return h.ByKind(QuantizedAnalog, DigitalMode, DigitalOutput)
}

// IsDigital reports whether name is a code-valued port.
func (h *Handler) IsDigital(name string) bool {
	p, ok := h.Get(name)
	return ok && p.kind.IsDigital()
}

// Names lists port names of the given kinds in declaration order.
func (h *Handler) Names(kinds ...Kind) []string {
	ports := h.ByKind(kinds...)
	out := make([]string, len(ports))
	for i, p := range ports {
		out[i] = p.name
	}
	return out
}

// InputNames are the stimulus ports: analog, quantized and mode inputs.
func (h *Handler) InputNames() []string {
	return h.Names(AnalogInput, QuantizedAnalog, DigitalMode)
}

// OutputNames are the measured analog responses, sorted.
func (h *Handler) OutputNames() []string {
	out := h.Names(AnalogOutput)
	sort.Strings(out)
	return out
}

// QuantizedNames are the quantized analog port names.
func (h *Handler) QuantizedNames() []string { return h.Names(QuantizedAnalog) }

// UnpinnedQuantizedNames are the quantized ports that get bit-expanded.
func (h *Handler) UnpinnedQuantizedNames() []string {
	var out []string
	for _, p := range Unpinned(h.QuantizedAnalogs()) {
		out = append(out, p.name)
	}
	return out
}

// Pinned filters ports to the pinned ones.
func Pinned(ports []*Port) []*Port {
	var out []*Port
	for _, p := range ports {
		if p.c.Pinned {
			out = append(out, p)
		}
	}
	return out
}

// Unpinned filters ports to the free ones.
func Unpinned(ports []*Port) []*Port {
	var out []*Port
	for _, p := range ports {
		if !p.c.Pinned {
			out = append(out, p)
		}
	}
	return out
}

// CountUnpinnedAnalogInputs counts free analog and quantized inputs.
func (h *Handler) CountUnpinnedAnalogInputs() int {
	return len(Unpinned(h.AnalogInputs()))
}

// AddDummyDigitalMode adds a pinned one-bit mode port when no mode port exists.
func (h *Handler) AddDummyDigitalMode() bool {
	if len(h.DigitalModes()) > 0 {
		return false
	}
	p, _ := New(DummyDigitalMode, DigitalMode, "Dummy digital mode", Constraint{
		Pinned:   true,
		BitWidth: 1,
		Encoding: Binary,
	})
	h.Add(p)
	return true
}

// AddDummyAnalogInput adds a pinned analog input when no free analog input exists.
func (h *Handler) AddDummyAnalogInput() bool {
	if h.CountUnpinnedAnalogInputs() > 0 {
		return false
	}
	p, _ := New(DummyAnalogInput, AnalogInput, "Dummy analog input", Constraint{
		LowerBound: Float(0),
		UpperBound: Float(1),
		Pinned:     true,
	})
	h.Add(p)
	return true
}

// HasDummyAnalogInput reports whether the dummy analog input is present.
func (h *Handler) HasDummyAnalogInput() bool {
	_, ok := h.Get(DummyAnalogInput)
	return ok
}

// ScaleOf returns the port scale of term, or 1 when term is not a port.
func (h *Handler) ScaleOf(term string) float64 {
	if p, ok := h.Get(term); ok && p.kind.IsAnalog() {
		return p.Scale()
	}
	return 1
}
