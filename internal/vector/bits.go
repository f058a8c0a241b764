package vector

import (
	"fmt"
	"math/bits"
	"strings"

	"amsprobe/domain/port"
)

// ToBin renders code as a b-prefixed, MSB-first binary string of width bw.
func ToBin(code, bw int) string {
	var sb strings.Builder
	sb.WriteByte('b')
	for i := bw - 1; i >= 0; i-- {
		if (code>>i)&1 == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// FromBin parses a binary string, with or without the b prefix.
func FromBin(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "b")
	if s == "" {
		return 0, fmt.Errorf("empty binary string")
	}
	v := 0
	for _, c := range s {
		switch c {
		case '0':
			v <<= 1
		case '1':
			v = v<<1 | 1
		default:
			return 0, fmt.Errorf("invalid binary digit %q in %q", c, s)
		}
	}
	return v, nil
}

// ThermometerValue is the number of ones in code.
func ThermometerValue(code int) int {
	return bits.OnesCount(uint(code))
}

// RemovePinned drops the columns of pinned ports.
func RemovePinned(t *Table, ph *port.Handler) *Table {
	var pinned []string
	for _, n := range t.Names() {
		if p, ok := ph.Get(n); ok && p.IsPinned() {
			pinned = append(pinned, n)
		}
	}
	return t.Without(pinned...)
}

// ExpandQuantized replaces every unpinned quantized analog column with one
// 0/1 column per bit named <port>_<bit>, LSB first.
func ExpandQuantized(t *Table, ph *port.Handler) *Table {
	out := NewTable()
	for _, n := range t.Names() {
		col, _ := t.Column(n)
		p, ok := ph.Get(n)
		if !ok || !p.IsQuantized() || p.IsPinned() {
			out.Set(n, col)
			continue
		}
		bw := p.BitWidth()
		for b := 0; b < bw; b++ {
			bitCol := make([]float64, len(col))
			for i, v := range col {
				bitCol[i] = float64((int(v) >> b) & 1)
			}
			out.Set(port.SingleBitName(n, b), bitCol)
		}
	}
	return out
}

// Effective prepares stimulus columns for regression: pinned inputs are
// removed and quantized inputs are split into bits.
func Effective(t *Table, ph *port.Handler) *Table {
	return ExpandQuantized(RemovePinned(t, ph), ph)
}

// EncodeThermometer replaces thermometer-coded quantized columns with their
// level (number of ones).
func EncodeThermometer(t *Table, ph *port.Handler) *Table {
	out := NewTable()
	for _, n := range t.Names() {
		col, _ := t.Column(n)
		if p, ok := ph.Get(n); ok && p.IsQuantized() && p.Encoding() == port.Thermometer {
			for i, v := range col {
				col[i] = float64(ThermometerValue(int(v)))
			}
		}
		out.Set(n, col)
	}
	return out
}

// FormatMode renders a digital mode as 'a'=b01, 'b'=b1.
func FormatMode(mode Vector, ph *port.Handler) string {
	parts := make([]string, 0, len(mode))
	for _, k := range mode.Keys() {
		bw := 1
		if p, ok := ph.Get(k); ok {
			bw = p.BitWidth()
		}
		parts = append(parts, fmt.Sprintf("'%s'=%s", k, ToBin(int(mode[k]), bw)))
	}
	return strings.Join(parts, ", ")
}
