package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var engrScale = map[byte]float64{
	'a': 1e-18, 'f': 1e-15, 'p': 1e-12, 'n': 1e-9, 'u': 1e-6, 'm': 1e-3,
	'k': 1e3, 'M': 1e6, 'G': 1e9, 'T': 1e12, 'P': 1e15, 'E': 1e18,
}

// ParseEngr parses a number with an optional engineering suffix, e.g. 2.5n.
func ParseEngr(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	scale := 1.0
	if f, ok := engrScale[s[len(s)-1]]; ok {
		scale = f
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid engineering value %q", s)
	}
	return v * scale, nil
}

// ParseEngrTime parses a time such as 10ns or 5fs into seconds.
func ParseEngrTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "s") {
		return 0, fmt.Errorf("time %q must end with s", s)
	}
	return ParseEngr(strings.TrimSuffix(s, "s"))
}

// isTimescale accepts Verilog time units: 1, 10 or 100 followed by a unit.
func isTimescale(s string) bool {
	if _, err := ParseEngrTime(s); err != nil {
		return false
	}
	i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if i <= 0 {
		return false
	}
	if rest := s[i:]; rest != "s" {
		if _, ok := engrScale[rest[0]]; !ok || len(rest) != 2 {
			return false
		}
	}
	switch s[:i] {
	case "1", "10", "100":
		return true
	}
	return false
}

// TimeUnits converts an engineering time to an integer count of unit.
func TimeUnits(t, unit string) (int64, error) {
	v, err := ParseEngrTime(t)
	if err != nil {
		return 0, err
	}
	u, err := ParseEngrTime(unit)
	if err != nil {
		return 0, err
	}
	if u <= 0 {
		return 0, fmt.Errorf("time unit %q must be positive", unit)
	}
	return int64(math.Round(v / u)), nil
}
