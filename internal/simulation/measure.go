package simulation

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"amsprobe/domain/core"
	"amsprobe/domain/port"
)

// ReadMeasurement loads meas_<port>.txt for every output. A file holding
// several values (a sweep) contributes its first one. ok is false when any
// file is missing or unparsable; the values read so far are still returned.
func ReadMeasurement(dir string, outputs []string) (map[string]float64, bool, error) {
	meas := make(map[string]float64, len(outputs))
	for _, p := range outputs {
		body, err := os.ReadFile(filepath.Join(dir, MeasFile(p)))
		if err != nil {
			return meas, false, fmt.Errorf("%w: %v", core.ErrMeasurement, err)
		}
		fields := strings.Fields(string(body))
		if len(fields) == 0 {
			return meas, false, fmt.Errorf("%w: %s is empty", core.ErrMeasurement, MeasFile(p))
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return meas, false, fmt.Errorf("%w: %s: %v", core.ErrMeasurement, MeasFile(p), err)
		}
		meas[p] = v
	}
	return meas, true, nil
}

// WriteMeasurement writes one meas_<port>.txt per entry.
func WriteMeasurement(dir string, meas map[string]float64) error {
	for p, v := range meas {
		if err := os.WriteFile(filepath.Join(dir, MeasFile(p)), []byte(strconv.FormatFloat(v, 'e', -1, 64)+"\n"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// outOfRange lists the outputs whose value violates the port bounds.
func outOfRange(meas map[string]float64, ph *port.Handler) []string {
	var bad []string
	for _, name := range sortedKeys(meas) {
		if p, ok := ph.Get(name); ok && !p.IsValid(meas[name]) {
			bad = append(bad, name)
		}
	}
	return bad
}
