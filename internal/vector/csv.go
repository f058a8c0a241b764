package vector

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"amsprobe/domain/core"
	"amsprobe/domain/port"
	"amsprobe/internal/errors"
)

const (
	// FilePrefix starts the names of the stimulus dumps.
	FilePrefix = "vector"
	// MeasPrefix starts the names of the per-mode measurement dumps.
	MeasPrefix = "vector_meas"

	DigitalFile = FilePrefix + "_digital.csv"
	AnalogFile  = FilePrefix + "_analog.csv"
)

// MeasFile names the measurement dump of one mode, e.g. vector_meas_golden_mode_0.csv.
func MeasFile(model string, mode int) string {
	return fmt.Sprintf("%s_%s_mode_%d.csv", MeasPrefix, model, mode)
}

// WriteCSV writes t with a leading unnamed index column. Digital port
// columns are written as b-prefixed binary strings.
func WriteCSV(path string, t *Table, ph *port.Handler) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	names := t.Names()
	if err := w.Write(append([]string{""}, names...)); err != nil {
		return errors.Wrapf(err, "write header of %s", path)
	}
	widths := make([]int, len(names))
	for j, n := range names {
		if p, ok := ph.Get(n); ok && p.Kind().IsDigital() {
			widths[j] = p.BitWidth()
		}
	}
	for i := 0; i < t.Len(); i++ {
		rec := make([]string, 0, len(names)+1)
		rec = append(rec, strconv.Itoa(i))
		row := t.Row(i)
		for j, n := range names {
			if widths[j] > 0 {
				rec = append(rec, ToBin(int(row[n]), widths[j]))
			} else {
				rec = append(rec, strconv.FormatFloat(row[n], 'g', -1, 64))
			}
		}
		if err := w.Write(rec); err != nil {
			return errors.Wrapf(err, "write row %d of %s", i, path)
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV reads a table written by WriteCSV. Columns of digital ports are
// decoded from binary; the unnamed index column is dropped.
func ReadCSV(path string, ph *port.Handler) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if len(records) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("%s is empty", path))
	}
	header := records[0]
	cols := make([][]float64, len(header))
	for _, rec := range records[1:] {
		for j, cell := range rec {
			if j >= len(header) || header[j] == "" {
				continue
			}
			var v float64
			if ph.IsDigital(header[j]) {
				code, err := FromBin(cell)
				if err != nil {
					return nil, errors.Wrapf(err, "%s column %s", path, header[j])
				}
				v = float64(code)
			} else {
				v, err = strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, errors.Wrapf(err, "%s column %s", path, header[j])
				}
			}
			cols[j] = append(cols[j], v)
		}
	}
	t := NewTable()
	for j, n := range header {
		if n == "" {
			continue
		}
		t.Set(n, cols[j])
	}
	return t, nil
}

// Dump writes the digital and analog tables under dir.
func (g *Generator) Dump(dir string) error {
	if g.digital == nil || g.analog == nil {
		return errors.InternalError("vectors have not been generated")
	}
	if err := WriteCSV(filepath.Join(dir, DigitalFile), g.digital, g.ph); err != nil {
		return err
	}
	if err := WriteCSV(filepath.Join(dir, AnalogFile), g.analog, g.ph); err != nil {
		return err
	}
	g.logger.Debug("test vectors written to %s", dir)
	return nil
}

// Load replaces the vector tables with a previous dump from dir, keeping
// only columns that name a port of this test.
func (g *Generator) Load(dir string) error {
	load := func(name string) (*Table, error) {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrap(fmt.Errorf("%w: %s", core.ErrCacheMissing, path), "load cached vectors")
		}
		t, err := ReadCSV(path, g.ph)
		if err != nil {
			return nil, err
		}
		var foreign []string
		for _, n := range t.Names() {
			if _, ok := g.ph.Get(n); !ok {
				foreign = append(foreign, n)
			}
		}
		return t.Without(foreign...), nil
	}
	d, err := load(DigitalFile)
	if err != nil {
		return err
	}
	a, err := load(AnalogFile)
	if err != nil {
		return err
	}
	g.digital, g.analog = d, a
	g.maxSample = a.Len()
	g.logger.Info("loaded %d digital mode(s) and %d analog vector(s) from %s", d.Len(), a.Len(), dir)
	return nil
}
