package testunit

import (
	"fmt"
	"path/filepath"

	"amsprobe/internal/export"
	"amsprobe/internal/regression"
	"amsprobe/internal/simulation"
	"amsprobe/internal/vector"
)

// RegressionFile names the regression sample dump of one model and mode.
func RegressionFile(model string, mode int) string {
	return fmt.Sprintf("regression_%s_mode_%d_expanded_qanalog.csv", model, mode)
}

// WorkbookFile names the per-mode workbook of regression samples.
func WorkbookFile(mode int) string {
	return fmt.Sprintf("regression_mode_%d.xlsx", mode)
}

// dumpMeasurements writes the applied vectors next to the measured outputs,
// one file per model.
func (u *TestUnit) dumpMeasurements(nth int, vectors []vector.Vector, golden, revised []simulation.Result) error {
	in := vector.TableFromRows(u.ph.InputNames(), vectors)
	for _, m := range []struct {
		name    string
		results []simulation.Result
	}{{"golden", golden}, {"revised", revised}} {
		path := filepath.Join(u.dir, vector.MeasFile(m.name, nth))
		if err := vector.WriteCSV(path, in.Join(measTable(m.results, u.ph.OutputNames())), u.ph); err != nil {
			return err
		}
		u.logger.Debug("%s vectors and measurements written to %s", m.name, path)
	}
	return nil
}

// dumpRegression writes the samples of the fitted full models as CSV and
// as one workbook with a sheet per model.
func (u *TestUnit) dumpRegression(nth int) error {
	wb := export.NewWorkbook()
	for _, m := range []struct {
		name  string
		model *regression.Model
	}{{"golden", u.models.Full.Golden}, {"revised", u.models.Full.Revised}} {
		path := filepath.Join(u.dir, RegressionFile(m.name, nth))
		if err := m.model.WriteCSV(path); err != nil {
			return err
		}
		header, rows := m.model.ExportRows()
		if err := wb.AddSheet(export.Sheet{Name: m.name, Header: header, Rows: rows}); err != nil {
			return err
		}
		u.logger.Debug("%s regression data written to %s", m.name, path)
	}
	return wb.Save(filepath.Join(u.dir, WorkbookFile(nth)))
}
