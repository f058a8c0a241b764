package regression

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// ExportRows returns the loaded samples as a header (predictors then
// responses, each sorted) and one row per sample.
func (m *Model) ExportRows() ([]string, [][]float64) {
	header := append(sortedKeys(m.predictors), sortedKeys(m.responses)...)
	rows := make([][]float64, m.nrows)
	for i := range rows {
		row := make([]float64, len(header))
		for j, h := range header {
			if col, ok := m.predictors[h]; ok {
				row[j] = col[i]
			} else {
				row[j] = m.responses[h][i]
			}
		}
		rows[i] = row
	}
	return header, rows
}

// WriteCSV dumps the regression samples with a leading index column.
func (m *Model) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	header, rows := m.ExportRows()
	w := csv.NewWriter(f)
	if err := w.Write(append([]string{""}, header...)); err != nil {
		return err
	}
	for i, row := range rows {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, strconv.Itoa(i))
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Summary renders the coefficient table of a response.
func (m *Model) Summary(response string) string {
	f, err := m.Fit(response)
	if f == nil {
		return fmt.Sprintf("%s: %v\n", response, err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dep. Variable: %s    Samples: %d    Df Residuals: %d\n", response, m.nrows, f.DF)
	if err != nil {
		fmt.Fprintf(&sb, "%s ~ %s: %v\n", response, f.Formula, err)
		return sb.String()
	}
	fmt.Fprintf(&sb, "R-squared: %s    Adj. R-squared: %s\n", fmtStat(f.RSquared), fmtStat(f.AdjRSquared))

	width := len(Intercept)
	for _, t := range f.Terms {
		width = max(width, len(t))
	}
	lo := (1 - m.opt.ConfidenceLevel) / 2
	line := strings.Repeat("=", width+80)
	fmt.Fprintln(&sb, line)
	fmt.Fprintf(&sb, "%-*s %12s %12s %9s %9s %12s %12s\n", width, "", "coef", "std err", "t", "P>|t|",
		fmt.Sprintf("[%.3g", lo), fmt.Sprintf("%.3g]", 1-lo))
	fmt.Fprintln(&sb, strings.Repeat("-", width+80))
	for i, t := range f.Terms {
		mark := ""
		if f.PValue[i] < m.opt.PValueThreshold {
			mark = " *"
		}
		fmt.Fprintf(&sb, "%-*s %12.4g %12.4g %9s %9s %12.4g %12.4g%s\n", width, t,
			f.Coef[i], f.StdErr[i], fmtStat(f.TValue[i]), fmtStat(f.PValue[i]),
			f.ConfInt[i][0], f.ConfInt[i][1], mark)
	}
	fmt.Fprintln(&sb, line)
	return sb.String()
}

func fmtStat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}
