package checker

import (
	"fmt"
	"sort"
	"strings"

	"amsprobe/domain/verdict"
)

// SummaryHeader names the columns of the cross-test summary.
var SummaryHeader = []string{"Index", "Test", "Output", "Digital mode", "Simple pin consistency check", "Model accuracy check"}

// SummaryRow is one line of the cross-test summary.
type SummaryRow struct {
	Index    int
	Test     string
	Output   string
	Mode     string
	Pin      verdict.Status
	Residual verdict.Status
}

// Cells renders the row with the plain-text status tags.
func (r SummaryRow) Cells() []string {
	return []string{fmt.Sprint(r.Index), r.Test, r.Output, r.Mode, r.Pin.Tag(), r.Residual.Tag()}
}

// SummaryTable orders verdicts by test (first appearance), then output
// name, then mode (first appearance) and numbers the rows.
func SummaryTable(verdicts []verdict.ModeVerdict) []SummaryRow {
	var tests []string
	byTest := make(map[string][]verdict.ModeVerdict)
	for _, v := range verdicts {
		if _, ok := byTest[v.Test]; !ok {
			tests = append(tests, v.Test)
		}
		byTest[v.Test] = append(byTest[v.Test], v)
	}
	var rows []SummaryRow
	for _, t := range tests {
		vs := byTest[t]
		sort.SliceStable(vs, func(i, j int) bool { return vs[i].Response < vs[j].Response })
		for _, v := range vs {
			rows = append(rows, SummaryRow{
				Index:    len(rows),
				Test:     v.Test,
				Output:   v.Response,
				Mode:     v.Mode,
				Pin:      v.Pin,
				Residual: v.Residual,
			})
		}
	}
	return rows
}

// RenderSummary draws rows as a fixed-width text table for the run log.
func RenderSummary(rows []SummaryRow) string {
	width := make([]int, len(SummaryHeader))
	for i, h := range SummaryHeader {
		width[i] = len(h)
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = r.Cells()
		for j, c := range cells[i] {
			width[j] = max(width[j], len(c))
		}
	}
	var sb strings.Builder
	sep := "+"
	for _, w := range width {
		sep += strings.Repeat("-", w+2) + "+"
	}
	line := func(vals []string) {
		sb.WriteString("|")
		for j, v := range vals {
			pad := width[j] - len(v)
			fmt.Fprintf(&sb, " %s%s%s |", strings.Repeat(" ", pad/2), v, strings.Repeat(" ", pad-pad/2))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(sep + "\n")
	line(SummaryHeader)
	sb.WriteString(strings.ReplaceAll(sep, "-", "=") + "\n")
	for _, c := range cells {
		line(c)
		sb.WriteString(sep + "\n")
	}
	return sb.String()
}
