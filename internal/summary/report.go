// Package summary renders the checking report of a run as Markdown and as
// a standalone HTML page.
package summary

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"amsprobe/domain/port"
	"amsprobe/domain/verdict"
	"amsprobe/internal/checker"
	"amsprobe/internal/errors"
	"amsprobe/internal/regression"
)

// DefaultFile is the report written under the work directory.
const DefaultFile = "report.html"

// Header describes where a run came from.
type Header struct {
	CurrentDir string
	WorkDir    string
	RunDir     string
	TestFile   string
	SimFile    string
	ReportFile string
}

// Mode is the outcome of one digital mode of a test.
type Mode struct {
	Text         string
	Samples      int
	StoppedEarly bool
	// Pin holds the simple suggested models' results, Accuracy the full ones.
	Pin      map[string]checker.Result
	Accuracy map[string]checker.Result
}

// Test is one test section of the report.
type Test struct {
	Name        string
	DUT         string
	Description string
	Ports       []*port.Port
	Modes       []Mode
}

// Report collects everything rendered for a run.
type Report struct {
	Header   Header
	Tests    []Test
	Verdicts []verdict.ModeVerdict
}

// Markdown renders the report. Status words are wrapped in inline HTML so
// the page keeps the verdict colors.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Model Checking Summary\n\n")

	b.WriteString("## List of Tests\n\n")
	for _, t := range r.Tests {
		fmt.Fprintf(&b, "- [%s](#%s)\n", t.Name, anchor(t.Name))
	}
	b.WriteString("\n## Test file information\n\n")
	h := r.Header
	for _, kv := range [][2]string{
		{"Current directory", h.CurrentDir},
		{"Working directory", h.WorkDir},
		{"Simulation run directory", h.RunDir},
		{"Test configuration file", h.TestFile},
		{"Simulation configuration file", h.SimFile},
		{"Report file", h.ReportFile},
	} {
		fmt.Fprintf(&b, "- %s: %s\n", kv[0], kv[1])
	}
	b.WriteString("\n")

	for _, t := range r.Tests {
		writeTest(&b, t)
	}

	b.WriteString("## Summary\n\n")
	rows := checker.SummaryTable(r.Verdicts)
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = []string{fmt.Sprint(row.Index), row.Test, row.Output, row.Mode, status(row.Pin), status(row.Residual)}
	}
	table(&b, checker.SummaryHeader, cells)
	return b.String()
}

func writeTest(b *strings.Builder, t Test) {
	fmt.Fprintf(b, "## Test name: %s {#%s}\n\n", t.Name, anchor(t.Name))

	b.WriteString("### 1. Test information\n\n")
	fmt.Fprintf(b, "- Device-under-Test: %s\n", t.DUT)
	fmt.Fprintf(b, "- Description: %s\n\n", strings.Join(strings.Fields(t.Description), " "))

	b.WriteString("### 2. Port information\n\n")
	var analog, digital [][]string
	ports := append([]*port.Port(nil), t.Ports...)
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name() < ports[j].Name() })
	for _, p := range ports {
		pinned := "-"
		if v, ok := p.PinnedValue(); ok {
			pinned = fmt.Sprintf("%g", v)
		}
		if p.Kind().IsDigital() {
			digital = append(digital, []string{p.Name(), p.Kind().Label(), p.Description(),
				fmt.Sprint(p.BitWidth()), joinInts(p.Prohibited()), string(p.Encoding()), pinned})
			continue
		}
		abstol, gaintol := "-", "-"
		if p.IsAnalogOutput() {
			abstol, gaintol = fmt.Sprintf("%g", p.AbsTol()), fmt.Sprintf("%g", p.GainTol())
		}
		analog = append(analog, []string{p.Name(), p.Kind().Label(), p.Description(),
			abstol, gaintol, fmt.Sprintf("%g", p.UpperBound()), fmt.Sprintf("%g", p.LowerBound()), pinned})
	}
	if len(analog) > 0 {
		b.WriteString("#### Analog port\n\n")
		table(b, []string{"Name", "Port type", "Description", "Absolute Tolerance", "Gain tolerance [%]", "Upper bound", "Lower bound", "Pinned to"}, analog)
	}
	if len(digital) > 0 {
		b.WriteString("#### Digital port\n\n")
		table(b, []string{"Name", "Port type", "Description", "Bit width", "Prohibited code", "Encode", "Pinned to"}, digital)
	}

	b.WriteString("### 3. Checking results for each mode\n\n")
	for _, m := range t.Modes {
		writeMode(b, m)
	}
}

func writeMode(b *strings.Builder, m Mode) {
	text := m.Text
	if text == "" {
		text = "default"
	}
	fmt.Fprintf(b, "#### Configuration mode: %s\n\n", text)
	fmt.Fprintf(b, "Samples simulated: %d", m.Samples)
	if m.StoppedEarly {
		b.WriteString(" (stopped early on a confirmed discrepancy)")
	}
	b.WriteString("\n\n")

	responses := make([]string, 0, len(m.Pin))
	for dv := range m.Pin {
		responses = append(responses, dv)
	}
	sort.Strings(responses)
	for i, dv := range responses {
		pin, acc := m.Pin[dv], m.Accuracy[dv]
		fmt.Fprintf(b, "##### %c. Output response: %s\n\n", 'A'+rune(i%26), dv)

		fmt.Fprintf(b, "a. Pin consistency check: %s\n\n", status(pin.PinStatus))
		gainTable(b, pin.Gain)

		fmt.Fprintf(b, "b. Pin consistency & Model accuracy check: %s\n\n", status(acc.ResidualStatus))
		b.WriteString("Cross model validation, maximum residual\n\n")
		residualTable(b, acc.ResidualMax)
		b.WriteString("Cross model validation, residual standard deviation\n\n")
		residualTable(b, acc.ResidualStd)
		gainTable(b, acc.Gain)
	}
}

func gainTable(b *strings.Builder, rows []checker.GainRow) {
	if len(rows) == 0 {
		b.WriteString("No terms compared.\n\n")
		return
	}
	cells := make([][]string, len(rows))
	for i, g := range rows {
		errText := "N/A"
		if g.Error.Valid {
			errText = checker.FormatGainError(g.Error.Value)
		}
		cells[i] = []string{g.Term, estimate(g.Golden), estimate(g.Revised), colored(errText, g.Status), estimate(g.SensGolden), estimate(g.SensRevised)}
	}
	table(b, []string{"Term", "Golden", "Revised", "Error [%]", "Sensitivity (golden)", "Sensitivity (revised)"}, cells)
}

func residualTable(b *strings.Builder, t [2][2]checker.Cell) {
	row := func(name string, sim int) []string {
		return []string{name, colored(t[sim][checker.ExtGolden].Text, t[sim][checker.ExtGolden].Status), colored(t[sim][checker.ExtRevised].Text, t[sim][checker.ExtRevised].Status)}
	}
	table(b, []string{"Simulated \\ Extracted", "Golden model", "Revised model"}, [][]string{
		row("Golden", checker.SimGolden),
		row("Revised", checker.SimRevised),
	})
}

func estimate(e regression.Estimate) string {
	if !e.Valid {
		return "N/A"
	}
	return checker.Engr(e.Value)
}

func status(s verdict.Status) string {
	return colored(string(s), s)
}

func colored(text string, s verdict.Status) string {
	if s == "" || s == verdict.StatusNormal {
		return text
	}
	return fmt.Sprintf(`<span style="background-color:%s">%s</span>`, s.Color(), text)
}

func table(b *strings.Builder, header []string, rows [][]string) {
	b.WriteString("| " + strings.Join(escape(header), " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	for _, r := range rows {
		b.WriteString("| " + strings.Join(escape(r), " | ") + " |\n")
	}
	b.WriteString("\n")
}

func escape(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return out
}

func anchor(name string) string {
	return "test-" + strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}

func joinInts(v []int) string {
	if len(v) == 0 {
		return "-"
	}
	s := make([]string, len(v))
	for i, x := range v {
		s[i] = fmt.Sprint(x)
	}
	return strings.Join(s, ", ")
}

// HTML renders the Markdown as a complete HTML page.
func (r *Report) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.HeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: "Model Checking Summary",
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(r.Markdown()), p, renderer)
}

// Write saves the HTML page to path and the Markdown source next to it.
func (r *Report) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create report directory for %s", path)
	}
	if err := os.WriteFile(path, r.HTML(), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	md := strings.TrimSuffix(path, filepath.Ext(path)) + ".md"
	if err := os.WriteFile(md, []byte(r.Markdown()), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", md)
	}
	return nil
}
