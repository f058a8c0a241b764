package simulation

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"amsprobe/internal/config"
	"amsprobe/internal/vector"
)

// Testbench template. User code is inserted verbatim and bound to each
// vector in a second pass, see Bind.
const testbenchTemplate = `
{{- if .AMS }}
` + "`" + `include "disciplines.vams"
` + "`" + `include "constants.vams"
{{- end }}
{{- range .Includes }}
` + "`" + `include "{{ . }}"
{{- end }}

{{ .PreModule }}

` + "`" + `timescale {{ .Timescale }}
///////////////////////////////////////////////////////////////////////////
// {{ .TestName }} testbench
///////////////////////////////////////////////////////////////////////////
module test;

{{- range .Wires }}
{{ .Kind }} {{ .Net }};
{{- end }}
{{ if .IC }}
initial begin
{{- range .IC }}
  force test.{{ .Name }} = {{ .Value }};
{{- end }}
  #1;
{{- range .IC }}
  release test.{{ .Name }};
{{- end }}
end
{{ end }}
{{ .Code }}

{{- range .Instances }}
{{ . }}
{{- end }}
{{ range .Responses }}
integer fid_{{ .Port }};
initial begin
  fid_{{ .Port }} = $fopen("{{ .File }}");
  #{{ .At }};
  $fstrobe(fid_{{ .Port }}, "%e", {{ .Signal }});
  #1;
  $fclose(fid_{{ .Port }});
end
{{ end }}
{{- if .VCS }}
initial begin
  $vcdpluson(0,test);
  $vcdplusmemon(0,test);
end
{{ end }}
initial #({{ .FinishAt }}) $finish;

endmodule
`

var tbTemplate = template.Must(template.New("testbench").Parse(testbenchTemplate))

type wireDecl struct {
	Kind string
	Net  string
}

type icEntry struct {
	Name  string
	Value string
}

type responseBlock struct {
	Port   string
	File   string
	Signal string
	At     int64
}

type tbParams struct {
	AMS       bool
	VCS       bool
	Includes  []string
	PreModule string
	Timescale string
	TestName  string
	Wires     []wireDecl
	IC        []icEntry
	Code      string
	Instances []string
	Responses []responseBlock
	FinishAt  int64
}

var wireKinds = map[string]map[string]string{
	config.ModelAMS:     {"ams_electrical": "electrical", "ams_wreal": "wreal", "ams_ground": "ground", "logic": "wire"},
	config.ModelVerilog: {"ams_electrical": "real", "ams_wreal": "real", "ams_ground": "", "logic": "wire"},
}

// MeasFile is the file a response is dumped to.
func MeasFile(port string) string { return "meas_" + port + ".txt" }

// TestbenchFile names the unbound testbench of a test and model.
func TestbenchFile(test, model string) string { return fmt.Sprintf("tb_%s_%s.v", test, model) }

// GenerateTestbench renders the vector-independent testbench of spec for one
// simulator setup.
func GenerateTestbench(spec *config.TestSpec, sim config.SimModel) (string, error) {
	tb := spec.Testbench
	p := tbParams{
		AMS:       sim.Model == config.ModelAMS,
		VCS:       sim.Simulator == config.SimVCS,
		Includes:  sim.HDLIncludeFiles,
		PreModule: tb.PreModuleDeclaration,
		Timescale: spec.Simulation.Timescale(),
		TestName:  spec.Name,
		Code:      tb.Supplement + tb.Code,
	}
	finish, err := spec.Simulation.Units()
	if err != nil {
		return "", fmt.Errorf("trantime: %w", err)
	}
	p.FinishAt = finish

	kinds := wireKinds[sim.Model]
	for _, k := range sortedKeys(tb.Wire) {
		kind, known := kinds[k]
		if !known {
			kind = "`" + k
		}
		if kind == "" {
			continue
		}
		for _, n := range dedupSorted(tb.Wire[k]) {
			p.Wires = append(p.Wires, wireDecl{Kind: kind, Net: n})
		}
	}

	// AMS models take initial conditions through the analog control file
	if !p.AMS {
		ic := tb.InitialCondition.For(sim.IsGolden)
		for _, k := range sortedKeys(ic) {
			p.IC = append(p.IC, icEntry{Name: k, Value: ic[k]})
		}
	}

	for _, name := range sortedKeys(tb.Instance) {
		inst := tb.Instance[name]
		line := inst.Cell
		if len(inst.Parameters) > 0 {
			line += " #(" + strings.Join(inst.Parameters, ", ") + ")"
		}
		p.Instances = append(p.Instances, fmt.Sprintf("%s %s (%s);", line, name, strings.Join(inst.Ports, ", ")))
	}

	for _, name := range sortedKeys(tb.Response) {
		r := tb.Response[name]
		at, err := config.TimeUnits(r.At, spec.Simulation.TimeUnit)
		if err != nil {
			return "", fmt.Errorf("response %s: %w", name, err)
		}
		p.Responses = append(p.Responses, responseBlock{Port: name, File: MeasFile(name), Signal: r.Signal, At: at})
	}

	var sb strings.Builder
	if err := tbTemplate.Execute(&sb, p); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// BindData is what a bound template sees: the vector under .v plus the
// simulation settings.
func BindData(v vector.Vector, simTime string, temperature float64, ic map[string]string) map[string]any {
	return map[string]any{
		"v":           v,
		"sim_time":    simTime,
		"temperature": temperature,
		"ic":          ic,
	}
}

// Bind renders a template with data. Unknown keys are an error so that a
// misspelt port fails loudly.
func Bind(name, raw string, data map[string]any) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("bind %s: %w", name, err)
	}
	return sb.String(), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
