package simulation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"amsprobe/domain/core"
	"amsprobe/internal/config"
	"amsprobe/internal/vector"
)

// RunScript is the shell script each backend writes into the run directory.
const RunScript = "run_vlog.sh"

// Job is the per-vector input of a backend.
type Job struct {
	Testbench   string // file name inside the run directory
	Vector      vector.Vector
	Timescale   string
	SimTime     string
	Temperature float64
	IC          map[string]string
}

// Backend turns a job into simulator support files plus a run script.
type Backend interface {
	Name() string
	// Prepare writes support files into dir and returns the run script body.
	Prepare(dir string, job Job) (string, error)
	// Sweep removes simulator scratch files from dir.
	Sweep(dir string)
}

// NewBackend selects the backend for a simulator setup.
func NewBackend(m config.SimModel) (Backend, error) {
	switch {
	case m.Model == config.ModelAMS && m.Simulator == config.SimNCSim:
		return &NCVerilogAMS{ncsim: ncsim{model: m}}, nil
	case m.Model == config.ModelVerilog && m.Simulator == config.SimNCSim:
		return &NCVerilogD{ncsim: ncsim{model: m}}, nil
	case m.Model == config.ModelVerilog && m.Simulator == config.SimVCS:
		return &VCS{model: m}, nil
	}
	return nil, fmt.Errorf("%w: %s cannot simulate a %s model", core.ErrUnsupportedTool, strings.ToUpper(m.Simulator), strings.ToUpper(m.Model))
}

func hdlArgs(job Job, m config.SimModel) []string {
	return append([]string{job.Testbench}, m.HDLFiles...)
}

// VCS runs Synopsys VCS on a Verilog model.
type VCS struct {
	model config.SimModel
}

func (b *VCS) Name() string { return "vcs" }

func (b *VCS) Prepare(dir string, job Job) (string, error) {
	args := []string{"nice vcs"}
	args = append(args, hdlArgs(job, b.model)...)
	args = append(args, "-sverilog -top test", "-timescale="+job.Timescale, "-debug_pp", b.model.SimulatorOption)
	return strings.Join(args, " ") + "\nnice ./simv\n", nil
}

func (b *VCS) Sweep(dir string) {
	removeAll(dir, "simv.daidir", "csrc", "simv", "ucli.key", "vc_hdrs.h", "vcdplus.vpd")
}

const hdlTCL = `# probe tcl for ncsimulator
database -open test.shm -into test.shm -default
probe -creat -shm -all -depth all
run
exit
`

type ncsim struct {
	model config.SimModel
}

func (b *ncsim) command(dir string, job Job) ([]string, error) {
	if err := os.WriteFile(filepath.Join(dir, "hdl.tcl"), []byte(hdlTCL), 0o644); err != nil {
		return nil, err
	}
	args := []string{"nice ncverilog"}
	args = append(args, hdlArgs(job, b.model)...)
	args = append(args, "+NCTOP+test", "+NCTIMESCALE+"+job.Timescale, "-CLEAN +NCUPDATE", "+NCINPUT+hdl.tcl", b.model.SimulatorOption)
	return args, nil
}

func (b *ncsim) Sweep(dir string) {
	removeAll(dir, "INCA_libs", "test.shm", "ncverilog.key")
}

// NCVerilogD runs NC-Sim on a (System)Verilog model.
type NCVerilogD struct {
	ncsim
}

func (b *NCVerilogD) Name() string { return "ncverilog" }

func (b *NCVerilogD) Prepare(dir string, job Job) (string, error) {
	args, err := b.command(dir, job)
	if err != nil {
		return "", err
	}
	return strings.Join(append(args, "-SV"), " ") + "\n", nil
}

// NCVerilogAMS runs NC-Sim on a Verilog-AMS model with an analog control file.
type NCVerilogAMS struct {
	ncsim
}

// AnalogControlFile is the bound analog control file in the run directory.
const AnalogControlFile = "analog.scs"

const propsEntry = `cell %s
{
  string prop sourcefile="%s";
  string prop sourcefile_opts="-auto_bus -bus_delim <>";
}
`

func (b *NCVerilogAMS) Name() string { return "ncverilog-ams" }

func (b *NCVerilogAMS) Prepare(dir string, job Job) (string, error) {
	args, err := b.command(dir, job)
	if err != nil {
		return "", err
	}
	if err := b.writeControl(dir, job); err != nil {
		return "", err
	}
	args = append(args, "+NCAMS +DEFINE+AMS", "+NCANALOGCONTROL+"+AnalogControlFile)
	if len(b.model.Circuit) > 0 {
		var sb strings.Builder
		cells := make([]string, 0, len(b.model.Circuit))
		for k := range b.model.Circuit {
			cells = append(cells, k)
		}
		sort.Strings(cells)
		for _, c := range cells {
			fmt.Fprintf(&sb, propsEntry, c, b.model.Circuit[c])
		}
		if err := os.WriteFile(filepath.Join(dir, "props.cfg"), []byte(sb.String()), 0o644); err != nil {
			return "", err
		}
		args = append(args, "+NCPROPSPATH+props.cfg")
	}
	if b.model.AMSConnRules != "" {
		args = append(args, "+amsconnrules+"+b.model.AMSConnRules)
	}
	return strings.Join(args, " ") + "\n", nil
}

// writeControl binds the analog control file with the vector, the .ic deck
// and the simulation settings.
func (b *NCVerilogAMS) writeControl(dir string, job Job) error {
	raw := ""
	if b.model.AMSControlFile != "" {
		body, err := os.ReadFile(b.model.AMSControlFile)
		if err != nil {
			return fmt.Errorf("analog control file: %w", err)
		}
		raw = string(body)
	}
	var deck []string
	for _, k := range sortedKeys(job.IC) {
		deck = append(deck, fmt.Sprintf(".ic(test.%s) = %s", k, job.IC[k]))
	}
	data := BindData(job.Vector, job.SimTime, job.Temperature, job.IC)
	data["initial_condition"] = strings.Join(deck, "\n")
	data["spice_lib"] = b.model.SpiceLib
	out, err := Bind(AnalogControlFile, raw, data)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, AnalogControlFile), []byte(out), 0o644)
}

func (b *NCVerilogAMS) Sweep(dir string) {
	b.ncsim.Sweep(dir)
	removeAll(dir, "analog.raw", "analog.ahdlSimDB", "portmap_files", ".ams_spice_in")
}

func removeAll(dir string, names ...string) {
	for _, n := range names {
		_ = os.RemoveAll(filepath.Join(dir, n))
	}
}
