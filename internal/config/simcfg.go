package config

import (
	"os"

	"amsprobe/internal/errors"
)

// Model languages and simulators accepted in the simulator configuration.
const (
	ModelAMS     = "ams"
	ModelVerilog = "verilog"
	SimNCSim     = "ncsim"
	SimVCS       = "vcs"
)

// SimConfig holds the golden and revised simulator setups.
type SimConfig struct {
	Golden  SimModel
	Revised SimModel
}

// SimModel describes how one model is simulated.
type SimModel struct {
	Model           string            `yaml:"model" validate:"required,oneof=ams verilog"`
	Simulator       string            `yaml:"simulator" validate:"required,oneof=ncsim vcs"`
	SimulatorOption string            `yaml:"simulator_option"`
	HDLFiles        StringList        `yaml:"hdl_files"`
	HDLIncludeFiles StringList        `yaml:"hdl_include_files"`
	Circuit         map[string]string `yaml:"circuit"`
	AMSControlFile  string            `yaml:"ams_control_file"`
	AMSConnRules    string            `yaml:"default_ams_connrules"`
	SpiceLib        string            `yaml:"spice_lib"`
	SweepFile       bool              `yaml:"sweep_file"`

	// IsGolden is set by the loader.
	IsGolden bool `yaml:"-"`
}

// Name is "golden" or "revised".
func (m SimModel) Name() string {
	if m.IsGolden {
		return "golden"
	}
	return "revised"
}

// LoadSimConfig reads and validates a simulator configuration. With
// goldenOnly the revised section is optional and mirrors golden.
func LoadSimConfig(path string, goldenOnly bool) (*SimConfig, error) {
	_, sections, err := readSections(path)
	if err != nil {
		return nil, err
	}
	cfg := &SimConfig{}
	load := func(name string, dst *SimModel) error {
		n, ok := sections[name]
		if !ok {
			return errors.ConfigInvalidf("%s: missing %s section", path, name)
		}
		*dst = SimModel{SweepFile: true}
		if err := n.Decode(dst); err != nil {
			return errors.ConfigInvalidf("%s section: %v", name, err)
		}
		return dst.validate(name)
	}
	if err := load("golden", &cfg.Golden); err != nil {
		return nil, err
	}
	if goldenOnly {
		if _, ok := sections["revised"]; !ok {
			cfg.Revised = cfg.Golden
		} else if err := load("revised", &cfg.Revised); err != nil {
			return nil, err
		}
	} else if err := load("revised", &cfg.Revised); err != nil {
		return nil, err
	}
	cfg.Golden.IsGolden = true
	cfg.Revised.IsGolden = false
	cfg.Golden.expand()
	cfg.Revised.expand()
	return cfg, nil
}

func (m *SimModel) validate(name string) error {
	if err := validate.Struct(m); err != nil {
		return errors.ConfigInvalidf("%s section: %v", name, err)
	}
	if m.Simulator == SimVCS && m.Model == ModelAMS {
		return errors.ConfigInvalidf("%s section: VCS cannot simulate an AMS model", name)
	}
	if m.Model != ModelAMS {
		if len(m.Circuit) > 0 {
			return errors.ConfigInvalidf("%s section: circuit is valid only for model=%s", name, ModelAMS)
		}
		if m.AMSControlFile != "" {
			return errors.ConfigInvalidf("%s section: ams_control_file is valid only for model=%s", name, ModelAMS)
		}
	}
	return nil
}

func (m *SimModel) expand() {
	m.HDLFiles = expandPaths(m.HDLFiles)
	m.HDLIncludeFiles = expandPaths(m.HDLIncludeFiles)
	m.AMSControlFile = ExpandPath(m.AMSControlFile)
	m.AMSConnRules = os.ExpandEnv(m.AMSConnRules)
	m.SpiceLib = ExpandPath(m.SpiceLib)
	m.SimulatorOption = os.ExpandEnv(m.SimulatorOption)
	if len(m.Circuit) > 0 {
		circuits := make(map[string]string, len(m.Circuit))
		for k, v := range m.Circuit {
			circuits[k] = ExpandPath(v)
		}
		m.Circuit = circuits
	}
}
