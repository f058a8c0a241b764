package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amsprobe/internal/modelparam"
	"amsprobe/internal/vector"
)

func savedModel(t *testing.T) string {
	t.Helper()
	p := modelparam.New()
	require.NoError(t, p.Formulate("amp", []modelparam.ModeEquations{{
		Mode:      map[string]int{"sel": 1},
		Equations: []string{"vout = 5.000000e-01 + 2.000000e+00*vin"},
	}}))
	path, err := p.Save(t.TempDir())
	require.NoError(t, err)
	return path
}

func TestModelEquationCommand(t *testing.T) {
	path := savedModel(t)
	var out bytes.Buffer
	cmd := newModelCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"equation", "-f", path, "--test", "amp", "--response", "vout", "--mode", "sel=1", "--rename", "vin=V(inp)"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "0.5 + 2*V(inp);\n", out.String())
}

func TestModelShowCommand(t *testing.T) {
	path := savedModel(t)
	var out bytes.Buffer
	cmd := newModelCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"show", "-f", path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "amp\n  vout [sel=1]\n")
	assert.Contains(t, out.String(), "vin")
}

func TestVectorsCommand(t *testing.T) {
	dir := t.TempDir()
	tf := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(tf, []byte(`
amp:
  simulation: {timeunit: 1ns, trantime: 1us}
  port:
    vin: {port_type: analoginput, lower_bound: 0, upper_bound: 1}
    vout: {port_type: analogoutput, abstol: 0.01}
`), 0o644))

	var out bytes.Buffer
	cmd := newVectorsCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-t", tf, "-o", filepath.Join(dir, "vec"), "--seed", "3"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "amp: 1 mode(s)")
	assert.FileExists(t, filepath.Join(dir, "vec", "amp", vector.AnalogFile))
	assert.FileExists(t, filepath.Join(dir, "vec", "amp", vector.DigitalFile))
}
