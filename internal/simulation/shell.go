package simulation

import (
	"context"
	"os/exec"
)

// Shell runs a command inside a run directory and returns its combined
// output.
type Shell interface {
	Exec(ctx context.Context, dir, command string) (string, error)
}

// LocalShell runs commands with /bin/sh on this host.
type LocalShell struct{}

// Exec implements Shell.
func (LocalShell) Exec(ctx context.Context, dir, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
