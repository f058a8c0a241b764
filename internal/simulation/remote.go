package simulation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"amsprobe/internal/agent"
)

// RemoteShell runs commands on a simulation agent. The run directory is
// uploaded before each command and the measurement files and logs are
// written back into it afterwards.
type RemoteShell struct {
	clients chan *agent.Client
}

// NewRemoteShell runs at most len(clients) commands at a time, one per client.
func NewRemoteShell(clients ...*agent.Client) *RemoteShell {
	pool := make(chan *agent.Client, len(clients))
	for _, c := range clients {
		pool <- c
	}
	return &RemoteShell{clients: pool}
}

// JobID maps a local run directory to its agent job directory. The
// simulation and the post-processor of one run share it.
func JobID(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String()
}

// Exec implements Shell.
func (s *RemoteShell) Exec(ctx context.Context, dir, command string) (string, error) {
	files, err := regularFiles(dir)
	if err != nil {
		return "", err
	}
	var client *agent.Client
	select {
	case client = <-s.clients:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { s.clients <- client }()

	resp, err := client.Run(ctx, agent.JobRequest{
		ID:      JobID(dir),
		Command: command,
		Files:   files,
		Collect: agent.DefaultCollect,
	})
	if err != nil {
		return "", err
	}
	for name, body := range resp.Files {
		if err := os.WriteFile(filepath.Join(dir, filepath.Base(name)), body, 0o644); err != nil {
			return resp.Output, err
		}
	}
	if resp.ExitCode != 0 {
		return resp.Output, fmt.Errorf("remote command exited with status %d", resp.ExitCode)
	}
	return resp.Output, nil
}

func regularFiles(dir string) (map[string][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		files[e.Name()] = body
	}
	return files, nil
}
