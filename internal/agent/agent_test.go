package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amsprobe/internal"
	apperrors "amsprobe/internal/errors"
)

func newAgent(t *testing.T) (*Client, string) {
	t.Helper()
	root := t.TempDir()
	srv, err := NewServer(root, 10*time.Second, internal.NewLogger(internal.LogLevelError))
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, 20*time.Second), root
}

func TestHealth(t *testing.T) {
	c, _ := newAgent(t)
	assert.NoError(t, c.Health(context.Background()))
}

func TestRunJobCollectsMeasurements(t *testing.T) {
	c, root := newAgent(t)
	id := uuid.NewString()

	resp, err := c.Run(context.Background(), JobRequest{
		ID:      id,
		Command: "sh run.sh",
		Files: map[string][]byte{
			"run.sh": []byte("cat in.txt > meas_vout.txt\necho simulated\n"),
			"in.txt": []byte("1.25e-01\n"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, 0, resp.ExitCode)
	assert.Contains(t, resp.Output, "simulated")
	assert.Equal(t, "1.25e-01\n", string(resp.Files["meas_vout.txt"]))
	assert.NotContains(t, resp.Files, "in.txt")

	_, err = os.Stat(filepath.Join(root, id, "meas_vout.txt"))
	assert.NoError(t, err)
}

func TestRunJobReportsExitCode(t *testing.T) {
	c, _ := newAgent(t)
	resp, err := c.Run(context.Background(), JobRequest{ID: uuid.NewString(), Command: "echo broken; exit 3"})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.ExitCode)
	assert.Contains(t, resp.Output, "broken")
}

func TestRejectsInvalidJobs(t *testing.T) {
	c, _ := newAgent(t)
	cases := map[string]JobRequest{
		"not a uuid":      {ID: "run-1", Command: "true"},
		"missing command": {ID: uuid.NewString()},
		"path escape":     {ID: uuid.NewString(), Command: "true", Files: map[string][]byte{"../x": nil}},
		"bad collect":     {ID: uuid.NewString(), Command: "true", Collect: []string{"../*"}},
	}
	for name, job := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Run(context.Background(), job)
			require.Error(t, err)
			assert.True(t, apperrors.IsAppError(err))
		})
	}
}

func TestParseResponseErrorEnvelope(t *testing.T) {
	_, err := parseResponse(http.StatusBadRequest, []byte(`{"error":{"code":"INVALID_INPUT","message":"nope"}}`))
	require.Error(t, err)
	assert.Equal(t, "INVALID_INPUT", apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "nope")

	_, err = parseResponse(http.StatusBadGateway, []byte(`<html>`))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeExternalService))
}
