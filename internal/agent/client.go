package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	apperrors "amsprobe/internal/errors"
)

// Client submits jobs to an agent. Requests of one client are serialized;
// use one client per concurrent simulation slot.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	mu      sync.Mutex
}

// NewClient creates a client for the agent at addr (host:port or URL).
func NewClient(addr string, timeout time.Duration) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base:    base,
		http:    &http.Client{},
		timeout: timeout,
	}
}

// Health pings the agent.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.ExternalServiceError("agent", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || gjson.GetBytes(body, "status").String() != "ok" {
		return apperrors.ExternalServiceError("agent", fmt.Errorf("health check returned %d", resp.StatusCode))
	}
	return nil
}

// Run submits one job and waits for it to finish.
func (c *Client) Run(ctx context.Context, job JobRequest) (*JobResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
		if job.TimeoutSeconds == 0 {
			job.TimeoutSeconds = int(c.timeout / time.Second)
		}
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/jobs", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.ExternalServiceError("agent", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ExternalServiceError("agent", err)
	}
	return parseResponse(resp.StatusCode, body)
}

func parseResponse(status int, body []byte) (*JobResponse, error) {
	if e := gjson.GetBytes(body, "error"); e.Exists() {
		return nil, apperrors.WithCode(e.Get("code").String(),
			apperrors.ExternalServiceError("agent", fmt.Errorf("%s", e.Get("message").String())))
	}
	if status != http.StatusOK {
		return nil, apperrors.ExternalServiceError("agent", fmt.Errorf("unexpected status %d", status))
	}

	r := gjson.ParseBytes(body)
	out := &JobResponse{
		ID:       r.Get("id").String(),
		Output:   r.Get("output").String(),
		ExitCode: int(r.Get("exit_code").Int()),
		Files:    make(map[string][]byte),
	}
	var decodeErr error
	r.Get("files").ForEach(func(k, v gjson.Result) bool {
		b, err := base64.StdEncoding.DecodeString(v.String())
		if err != nil {
			decodeErr = fmt.Errorf("file %s: %w", k.String(), err)
			return false
		}
		out.Files[k.String()] = b
		return true
	})
	if decodeErr != nil {
		return nil, apperrors.ExternalServiceError("agent", decodeErr)
	}
	return out, nil
}
