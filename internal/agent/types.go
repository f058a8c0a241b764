// Package agent runs simulation jobs on a remote host that owns the
// simulator licences. The orchestrator talks to it through Client.
package agent

// JobRequest asks the agent to materialize Files in the job directory,
// run Command there and send back the files matching Collect.
type JobRequest struct {
	ID             string            `json:"id" validate:"required,uuid"`
	Command        string            `json:"command" validate:"required"`
	Files          map[string][]byte `json:"files,omitempty"`
	Collect        []string          `json:"collect,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty" validate:"gte=0"`
}

// JobResponse carries the combined output, the exit status and the
// collected files of a finished job.
type JobResponse struct {
	ID       string            `json:"id"`
	Output   string            `json:"output"`
	ExitCode int               `json:"exit_code"`
	Files    map[string][]byte `json:"files,omitempty"`
}

// ErrorBody is the envelope of every non-2xx agent reply.
type ErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// DefaultCollect are the run directory files the orchestrator needs back.
var DefaultCollect = []string{"meas_*.txt", "*.log"}
