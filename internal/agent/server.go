package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"amsprobe/domain/core"
	"amsprobe/internal"
	apperrors "amsprobe/internal/errors"
)

// Server executes jobs below Root, one directory per job ID.
type Server struct {
	root     string
	timeout  time.Duration
	router   *chi.Mux
	validate *validator.Validate
	logger   *internal.Logger
}

// NewServer builds the agent router. timeout bounds a single job.
func NewServer(root string, timeout time.Duration, logger *internal.Logger) (*Server, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperrors.Wrapf(err, "agent root %s", root)
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		root:     root,
		timeout:  timeout,
		router:   chi.NewRouter(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.WithComponent("Agent"),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(timeout + 30*time.Second))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/v1/jobs", s.handleJob)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.CodeInvalidInput, "malformed job: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.CodeInvalidInput, err.Error())
		return
	}

	id, err := core.ParseJobID(req.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, apperrors.CodeInvalidInput, err.Error())
		return
	}
	dir := filepath.Join(s.root, id.String())
	if err := s.materialize(dir, req.Files); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.CodeInvalidInput, err.Error())
		return
	}

	timeout := s.timeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	s.logger.Debug("job %s [%s]: %s", req.ID, middleware.GetReqID(r.Context()), req.Command)
	cmd := exec.CommandContext(ctx, "sh", "-c", req.Command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()

	resp := JobResponse{ID: req.ID, Output: string(out)}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			writeError(w, http.StatusInternalServerError, apperrors.CodeSimulationFailure, err.Error())
			return
		}
		resp.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		writeError(w, http.StatusGatewayTimeout, apperrors.CodeSimulationFailure, fmt.Sprintf("job %s timed out after %s", req.ID, timeout))
		return
	}

	collect := req.Collect
	if len(collect) == 0 {
		collect = DefaultCollect
	}
	if resp.Files, err = gather(dir, collect); err != nil {
		writeError(w, http.StatusInternalServerError, apperrors.CodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// materialize writes the uploaded files. Names must be plain file names.
func (s *Server) materialize(dir string, files map[string][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for name, body := range files {
		if name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsRune(name, os.PathSeparator) {
			return fmt.Errorf("file name %q is not allowed", name)
		}
		mode := os.FileMode(0o644)
		if strings.HasSuffix(name, ".sh") {
			mode = 0o755
		}
		if err := os.WriteFile(filepath.Join(dir, name), body, mode); err != nil {
			return err
		}
	}
	return nil
}

func gather(dir string, patterns []string) (map[string][]byte, error) {
	files := make(map[string][]byte)
	for _, pat := range patterns {
		if pat != filepath.Base(pat) {
			return nil, fmt.Errorf("collect pattern %q is not allowed", pat)
		}
		matches, err := filepath.Glob(filepath.Join(dir, pat))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			body, err := os.ReadFile(m)
			if err != nil {
				return nil, err
			}
			files[filepath.Base(m)] = body
		}
	}
	return files, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body ErrorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}
