package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	// RunID names one invocation of the checker over a test configuration.
	RunID ID
	// JobID names one remote simulation request.
	JobID ID
)

func (id RunID) String() string { return ID(id).String() }
func (id JobID) String() string { return ID(id).String() }

// NewRunID returns a fresh run identifier.
func NewRunID() RunID { return RunID(NewID()) }

// ParseJobID parses a string into JobID. Job IDs are used as directory
// names on the agent, so path separators are rejected.
func ParseJobID(s string) (JobID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("job ID cannot be empty")
	}
	if strings.ContainsAny(s, `/\`) || s == "." || s == ".." {
		return "", fmt.Errorf("job ID %q is not a valid directory name", s)
	}
	return JobID(s), nil
}
