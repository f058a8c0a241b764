package verdict

// Status is the outcome attached to a check cell or a whole response.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusFailure Status = "failure"
	// StatusNormal marks an informational cell that was not judged.
	StatusNormal Status = "normal"
)

// Color is the background used when rendering a cell with this status.
func (s Status) Color() string {
	switch s {
	case StatusSuccess:
		return "lime"
	case StatusFailure:
		return "red"
	case StatusWarning:
		return "yellow"
	default:
		return "white"
	}
}

// Tag is the short marker printed in plain-text summaries.
func (s Status) Tag() string {
	switch s {
	case StatusFailure:
		return "*error*"
	case StatusWarning:
		return "*warning*"
	default:
		return ""
	}
}

func (s Status) severity() int {
	switch s {
	case StatusFailure:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Worst returns the most severe of the given statuses; success if none.
func Worst(statuses ...Status) Status {
	out := StatusSuccess
	for _, s := range statuses {
		if s.severity() > out.severity() {
			out = s
		}
	}
	return out
}

// IsFailure reports whether s is a failure.
func (s Status) IsFailure() bool { return s == StatusFailure }

// ModeVerdict is the pair of verdicts produced for one response in one digital mode.
type ModeVerdict struct {
	Test     string
	Mode     string
	Response string
	Pin      Status
	Residual Status
}

// Failed reports whether either check failed.
func (v ModeVerdict) Failed() bool {
	return v.Pin.IsFailure() || v.Residual.IsFailure()
}
