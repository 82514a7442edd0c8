package pipeline

import "github.com/50mmer/statusai/internal/scoring"

// State is the observable state of a Controller. Err is empty when there is
// no error to show.
type State struct {
	Loading       bool          `json:"loading"`
	Err           string        `json:"error,omitempty"`
	Progress      int           `json:"progress"`
	StatusMessage string        `json:"statusMessage"`
	RetryCount    int           `json:"retryCount"`
	Phase         scoring.Phase `json:"phase"`
	RunID         string        `json:"runId,omitempty"`
}

// HasError reports whether a terminal error is being shown.
func (s State) HasError() bool {
	return s.Err != ""
}

func idleState() State {
	return State{Phase: scoring.PhaseIdle}
}
