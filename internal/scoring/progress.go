package scoring

// Phase is the state of one Execute call.
type Phase string

const (
	PhaseIdle             Phase = "IDLE"
	PhaseValidating       Phase = "VALIDATING"
	PhaseConnecting       Phase = "CONNECTING"
	PhaseAwaitingResponse Phase = "AWAITING_RESPONSE"
	PhaseParsing          Phase = "PARSING"
	PhaseRetrying         Phase = "RETRYING"
	PhaseDone             Phase = "DONE"
	PhaseFailed           Phase = "FAILED"
)

// Status messages shown while a calculation runs.
const (
	StatusValidating      = "Validating your responses..."
	StatusConnecting      = "Connecting to assessment server..."
	StatusAnalyzing       = "Analyzing your profile data..."
	StatusProcessing      = "Processing results..."
	StatusComplete        = "Calculation complete!"
	StatusRetryConnection = "Retrying connection..."
	StatusRetryAnalysis   = "Retrying analysis..."
)

// Progress is reported at every checkpoint of an Execute call.
type Progress struct {
	Phase      Phase
	Percent    int
	Status     string
	RetryCount int
	// Attempt is the 1-based upstream attempt the checkpoint belongs to.
	Attempt int
}

// ProgressFunc receives checkpoints in order. It is called on the
// goroutine running Execute and must not block.
type ProgressFunc func(Progress)

// retryStatus picks the message shown while waiting to retry.
func retryStatus(malformed bool) string {
	if malformed {
		return StatusRetryAnalysis
	}
	return StatusRetryConnection
}
