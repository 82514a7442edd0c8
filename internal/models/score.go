package models

import "time"

const (
	// PopulationSize is the global male population the ranking is taken against.
	PopulationSize int64 = 3_970_000_000
	// DefaultPosition is the midpoint of the population range.
	DefaultPosition int64 = 1_985_000_000
	DefaultScore          = 50
	DefaultPercentile     = 50.0
	// NoDataAvailable replaces absent or blank text fields.
	NoDataAvailable = "No data available"
)

// GlobalRanking places the user within PopulationSize.
type GlobalRanking struct {
	Position   int64   `json:"position"`
	Percentile float64 `json:"percentile"`
}

// ScoreResult is the validated output of one pipeline run. Every numeric
// field is within range and both text fields are non-empty.
type ScoreResult struct {
	CategoryScores   map[Category]int `json:"categoryScores"`
	OverallScore     int              `json:"overallScore"`
	GlobalRanking    GlobalRanking    `json:"globalRanking"`
	Status           string           `json:"status"`
	FuturePrediction string           `json:"futurePrediction"`
}

// ResultRecord is what gets persisted for the last result and the history list.
type ResultRecord struct {
	ID        string       `json:"id" db:"id"`
	RunID     string       `json:"runId" db:"run_id"`
	UserID    string       `json:"userId,omitempty" db:"user_id"`
	Result    *ScoreResult `json:"result" db:"result"`
	CreatedAt time.Time    `json:"createdAt" db:"created_at"`
}

// CalculationState is the checkpoint written while a run is in progress.
type CalculationState struct {
	RunID      string    `json:"runId"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	RetryCount int       `json:"retryCount"`
	Timestamp  time.Time `json:"timestamp"`
}
