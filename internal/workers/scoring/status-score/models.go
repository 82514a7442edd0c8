// internal/workers/scoring/status-score/models.go
package statusscore

import "github.com/50mmer/statusai/internal/models"

type Input struct {
	UserID  string           `json:"userId"`
	Answers models.AnswerSet `json:"answers"`
}

// Output is merged into the process instance variables.
type Output struct {
	RunID        string              `json:"runId"`
	ScoreResult  *models.ScoreResult `json:"scoreResult"`
	OverallScore int                 `json:"overallScore"`
	Percentile   float64             `json:"percentile"`
}
