package validation

import (
	"fmt"
	"strings"

	"github.com/50mmer/statusai/internal/common/errors"
	"github.com/50mmer/statusai/internal/models"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateAnswers checks that all 18 questions have a non-empty answer.
func ValidateAnswers(answers models.AnswerSet) *ValidationResult {
	return validateKeys(answers, models.AllQuestions())
}

// ValidateCategory checks the three answers of one questionnaire page (1..6).
func ValidateCategory(answers models.AnswerSet, page int) *ValidationResult {
	category, ok := models.CategoryAt(page)
	if !ok {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "page",
				Message: fmt.Sprintf("page must be between 1 and %d", len(models.Categories)),
				Code:    "INVALID_PAGE",
			}},
		}
	}
	return validateKeys(answers, models.CategoryQuestions[category])
}

func validateKeys(answers models.AnswerSet, keys []models.QuestionKey) *ValidationResult {
	var errs []ValidationError
	for _, k := range keys {
		if strings.TrimSpace(answers.Get(k)) == "" {
			errs = append(errs, ValidationError{
				Field:   string(k),
				Message: "answer is required",
				Code:    "REQUIRED_FIELD_MISSING",
			})
		}
	}
	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Err returns nil for a valid result and a VALIDATION_ERROR otherwise.
func (vr *ValidationResult) Err() error {
	if vr == nil || vr.Valid {
		return nil
	}
	fields := make([]string, len(vr.Errors))
	for i, e := range vr.Errors {
		fields[i] = e.Field
	}
	return errors.NewValidationError("missing answers: " + strings.Join(fields, ", "))
}
