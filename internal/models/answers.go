// internal/models/answers.go
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// QuestionKey identifies one questionnaire field.
type QuestionKey string

const (
	QuestionAnnualIncome       QuestionKey = "annualIncome"
	QuestionNetWorth           QuestionKey = "netWorth"
	QuestionLifestyle          QuestionKey = "lifestyle"
	QuestionHeight             QuestionKey = "height"
	QuestionBodyType           QuestionKey = "bodyType"
	QuestionStrengthLevel      QuestionKey = "strengthLevel"
	QuestionLeadershipRole     QuestionKey = "leadershipRole"
	QuestionSocialReach        QuestionKey = "socialReach"
	QuestionNetworkStrength    QuestionKey = "networkStrength"
	QuestionProblemSolving     QuestionKey = "problemSolving"
	QuestionSkillLevel         QuestionKey = "skillLevel"
	QuestionAchievements       QuestionKey = "achievements"
	QuestionDiscipline         QuestionKey = "discipline"
	QuestionProductiveHours    QuestionKey = "productiveHours"
	QuestionStressResilience   QuestionKey = "stressResilience"
	QuestionRelationshipStatus QuestionKey = "relationshipStatus"
	QuestionAttractiveness     QuestionKey = "attractiveness"
	QuestionLegacy             QuestionKey = "legacy"
)

// Category is one of the six scored areas. The same keys are used in
// ScoreResult.CategoryScores.
type Category string

const (
	CategoryWealth       Category = "wealth"
	CategoryFitness      Category = "fitness"
	CategoryPower        Category = "power"
	CategoryIntelligence Category = "intelligence"
	CategoryWillpower    Category = "willpower"
	CategoryLegacy       Category = "legacy"
)

// Categories lists the categories in questionnaire order (page 1..6).
var Categories = []Category{
	CategoryWealth,
	CategoryFitness,
	CategoryPower,
	CategoryIntelligence,
	CategoryWillpower,
	CategoryLegacy,
}

// CategoryQuestions maps each category to its three questions.
var CategoryQuestions = map[Category][]QuestionKey{
	CategoryWealth:       {QuestionAnnualIncome, QuestionNetWorth, QuestionLifestyle},
	CategoryFitness:      {QuestionHeight, QuestionBodyType, QuestionStrengthLevel},
	CategoryPower:        {QuestionLeadershipRole, QuestionSocialReach, QuestionNetworkStrength},
	CategoryIntelligence: {QuestionProblemSolving, QuestionSkillLevel, QuestionAchievements},
	CategoryWillpower:    {QuestionDiscipline, QuestionProductiveHours, QuestionStressResilience},
	CategoryLegacy:       {QuestionRelationshipStatus, QuestionAttractiveness, QuestionLegacy},
}

var categoryTitles = map[Category]string{
	CategoryWealth:       "Wealth & Resources",
	CategoryFitness:      "Physical Fitness",
	CategoryPower:        "Power & Influence",
	CategoryIntelligence: "Intelligence & Mastery",
	CategoryWillpower:    "Willpower & Mental Toughness",
	CategoryLegacy:       "Legacy & Success",
}

// Title returns the display title of the category, or "" for unknown values.
func (c Category) Title() string {
	return categoryTitles[c]
}

// CategoryAt returns the category for a 1-based questionnaire page.
func CategoryAt(page int) (Category, bool) {
	if page < 1 || page > len(Categories) {
		return "", false
	}
	return Categories[page-1], true
}

// AllQuestions returns the 18 question keys in questionnaire order.
func AllQuestions() []QuestionKey {
	keys := make([]QuestionKey, 0, 18)
	for _, c := range Categories {
		keys = append(keys, CategoryQuestions[c]...)
	}
	return keys
}

// AnswerSet holds the questionnaire selections keyed by question.
// Values arrive from JSON and may be numbers or strings; use Get to read
// them as strings.
type AnswerSet map[QuestionKey]interface{}

// Get returns the string form of an answer. Missing and nil answers are "".
func (a AnswerSet) Get(key QuestionKey) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// Clone returns a copy so the caller can keep mutating its own map.
func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Missing returns the question keys with empty answers, in questionnaire order.
func (a AnswerSet) Missing() []QuestionKey {
	var missing []QuestionKey
	for _, k := range AllQuestions() {
		if a.Get(k) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// IsComplete reports whether all 18 answers are non-empty.
func (a AnswerSet) IsComplete() bool {
	return len(a.Missing()) == 0
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
