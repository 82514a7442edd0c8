package scoring

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/50mmer/statusai/internal/models"
)

// RequestBuilder turns an AnswerSet into a ScoringRequest.
type RequestBuilder struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Build is pure. Every answer is sent as its string form and missing answers
// are sent as "".
func (b RequestBuilder) Build(answers models.AnswerSet) ScoringRequest {
	return ScoringRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   strings.Replace(userPromptTemplate, dataPlaceholder, ProfileJSON(answers), 1),
		Model:        b.Model,
		Temperature:  b.Temperature,
		MaxTokens:    b.MaxTokens,
	}
}

// ProfileJSON serializes the answers grouped by category.
func ProfileJSON(answers models.AnswerSet) string {
	var p profile
	d := &p.Profile

	d.Wealth.Income = answers.Get(models.QuestionAnnualIncome)
	d.Wealth.NetWorth = answers.Get(models.QuestionNetWorth)
	d.Wealth.Lifestyle = answers.Get(models.QuestionLifestyle)

	d.Physical.Height = answers.Get(models.QuestionHeight)
	d.Physical.BodyType = answers.Get(models.QuestionBodyType)
	d.Physical.Strength = answers.Get(models.QuestionStrengthLevel)

	d.Power.Leadership = answers.Get(models.QuestionLeadershipRole)
	d.Power.SocialReach = answers.Get(models.QuestionSocialReach)
	d.Power.Network = answers.Get(models.QuestionNetworkStrength)

	d.Intelligence.ProblemSolving = answers.Get(models.QuestionProblemSolving)
	d.Intelligence.Skills = answers.Get(models.QuestionSkillLevel)
	d.Intelligence.Achievements = answers.Get(models.QuestionAchievements)

	d.Willpower.Discipline = answers.Get(models.QuestionDiscipline)
	d.Willpower.Productivity = answers.Get(models.QuestionProductiveHours)
	d.Willpower.Resilience = answers.Get(models.QuestionStressResilience)

	d.Legacy.Relationships = answers.Get(models.QuestionRelationshipStatus)
	d.Legacy.Attractiveness = answers.Get(models.QuestionAttractiveness)
	d.Legacy.Impact = answers.Get(models.QuestionLegacy)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// only strings; encoding cannot fail
	_ = enc.Encode(p)
	return strings.TrimSuffix(buf.String(), "\n")
}
