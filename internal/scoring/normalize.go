package scoring

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/50mmer/statusai/internal/models"
)

var (
	decimalRe      = regexp.MustCompile(`[0-9]*\.?[0-9]+`)
	leadingFloatRe = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?`)
	leadingIntRe   = regexp.MustCompile(`^[+-]?[0-9]+`)
)

// Normalization is the result of Normalize plus the fields that fell back to
// their default.
type Normalization struct {
	Result    models.ScoreResult
	Defaulted []string
}

// Normalize turns a parsed upstream document into a ScoreResult. It never
// fails: every field that is missing, of the wrong kind or out of range is
// replaced by its default.
func Normalize(doc Value) models.ScoreResult {
	return NormalizeReport(doc).Result
}

// NormalizeReport is Normalize and also lists the defaulted fields.
func NormalizeReport(doc Value) Normalization {
	var n Normalization
	note := func(field string, ok bool) {
		if !ok {
			n.Defaulted = append(n.Defaulted, field)
		}
	}

	scores := doc.Field("categoryScores")
	n.Result.CategoryScores = make(map[models.Category]int, len(models.Categories))
	for _, c := range models.Categories {
		s, ok := normalizeScore(scores.Field(string(c)))
		n.Result.CategoryScores[c] = s
		note("categoryScores."+string(c), ok)
	}

	overall, ok := normalizeScore(doc.Field("overallScore"))
	n.Result.OverallScore = overall
	note("overallScore", ok)

	ranking := doc.Field("globalRanking")
	pos, ok := normalizePosition(ranking.Field("position"))
	n.Result.GlobalRanking.Position = pos
	note("globalRanking.position", ok)

	pct, ok := normalizePercentile(ranking.Field("percentile"))
	n.Result.GlobalRanking.Percentile = pct
	note("globalRanking.percentile", ok)

	status, ok := normalizeText(doc.Field("status"))
	n.Result.Status = status
	note("status", ok)

	prediction, ok := normalizeText(doc.Field("futurePrediction"))
	n.Result.FuturePrediction = prediction
	note("futurePrediction", ok)

	return n
}

// numeric reads a number, or the number a string starts with ("85/100" is 85).
// lead selects how much of the string counts as the number.
func numeric(v Value, lead *regexp.Regexp) (float64, bool) {
	if f, ok := v.AsNumber(); ok {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	s, ok := v.AsString()
	if !ok {
		return 0, false
	}
	m := lead.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// roundHalfUp rounds .5 away from zero for the non-negative values used here.
func roundHalfUp(f float64) float64 {
	return math.Floor(f + 0.5)
}

func normalizeScore(v Value) (int, bool) {
	f, ok := numeric(v, leadingFloatRe)
	if !ok || f < 0 || f > 100 {
		return models.DefaultScore, false
	}
	return int(roundHalfUp(f)), true
}

// Position strings are read as integers, so "10.6" is 10.
func normalizePosition(v Value) (int64, bool) {
	f, ok := numeric(v, leadingIntRe)
	if !ok || f <= 0 || f > float64(models.PopulationSize) {
		return models.DefaultPosition, false
	}
	pos := int64(roundHalfUp(f))
	if pos < 1 {
		return models.DefaultPosition, false
	}
	return pos, true
}

func normalizePercentile(v Value) (float64, bool) {
	f, ok := numeric(v, leadingFloatRe)
	if !ok {
		s, isStr := v.AsString()
		if !isStr {
			return models.DefaultPercentile, false
		}
		m := decimalRe.FindString(s)
		if m == "" {
			return models.DefaultPercentile, false
		}
		parsed, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return models.DefaultPercentile, false
		}
		f = parsed
	}
	if f < 0 || f > 100 {
		return models.DefaultPercentile, false
	}
	return math.Round(f*10) / 10, true
}

func normalizeText(v Value) (string, bool) {
	s, ok := v.AsString()
	if !ok {
		return models.NoDataAvailable, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return models.NoDataAvailable, false
	}
	return s, true
}
