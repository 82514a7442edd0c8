package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/50mmer/statusai/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func mustParse(t *testing.T, raw string) Value {
	t.Helper()
	v, err := ParseValue([]byte(raw))
	require.NoError(t, err)
	return v
}

func assertWithinBounds(t *testing.T, r models.ScoreResult) {
	t.Helper()
	require.Len(t, r.CategoryScores, len(models.Categories))
	for _, c := range models.Categories {
		s, ok := r.CategoryScores[c]
		require.True(t, ok, "missing category %s", c)
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, 100)
	}
	assert.GreaterOrEqual(t, r.OverallScore, 0)
	assert.LessOrEqual(t, r.OverallScore, 100)
	assert.GreaterOrEqual(t, r.GlobalRanking.Position, int64(1))
	assert.LessOrEqual(t, r.GlobalRanking.Position, models.PopulationSize)
	assert.GreaterOrEqual(t, r.GlobalRanking.Percentile, 0.0)
	assert.LessOrEqual(t, r.GlobalRanking.Percentile, 100.0)
	assert.NotEmpty(t, r.Status)
	assert.NotEmpty(t, r.FuturePrediction)
}

const wellFormed = `{
  "categoryScores": {"wealth": 72, "fitness": 64.6, "power": "55", "intelligence": 81, "willpower": 90, "legacy": 40},
  "overallScore": 67,
  "globalRanking": {"position": 1234567, "percentile": 18.44},
  "status": "  Rising Contender ",
  "futurePrediction": "Top 10% within five years"
}`

// ==========================
// Core Functionality Tests
// ==========================

func TestNormalize_WellFormed(t *testing.T) {
	r := Normalize(mustParse(t, wellFormed))

	assert.Equal(t, 72, r.CategoryScores[models.CategoryWealth])
	assert.Equal(t, 65, r.CategoryScores[models.CategoryFitness])
	assert.Equal(t, 55, r.CategoryScores[models.CategoryPower])
	assert.Equal(t, 67, r.OverallScore)
	assert.Equal(t, int64(1234567), r.GlobalRanking.Position)
	assert.Equal(t, 18.4, r.GlobalRanking.Percentile)
	assert.Equal(t, "Rising Contender", r.Status)
	assert.Equal(t, "Top 10% within five years", r.FuturePrediction)
}

func TestNormalize_TotalOverArbitraryInput(t *testing.T) {
	inputs := []Value{
		Missing,
		Null(),
		Number(42),
		String("hello"),
		Bool(true),
		Array(Number(1), Number(2)),
		Object(nil),
		Object(map[string]Value{"categoryScores": Array()}),
		Object(map[string]Value{"categoryScores": Object(map[string]Value{"wealth": Number(math.Inf(1))})}),
		Object(map[string]Value{"globalRanking": String("first")}),
		Object(map[string]Value{"overallScore": Number(math.NaN())}),
	}

	for _, in := range inputs {
		t.Run(in.Kind().String(), func(t *testing.T) {
			var r models.ScoreResult
			assert.NotPanics(t, func() { r = Normalize(in) })
			assertWithinBounds(t, r)
		})
	}
}

func TestNormalize_EmptyDocumentIsAllDefaults(t *testing.T) {
	n := NormalizeReport(Object(nil))

	for _, c := range models.Categories {
		assert.Equal(t, models.DefaultScore, n.Result.CategoryScores[c])
	}
	assert.Equal(t, models.DefaultScore, n.Result.OverallScore)
	assert.Equal(t, models.DefaultPosition, n.Result.GlobalRanking.Position)
	assert.Equal(t, models.DefaultPercentile, n.Result.GlobalRanking.Percentile)
	assert.Equal(t, models.NoDataAvailable, n.Result.Status)
	assert.Equal(t, models.NoDataAvailable, n.Result.FuturePrediction)
	assert.Len(t, n.Defaulted, 11)
}

func TestNormalize_Scores(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected int
	}{
		{"in range", Number(73), 73},
		{"lower bound", Number(0), 0},
		{"upper bound", Number(100), 100},
		{"rounds half up", Number(49.5), 50},
		{"rounds down", Number(49.4), 49},
		{"numeric string", String(" 88 "), 88},
		{"leading number with suffix", String("85/100"), 85},
		{"leading number with unit", String("70 points"), 70},
		{"leading decimal", String("72.5%"), 73},
		{"number after text", String("score: 80"), models.DefaultScore},
		{"leading number above range", String("150 points"), models.DefaultScore},
		{"above range", Number(150), models.DefaultScore},
		{"negative", Number(-1), models.DefaultScore},
		{"text", String("high"), models.DefaultScore},
		{"bool", Bool(true), models.DefaultScore},
		{"null", Null(), models.DefaultScore},
		{"missing", Missing, models.DefaultScore},
		{"object", Object(map[string]Value{"v": Number(10)}), models.DefaultScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := normalizeScore(tt.value)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalize_Position(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected int64
	}{
		{"in range", Number(500000), 500000},
		{"one", Number(1), 1},
		{"population ceiling", Number(float64(models.PopulationSize)), models.PopulationSize},
		{"fraction rounds", Number(10.6), 11},
		{"numeric string", String("2500"), 2500},
		{"leading integer with suffix", String("2500th"), 2500},
		{"decimal string truncates", String("10.6"), 10},
		{"grouped digits stop at comma", String("1,234 people"), 1},
		{"zero", Number(0), models.DefaultPosition},
		{"negative", Number(-5), models.DefaultPosition},
		{"tiny positive", Number(0.2), models.DefaultPosition},
		{"above population", Number(float64(models.PopulationSize) + 1), models.DefaultPosition},
		{"text", String("first"), models.DefaultPosition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := normalizePosition(tt.value)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalize_Percentile(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected float64
	}{
		{"number", Number(12.34), 12.3},
		{"rounds to one decimal", Number(12.36), 12.4},
		{"zero", Number(0), 0},
		{"hundred", Number(100), 100},
		{"numeric string", String("33.3"), 33.3},
		{"embedded in text", String("top 0.5%"), 0.5},
		{"leading dot", String("about .7 percent"), 0.7},
		{"integer in text", String("Top 15%"), 15},
		{"no digits", String("elite"), models.DefaultPercentile},
		{"above range", Number(120), models.DefaultPercentile},
		{"text above range", String("150%"), models.DefaultPercentile},
		{"negative", Number(-2), models.DefaultPercentile},
		{"bool", Bool(false), models.DefaultPercentile},
		{"missing", Missing, models.DefaultPercentile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := normalizePercentile(tt.value)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestNormalize_Text(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected string
	}{
		{"plain", String("Alpha"), "Alpha"},
		{"trimmed", String("  Alpha \n"), "Alpha"},
		{"blank", String("   "), models.NoDataAvailable},
		{"empty", String(""), models.NoDataAvailable},
		{"number", Number(7), models.NoDataAvailable},
		{"null", Null(), models.NoDataAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := normalizeText(tt.value)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeReport_ListsDefaultedFields(t *testing.T) {
	doc := mustParse(t, `{
	  "categoryScores": {"wealth": 10, "fitness": 20, "power": 30, "intelligence": 40, "willpower": 50, "legacy": "lots"},
	  "overallScore": 30,
	  "globalRanking": {"position": 0, "percentile": 12},
	  "status": "ok",
	  "futurePrediction": ""
	}`)

	n := NormalizeReport(doc)
	assert.ElementsMatch(t, []string{
		"categoryScores.legacy",
		"globalRanking.position",
		"futurePrediction",
	}, n.Defaulted)
}

// ==========================
// Value Parsing Tests
// ==========================

func TestParseValue(t *testing.T) {
	v := mustParse(t, `{"a": 1, "b": "x", "c": null, "d": [true], "e": {"f": 2.5}}`)

	n, ok := v.Field("a").AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 1.0, n)
	assert.Equal(t, KindString, v.Field("b").Kind())
	assert.Equal(t, KindNull, v.Field("c").Kind())
	assert.Equal(t, KindArray, v.Field("d").Kind())
	assert.True(t, v.Field("zzz").IsMissing())
	assert.True(t, v.Field("a").Field("nested").IsMissing())
	assert.True(t, v.Has("c"))
	assert.False(t, v.Has("zzz"))

	_, err := ParseValue([]byte(`{"a": 1} trailing`))
	assert.Error(t, err)

	_, err = ParseValue([]byte(`not json`))
	assert.Error(t, err)
}
