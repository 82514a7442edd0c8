package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllQuestions_OrderAndCount(t *testing.T) {
	keys := AllQuestions()
	require.Len(t, keys, 18)
	assert.Equal(t, QuestionAnnualIncome, keys[0])
	assert.Equal(t, QuestionHeight, keys[3])
	assert.Equal(t, QuestionLegacy, keys[17])

	seen := map[QuestionKey]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

func TestCategoryAt(t *testing.T) {
	c, ok := CategoryAt(1)
	assert.True(t, ok)
	assert.Equal(t, CategoryWealth, c)
	assert.Equal(t, "Wealth & Resources", c.Title())

	c, ok = CategoryAt(6)
	assert.True(t, ok)
	assert.Equal(t, "Legacy & Success", c.Title())

	for _, page := range []int{0, 7, -1} {
		_, ok := CategoryAt(page)
		assert.False(t, ok, page)
	}
	assert.Empty(t, Category("luck").Title())
}

func TestAnswerSet_Get(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{"string", "6'0\"", "6'0\""},
		{"float", 7.5, "7.5"},
		{"whole float", float64(180), "180"},
		{"int", 3, "3"},
		{"json number", json.Number("12.50"), "12.50"},
		{"bool", true, "true"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AnswerSet{QuestionHeight: tt.value}
			assert.Equal(t, tt.expected, a.Get(QuestionHeight))
		})
	}

	assert.Equal(t, "", AnswerSet{}.Get(QuestionHeight))
}

func TestAnswerSet_MissingAndClone(t *testing.T) {
	a := AnswerSet{}
	for _, k := range AllQuestions() {
		a[k] = "x"
	}
	assert.True(t, a.IsComplete())

	b := a.Clone()
	delete(b, QuestionDiscipline)
	b[QuestionLifestyle] = ""

	assert.True(t, a.IsComplete())
	assert.Equal(t, []QuestionKey{QuestionLifestyle, QuestionDiscipline}, b.Missing())
}
