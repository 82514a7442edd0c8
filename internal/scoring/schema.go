package scoring

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// responseSchema checks structure only. Field values are left to Normalize,
// so a wrong score type is defaulted rather than retried.
const responseSchema = `{
  "type": "object",
  "required": ["categoryScores", "overallScore", "globalRanking", "status", "futurePrediction"],
  "properties": {
    "categoryScores": {
      "type": "object",
      "required": ["wealth", "fitness", "power", "intelligence", "willpower", "legacy"],
      "properties": {
        "wealth":       {"not": {"type": "null"}},
        "fitness":      {"not": {"type": "null"}},
        "power":        {"not": {"type": "null"}},
        "intelligence": {"not": {"type": "null"}},
        "willpower":    {"not": {"type": "null"}},
        "legacy":       {"not": {"type": "null"}}
      }
    },
    "overallScore":     {"not": {"type": "null"}},
    "globalRanking":    {"not": {"type": "null"}},
    "status":           {"not": {"type": "null"}},
    "futurePrediction": {"not": {"type": "null"}}
  }
}`

var responseSchemaLoader = gojsonschema.NewStringLoader(responseSchema)

// validateStructure reports every structural problem of a cleaned response
// body in one error.
func validateStructure(content string) error {
	result, err := gojsonschema.Validate(responseSchemaLoader, gojsonschema.NewStringLoader(content))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" || field == "(root)" {
			errs = append(errs, desc.Description())
			continue
		}
		errs = append(errs, field+": "+desc.Description())
	}
	return fmt.Errorf("%s", strings.Join(errs, "; "))
}

// stripCodeFences removes a surrounding ``` or ```json fence.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		if first := strings.TrimSpace(s[:idx]); !strings.ContainsAny(first, "{[") {
			s = s[idx+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
