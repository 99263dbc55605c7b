package scanning

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// rawResult mirrors the JSON the model is asked for. Numbers are decoded as
// floats since some models answer 2500.0 for cents.
type rawResult struct {
	IdentifiedName     string   `json:"identifiedName"`
	Confidence         string   `json:"confidence"`
	Recommendation     string   `json:"recommendation"`
	Reasoning          string   `json:"reasoning"`
	EstimatedValueLow  *float64 `json:"estimatedValueLow"`
	EstimatedValueHigh *float64 `json:"estimatedValueHigh"`
	Guidance           string   `json:"guidance"`
	IsHazardous        bool     `json:"isHazardous"`
	HazardWarning      *string  `json:"hazardWarning"`
}

// extractJSONObject returns the text between the first { and the last }
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[startIdx : endIdx+1], nil
}

// parseIdentificationJSON decodes the model's answer. It only normalises
// formatting; field rules are checked by validateResult.
func parseIdentificationJSON(text string) (*IdentificationResult, error) {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	result := &IdentificationResult{
		IdentifiedName:     strings.TrimSpace(raw.IdentifiedName),
		Confidence:         Confidence(normalizeEnum(raw.Confidence)),
		Recommendation:     Recommendation(normalizeEnum(raw.Recommendation)),
		Reasoning:          strings.TrimSpace(raw.Reasoning),
		EstimatedValueLow:  cents(raw.EstimatedValueLow),
		EstimatedValueHigh: cents(raw.EstimatedValueHigh),
		Guidance:           strings.TrimSpace(raw.Guidance),
		IsHazardous:        raw.IsHazardous,
	}
	if raw.HazardWarning != nil {
		if warning := strings.TrimSpace(*raw.HazardWarning); warning != "" {
			result.HazardWarning = &warning
		}
	}

	return result, nil
}

// validateResult checks the invariants a result must hold before it is saved
func validateResult(r *IdentificationResult) error {
	if r.IdentifiedName == "" {
		return fmt.Errorf("identifiedName is empty")
	}
	if !r.Confidence.Valid() {
		return fmt.Errorf("unknown confidence %q", r.Confidence)
	}
	// models sometimes omit the recommendation
	if r.Recommendation != "" && !r.Recommendation.Valid() {
		return fmt.Errorf("unknown recommendation %q", r.Recommendation)
	}
	if (r.EstimatedValueLow == nil) != (r.EstimatedValueHigh == nil) {
		return fmt.Errorf("estimatedValueLow and estimatedValueHigh must be set together")
	}
	if r.EstimatedValueLow != nil {
		if *r.EstimatedValueLow < 0 {
			return fmt.Errorf("estimatedValueLow is negative")
		}
		if *r.EstimatedValueHigh < *r.EstimatedValueLow {
			return fmt.Errorf("estimatedValueHigh %d is below estimatedValueLow %d", *r.EstimatedValueHigh, *r.EstimatedValueLow)
		}
	}
	if !r.IsHazardous && r.HazardWarning != nil {
		return fmt.Errorf("hazardWarning set on a non-hazardous item")
	}
	return nil
}

func normalizeEnum(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func cents(v *float64) *int {
	if v == nil {
		return nil
	}
	c := int(math.Round(*v))
	return &c
}
