package scanning

import (
	"context"
	"strings"
)

// Condition is the user's assessment of the item's physical state
type Condition string

const (
	ConditionExcellent Condition = "EXCELLENT"
	ConditionGood      Condition = "GOOD"
	ConditionFair      Condition = "FAIR"
	ConditionPoor      Condition = "POOR"
)

// Valid reports whether c is one of the known conditions
func (c Condition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// Confidence is the model's self-reported certainty bucket
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Valid reports whether c is one of the known confidence levels
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Recommendation is what the user should do with the item
type Recommendation string

const (
	RecommendSell    Recommendation = "SELL"
	RecommendDonate  Recommendation = "DONATE"
	RecommendRecycle Recommendation = "RECYCLE"
	RecommendDispose Recommendation = "DISPOSE"
)

// Valid reports whether r is one of the known recommendations
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendSell, RecommendDonate, RecommendRecycle, RecommendDispose:
		return true
	}
	return false
}

// IdentificationResult contains the structured answer from the vision model.
// Estimated values are in cents.
type IdentificationResult struct {
	IdentifiedName     string         `json:"identifiedName"`
	Confidence         Confidence     `json:"confidence"`
	Recommendation     Recommendation `json:"recommendation"`
	Reasoning          string         `json:"reasoning"`
	EstimatedValueLow  *int           `json:"estimatedValueLow"`
	EstimatedValueHigh *int           `json:"estimatedValueHigh"`
	Guidance           string         `json:"guidance"`
	IsHazardous        bool           `json:"isHazardous"`
	HazardWarning      *string        `json:"hazardWarning"`
}

// ScanRequest is the input to a single pipeline run
type ScanRequest struct {
	ImageURL   string
	Condition  Condition
	ManualName string // empty when the user has not named the item
}

// HasManualName reports whether the user supplied a non-blank name
func (r ScanRequest) HasManualName() bool {
	return strings.TrimSpace(r.ManualName) != ""
}

// Identifier identifies the item in a scan request
type Identifier interface {
	// Identify makes exactly one attempt at identifying the item
	Identify(ctx context.Context, req ScanRequest) (*IdentificationResult, error)
}
