package item

import (
	"strings"
	"time"

	"github.com/zombor/declutter/internal/scanning"
)

// ItemInput is the flat record produced by a successful scan
type ItemInput struct {
	PhotoURL           string                  `json:"photoUrl"`
	IdentifiedName     string                  `json:"identifiedName"`
	UserOverrideName   *string                 `json:"userOverrideName"`
	Condition          scanning.Condition      `json:"condition"`
	Recommendation     scanning.Recommendation `json:"recommendation"`
	Reasoning          string                  `json:"reasoning"`
	EstimatedValueLow  *int                    `json:"estimatedValueLow"`  // cents
	EstimatedValueHigh *int                    `json:"estimatedValueHigh"` // cents
	Guidance           string                  `json:"guidance"`
	IsHazardous        bool                    `json:"isHazardous"`
	HazardWarning      *string                 `json:"hazardWarning"`
}

// Item is a persisted scan of one household item
type Item struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	ItemInput
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewItemInput maps an identification onto the record to persist. The
// override name is the caller's manual name when one was supplied.
func NewItemInput(req scanning.ScanRequest, result *scanning.IdentificationResult) ItemInput {
	var override *string
	if req.HasManualName() {
		name := strings.TrimSpace(req.ManualName)
		override = &name
	}

	return ItemInput{
		PhotoURL:           req.ImageURL,
		IdentifiedName:     result.IdentifiedName,
		UserOverrideName:   override,
		Condition:          req.Condition,
		Recommendation:     result.Recommendation,
		Reasoning:          result.Reasoning,
		EstimatedValueLow:  result.EstimatedValueLow,
		EstimatedValueHigh: result.EstimatedValueHigh,
		Guidance:           result.Guidance,
		IsHazardous:        result.IsHazardous,
		HazardWarning:      result.HazardWarning,
	}
}
