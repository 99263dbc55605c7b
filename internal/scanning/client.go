package scanning

import (
	"context"
	"log/slog"
	"strings"
)

// Client identifies items with a vision model and applies the confidence
// policy to the answer.
type Client struct {
	model  Model
	policy *Policy
}

// NewClient creates a Client. A nil policy means DefaultPolicy.
func NewClient(model Model, policy *Policy) *Client {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Client{
		model:  model,
		policy: policy,
	}
}

// Identify calls the model once and classifies every failure as an *Error
func (c *Client) Identify(ctx context.Context, req ScanRequest) (*IdentificationResult, error) {
	resp, err := c.model.Generate(ctx, ModelRequest{
		ImageURL: req.ImageURL,
		System:   SystemPrompt,
		User:     BuildUserPrompt(req.Condition, req.ManualName),
	})
	if err != nil {
		return nil, upstreamError("calling model", err)
	}
	if resp == nil {
		return nil, malformedError("no response from model", nil)
	}
	if resp.Status != StatusCompleted {
		return nil, upstreamError("model did not complete: "+string(resp.Status)+" ("+resp.Reason+")", nil)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, malformedError("no content in model response", nil)
	}

	result, err := parseIdentificationJSON(resp.Text)
	if err != nil {
		return nil, malformedError("parsing identification", err)
	}
	if !result.Confidence.Valid() {
		return nil, malformedError("unknown confidence "+string(result.Confidence), nil)
	}

	if c.policy.ShouldEscalate(result, req.HasManualName()) {
		slog.Info("Escalating identification to user",
			"identified_name", result.IdentifiedName,
			"confidence", result.Confidence,
		)
		return nil, escalationError(result)
	}

	if err := validateResult(result); err != nil {
		return nil, malformedError("validating identification", err)
	}

	return result, nil
}
