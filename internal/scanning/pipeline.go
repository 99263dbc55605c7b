package scanning

import (
	"context"
	"errors"
)

// OutcomeKind tags an Outcome
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeEscalated
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeEscalated:
		return "escalated"
	default:
		return "failed"
	}
}

// Outcome is the result of one pipeline run.
// Result is set for successes and, when the model answered, escalations.
// Err is set for failures.
type Outcome struct {
	Kind   OutcomeKind
	Result *IdentificationResult
	Err    error
}

// Pipeline runs identification under the retry policy
type Pipeline struct {
	identifier Identifier
	retry      RetryPolicy
}

// NewPipeline creates a new Pipeline
func NewPipeline(identifier Identifier, retry RetryPolicy) *Pipeline {
	return &Pipeline{
		identifier: identifier,
		retry:      retry,
	}
}

// Run identifies the item in req and classifies what happened
func (p *Pipeline) Run(ctx context.Context, req ScanRequest) Outcome {
	result, err := WithRetry(ctx, p.retry, func() (*IdentificationResult, error) {
		return p.identifier.Identify(ctx, req)
	})
	if err == nil {
		return Outcome{Kind: OutcomeSuccess, Result: result}
	}

	var scanErr *Error
	if errors.As(err, &scanErr) && scanErr.Kind == KindEscalation {
		return Outcome{Kind: OutcomeEscalated, Result: scanErr.Result}
	}
	return Outcome{Kind: OutcomeFailed, Err: err}
}
