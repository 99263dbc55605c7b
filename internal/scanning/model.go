package scanning

import "context"

// ModelStatus is the terminal state reported by a model provider
type ModelStatus string

const (
	// StatusCompleted means the model finished and Text holds its answer
	StatusCompleted ModelStatus = "completed"
	// StatusIncomplete means the model stopped early (token limit, safety block, ...)
	StatusIncomplete ModelStatus = "incomplete"
)

// ModelRequest is the fixed request shape sent to a vision model
type ModelRequest struct {
	ImageURL string
	System   string
	User     string
}

// ModelResponse is what a vision model returned
type ModelResponse struct {
	Status ModelStatus
	Reason string // provider-specific reason code when Status is not completed
	Text   string
}

// Model defines the interface for vision model providers
type Model interface {
	// Generate sends one request to the model
	Generate(ctx context.Context, req ModelRequest) (*ModelResponse, error)
	// Close closes the model client and releases resources
	Close() error
}
