package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Ollama implements the Model interface using a local Ollama server
type Ollama struct {
	client  *resty.Client
	model   string
	fetcher *Fetcher
}

// NewOllama creates a new Ollama Model instance.
// Recommended vision models: llava:1.6, qwen2-vl:7b, llama3.2-vision.
func NewOllama(baseURL string, modelName string, fetcher *Fetcher) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava" // Default to llava, a popular vision model
	}
	if fetcher == nil {
		fetcher = NewFetcher()
	}

	return &Ollama{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(120 * time.Second). // Ollama can be slower, especially for vision models
			SetHeader("Content-Type", "application/json"),
		model:   modelName,
		fetcher: fetcher,
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message    ollamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason"`
}

// Generate downloads the referenced image and sends it to Ollama
func (o *Ollama) Generate(ctx context.Context, req ModelRequest) (*ModelResponse, error) {
	data, contentType, err := o.fetcher.Fetch(ctx, req.ImageURL)
	if err != nil {
		return nil, err
	}
	pngData, err := toPNG(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("preparing image: %w", err)
	}

	body := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Format: "json",
		Options: map[string]any{
			"temperature": 0.3,
			"num_predict": 1000,
		},
		Messages: []ollamaMessage{
			{Role: "system", Content: req.System},
			{
				Role:    "user",
				Content: req.User,
				Images:  []string{base64.StdEncoding.EncodeToString(pngData)},
			},
		},
	}

	var chatResp ollamaChatResponse
	res, err := o.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&chatResp).
		Post("/api/chat")
	if err != nil {
		return nil, fmt.Errorf("calling ollama API: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("ollama API error (status %d): %s", res.StatusCode(), res.String())
	}

	if !chatResp.Done {
		return &ModelResponse{Status: StatusIncomplete, Reason: "not done"}, nil
	}
	if chatResp.DoneReason != "" && chatResp.DoneReason != "stop" {
		return &ModelResponse{Status: StatusIncomplete, Reason: chatResp.DoneReason}, nil
	}
	return &ModelResponse{Status: StatusCompleted, Text: chatResp.Message.Content}, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
