package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAI implements the Model interface for OpenAI-compatible chat
// completion APIs. The image is passed by URL, so nothing is downloaded.
type OpenAI struct {
	client *resty.Client
	model  string
}

// NewOpenAI creates a new OpenAI Model instance
func NewOpenAI(baseURL, apiKey, modelName string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if modelName == "" {
		modelName = "gpt-4o"
	}

	return &OpenAI{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(60*time.Second).
			SetAuthToken(apiKey).
			SetHeader("Content-Type", "application/json"),
		model: modelName,
	}, nil
}

type openAIChatRequest struct {
	Model          string               `json:"model"`
	Messages       []openAIMessage      `json:"messages"`
	ResponseFormat openAIResponseFormat `json:"response_format"`
	MaxTokens      int                  `json:"max_tokens"`
	Temperature    float64              `json:"temperature"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

// openAIMessage content is either a string or a list of parts
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Generate sends the image URL and prompts to the chat completions endpoint
func (o *OpenAI) Generate(ctx context.Context, req ModelRequest) (*ModelResponse, error) {
	body := openAIChatRequest{
		Model: o.model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.System},
			{
				Role: "user",
				Content: []openAIPart{
					{Type: "image_url", ImageURL: &openAIImageURL{URL: req.ImageURL, Detail: "high"}},
					{Type: "text", Text: req.User},
				},
			},
		},
		ResponseFormat: openAIResponseFormat{Type: "json_object"},
		MaxTokens:      1000,
		Temperature:    0.3,
	}

	var chatResp openAIChatResponse
	res, err := o.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&chatResp).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("calling chat completions API: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("chat completions API error (status %d): %s", res.StatusCode(), res.String())
	}

	if len(chatResp.Choices) == 0 {
		return &ModelResponse{Status: StatusIncomplete, Reason: "no choices"}, nil
	}
	choice := chatResp.Choices[0]
	if choice.FinishReason != "stop" {
		return &ModelResponse{Status: StatusIncomplete, Reason: choice.FinishReason}, nil
	}
	return &ModelResponse{Status: StatusCompleted, Text: choice.Message.Content}, nil
}

// Close is a no-op for the HTTP client
func (o *OpenAI) Close() error {
	return nil
}
