package scanning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Model interface using Google Gemini
type Gemini struct {
	client    *genai.Client
	modelName string
	fetcher   *Fetcher
}

// NewGemini creates a new Gemini Model instance
func NewGemini(apiKey string, modelName string, fetcher *Fetcher) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}
	if fetcher == nil {
		fetcher = NewFetcher()
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:    client,
		modelName: modelName,
		fetcher:   fetcher,
	}, nil
}

// Generate downloads the referenced image and asks Gemini about it
func (g *Gemini) Generate(ctx context.Context, req ModelRequest) (*ModelResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	data, contentType, err := g.fetcher.Fetch(ctx, req.ImageURL)
	if err != nil {
		return nil, err
	}
	pngData, err := toPNG(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("preparing image: %w", err)
	}

	resp, err := g.newModel(req.System).GenerateContent(ctx, geminiParts(pngData, req.User)...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return &ModelResponse{Status: StatusIncomplete, Reason: blocked.Error()}, nil
		}
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return &ModelResponse{Status: StatusIncomplete, Reason: "no candidates"}, nil
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason != genai.FinishReasonStop {
		return &ModelResponse{Status: StatusIncomplete, Reason: candidate.FinishReason.String()}, nil
	}

	var text strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}

	return &ModelResponse{Status: StatusCompleted, Text: text.String()}, nil
}

// newModel configures a model that answers in JSON under the given system instruction
func (g *Gemini) newModel(system string) *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0.3)
	model.SetMaxOutputTokens(1000)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	return model
}

// geminiParts is the image followed by the user prompt.
// genai.ImageData expects just the format suffix, and toPNG always yields PNG.
func geminiParts(pngData []byte, user string) []genai.Part {
	return []genai.Part{
		genai.ImageData("png", pngData),
		genai.Text(user),
	}
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
