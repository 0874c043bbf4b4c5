// Package gemini implements hookgen.Model on top of the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// DefaultModel is the Gemini model used when Config.Model is empty
const DefaultModel = "gemini-2.0-flash-exp"

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("gemini returned an empty response")

// Config holds Gemini client configuration
type Config struct {
	// APIKey is the Gemini API key (required)
	APIKey string

	// Model is the model name (default: gemini-2.0-flash-exp)
	Model string
}

// contentGenerator is the slice of the genai client this package uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements hookgen.Model with Gemini text generation.
type Client struct {
	models contentGenerator
	model  string
}

var _ hookgen.Model = (*Client)(nil)

// New creates a new Gemini model client
func New(ctx context.Context, config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return newClient(client.Models, config.Model), nil
}

func newClient(models contentGenerator, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{models: models, model: model}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends one prompt and returns the response text.
func (c *Client) Complete(ctx context.Context, req hookgen.CompletionRequest) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), config)
	if err != nil {
		// Keep the context error visible so the caller can tell its own deadline apart.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("gemini generate: %w", ctxErr)
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
