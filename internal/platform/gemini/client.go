package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// Config holds what the client needs to reach the API.
type Config struct {
	APIKey string
	Model  string
}

// Request is a single generation request.
type Request struct {
	// Model overrides the configured default when non-empty
	Model string

	Prompt string

	// Temperature is left to the API default when nil
	Temperature *float32

	// MaxOutputTokens is left to the API default when zero
	MaxOutputTokens int32
}

// Response is the generated text and its usage.
type Response struct {
	Model        string
	Text         string
	FinishReason string
	PromptTokens int
	OutputTokens int
}

// modelAPI is the subset of genai.Models the client uses.
type modelAPI interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Client generates text with a Gemini model.
type Client struct {
	logger       *slog.Logger
	models       modelAPI
	defaultModel string
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, logger *slog.Logger, cfg Config) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return newClientWithModels(logger, client.Models, cfg.Model), nil
}

func newClientWithModels(logger *slog.Logger, models modelAPI, defaultModel string) *Client {
	return &Client{
		logger:       logger.With("component", "gemini"),
		models:       models,
		defaultModel: defaultModel,
	}
}

// DefaultModel returns the model used when a request does not name one.
func (c *Client) DefaultModel() string {
	return c.defaultModel
}

// Generate sends one prompt and returns the concatenated text of the first
// candidate.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}

	c.logger.DebugContext(ctx, "calling gemini",
		"model", model,
		"prompt_length", len(req.Prompt))

	resp, err := c.models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, ErrContentBlocked
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content", ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	out := &Response{
		Model:        model,
		Text:         text.String(),
		FinishReason: string(candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	c.logger.DebugContext(ctx, "gemini call finished",
		"model", model,
		"prompt_tokens", out.PromptTokens,
		"output_tokens", out.OutputTokens)
	return out, nil
}
