// Package openai generates painting descriptions via an OpenAI-compatible chat completion API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/domain/painting"
	"github.com/kailas-cloud/pictura/internal/metrics"
)

const systemPrompt = "You are a museum guide. Write a short, factual gallery label " +
	"(two to four sentences) for the painting described by the user. " +
	"Do not invent provenance or dates that are not given."

// Describer is a description provider using the OpenAI-compatible chat API.
type Describer struct {
	client    *openai.Client
	model     string
	maxTokens int
	provider  string
	logger    *zap.Logger
}

// Config holds the description provider settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Provider  string
	Logger    *zap.Logger
}

// NewDescriber creates an OpenAI-compatible description provider.
func NewDescriber(cfg *Config) *Describer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Describer{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		provider:  cfg.Provider,
		logger:    cfg.Logger,
	}
}

// Describe implements domain.Describer.
func (d *Describer) Describe(ctx context.Context, meta painting.Metadata) (domain.DescriptionResult, error) {
	req := openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(meta)},
		},
		MaxTokens: d.maxTokens,
	}

	start := time.Now()

	resp, err := d.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.DescriptionRequestsTotal.WithLabelValues(d.provider, d.model, "error").Inc()
		d.logger.Warn("Description request failed",
			zap.String("provider", d.provider),
			zap.String("model", d.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.DescriptionResult{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.DescriptionRequestsTotal.WithLabelValues(d.provider, d.model, "error").Inc()
		return domain.DescriptionResult{}, fmt.Errorf("empty completion: %w", domain.ErrDescriptionProviderError)
	}

	metrics.DescriptionRequestsTotal.WithLabelValues(d.provider, d.model, "success").Inc()
	if resp.Usage.TotalTokens > 0 {
		metrics.DescriptionTokensTotal.WithLabelValues(d.provider, d.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.DescriptionTokensTotal.WithLabelValues(d.provider, d.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	d.logger.Debug("Description generated",
		zap.String("provider", d.provider),
		zap.String("model", d.model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return domain.DescriptionResult{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func userPrompt(meta painting.Metadata) string {
	var b strings.Builder
	b.WriteString("Title: " + meta.Title + "\n")
	b.WriteString("Artist: " + meta.Artist + "\n")
	if meta.Year != 0 {
		b.WriteString("Year: " + strconv.Itoa(meta.Year) + "\n")
	}
	if meta.Museum != "" {
		b.WriteString("Museum: " + meta.Museum + "\n")
	}
	return b.String()
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrDescriptionProviderError.
func parseAPIError(err error) error {
	wrap := domain.ErrDescriptionProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("description API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("description API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("description API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("description request failed: %w: %w", wrap, err)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
