package domain

import (
	"context"

	"github.com/kailas-cloud/pictura/internal/domain/painting"
)

// Describer generates a gallery description for a painting.
type Describer interface {
	Describe(ctx context.Context, meta painting.Metadata) (DescriptionResult, error)
}

// DescriptionResult carries generated text and token usage.
type DescriptionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
