package domain

import (
	"context"

	"github.com/kailas-cloud/pictura/internal/domain/feature"
)

// Extractor is the image vectorization contract shared between layers.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (feature.Vector, error)
}

// ExtractorState is the lifecycle state of a loadable extractor.
type ExtractorState string

// Extractor lifecycle states.
const (
	ExtractorLoading ExtractorState = "loading"
	ExtractorReady   ExtractorState = "ready"
	ExtractorFailed  ExtractorState = "failed"
)

// KeyPrefix namespaces every key written to the cache store.
const KeyPrefix = "pictura:"
