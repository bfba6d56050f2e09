package health

import (
	"context"

	"github.com/kailas-cloud/pictura/internal/domain"
)

// Pinger checks availability of a storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ExtractorStatus reports the extractor lifecycle state.
type ExtractorStatus interface {
	Status() (domain.ExtractorState, error)
}
