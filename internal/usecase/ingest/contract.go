package ingest

import (
	"context"

	"github.com/kailas-cloud/pictura/internal/domain/feature"
	"github.com/kailas-cloud/pictura/internal/domain/painting"
)

// Repository defines the storage contract for feature ingestion.
type Repository interface {
	Get(ctx context.Context, id int64) (painting.Painting, error)
	ListPendingFeatures(ctx context.Context, limit int) ([]painting.Painting, error)
	StoreFeatures(ctx context.Context, id int64, vec feature.Vector) error
}

// Fetcher downloads a reference image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
