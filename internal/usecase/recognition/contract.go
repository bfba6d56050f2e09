package recognition

import (
	"context"

	"github.com/kailas-cloud/pictura/internal/domain/painting"
)

// Catalog is the storage contract the recognition pipeline reads from and notifies.
type Catalog interface {
	ListWithFeatures(ctx context.Context) ([]painting.Painting, error)
	IncrementViewCount(ctx context.Context, id int64) error
}
