package catalog

import (
	"context"

	"github.com/kailas-cloud/pictura/internal/domain/painting"
)

// Repository defines the storage contract for catalog management.
type Repository interface {
	Create(ctx context.Context, p painting.Painting) (painting.Painting, error)
	Get(ctx context.Context, id int64) (painting.Painting, error)
	Update(ctx context.Context, id int64, meta painting.Metadata) (painting.Painting, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]painting.Painting, int, error)
	Popular(ctx context.Context, limit int) ([]painting.Painting, error)
}
