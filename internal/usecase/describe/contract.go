package describe

import (
	"context"

	"github.com/kailas-cloud/pictura/internal/domain/painting"
)

// Repository defines the storage contract for descriptions.
type Repository interface {
	Get(ctx context.Context, id int64) (painting.Painting, error)
	UpdateDescription(ctx context.Context, id int64, desc string) error
}
