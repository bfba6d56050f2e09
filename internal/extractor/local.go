package extractor

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/pictura/internal/domain/feature"
)

// Local computes a colour-grid descriptor without a model server.
// The image is scaled to grid x grid and each cell contributes its RGB means in [0, 1].
type Local struct {
	grid      int
	maxPixels int64
}

// NewLocal creates a local extractor. grid must be positive.
func NewLocal(grid int) (*Local, error) {
	if grid <= 0 {
		return nil, fmt.Errorf("grid must be positive, got %d", grid)
	}
	return &Local{grid: grid, maxPixels: DefaultMaxPixels}, nil
}

// WithMaxPixels caps the pixel count of accepted images.
func (l *Local) WithMaxPixels(n int64) *Local {
	if n > 0 {
		l.maxPixels = n
	}
	return l
}

// Dimensions returns the vector length produced by Extract.
func (l *Local) Dimensions() int { return l.grid * l.grid * 3 }

// Extract decodes the image and returns its colour-grid vector.
func (l *Local) Extract(ctx context.Context, image []byte) (feature.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := Decode(image, l.maxPixels)
	if err != nil {
		return nil, err
	}

	scaled := Resize(img, l.grid)
	b := scaled.Bounds()

	vec := make(feature.Vector, 0, l.Dimensions())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl := rgb(scaled, x, y)
			vec = append(vec, r, g, bl)
		}
	}
	return vec, nil
}
