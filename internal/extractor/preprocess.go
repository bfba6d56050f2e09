// Package extractor turns image bytes into feature vectors and tracks extractor readiness.
package extractor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"github.com/nfnt/resize"

	"github.com/kailas-cloud/pictura/internal/domain"
)

// DefaultMaxPixels caps the decoded bitmap size when no limit is configured.
const DefaultMaxPixels = 40_000_000

// Decode parses JPEG, PNG or GIF bytes. The header is checked first and images
// with more than maxPixels pixels fail with domain.ErrImageTooLarge before any
// pixel data is decoded. A non-positive maxPixels uses DefaultMaxPixels.
func Decode(data []byte, maxPixels int64) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", domain.ErrInvalidImage)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: zero-sized image", domain.ErrInvalidImage)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels",
			domain.ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidImage, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero-sized image", domain.ErrInvalidImage)
	}
	return img, nil
}

// Resize scales img to size x size pixels with bilinear interpolation, ignoring aspect ratio.
func Resize(img image.Image, size int) image.Image {
	return resize.Resize(uint(size), uint(size), img, resize.Bilinear)
}

// Tensor converts a square image into an HxWx3 tensor with channels scaled to [-1, 1].
func Tensor(img image.Image) [][][]float32 {
	b := img.Bounds()
	out := make([][][]float32, b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := make([][]float32, b.Dx())
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl := rgb(img, x, y)
			row[x-b.Min.X] = []float32{r*2 - 1, g*2 - 1, bl*2 - 1}
		}
		out[y-b.Min.Y] = row
	}
	return out
}

// rgb returns the pixel channels in [0, 1].
func rgb(img image.Image, x, y int) (float32, float32, float32) {
	r, g, b, _ := img.At(x, y).RGBA()
	return float32(r) / 0xffff, float32(g) / 0xffff, float32(b) / 0xffff
}
