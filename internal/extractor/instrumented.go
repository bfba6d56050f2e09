package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/domain/feature"
	"github.com/kailas-cloud/pictura/internal/metrics"
)

// Instrumented wraps an Extractor with duration/error metrics and logging.
type Instrumented struct {
	inner  domain.Extractor
	name   string
	logger *zap.Logger
}

// NewInstrumented wraps inner; name is the "extractor" metric label.
func NewInstrumented(inner domain.Extractor, name string, logger *zap.Logger) *Instrumented {
	return &Instrumented{inner: inner, name: name, logger: logger}
}

// Extract delegates to the inner extractor and records the outcome.
func (e *Instrumented) Extract(ctx context.Context, image []byte) (feature.Vector, error) {
	start := time.Now()

	vec, err := e.inner.Extract(ctx, image)

	duration := time.Since(start)

	if err != nil {
		metrics.ExtractionErrorsTotal.WithLabelValues(e.name, errorType(err)).Inc()
		if errors.Is(err, domain.ErrExtractorNotReady) || errors.Is(err, domain.ErrInvalidImage) {
			e.logger.Debug("Feature extraction rejected",
				zap.String("extractor", e.name),
				zap.Error(err),
			)
		} else {
			e.logger.Error("Feature extraction failed",
				zap.String("extractor", e.name),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		}
		return nil, fmt.Errorf("extract: %w", err)
	}

	metrics.ExtractionDuration.WithLabelValues(e.name).Observe(duration.Seconds())

	e.logger.Debug("Feature extraction completed",
		zap.String("extractor", e.name),
		zap.Duration("duration", duration),
		zap.Int("dimensions", vec.Dim()),
		zap.Int("image_bytes", len(image)),
	)

	return vec, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrExtractorNotReady):
		return "not_ready"
	case errors.Is(err, domain.ErrInvalidImage):
		return "invalid_image"
	case errors.Is(err, domain.ErrVectorDimMismatch):
		return "dim_mismatch"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "extraction"
	}
}
