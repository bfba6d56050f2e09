// Package ingest computes and stores feature vectors for catalog entries.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/pictura/internal/domain"
	dombatch "github.com/kailas-cloud/pictura/internal/domain/batch"
	"github.com/kailas-cloud/pictura/internal/domain/painting"
	"github.com/kailas-cloud/pictura/internal/logger"
	"github.com/kailas-cloud/pictura/internal/metrics"
)

// Defaults for batch processing.
const (
	DefaultConcurrency  = 4
	DefaultMaxBatchSize = 100
)

// Service extracts features from images and stores them on paintings.
type Service struct {
	extractor    domain.Extractor
	repo         Repository
	fetcher      Fetcher
	concurrency  int
	maxBatchSize int
	logger       *zap.Logger
}

// New creates an ingestion service.
func New(extractor domain.Extractor, repo Repository, fetcher Fetcher, logger *zap.Logger) *Service {
	return &Service{
		extractor:    extractor,
		repo:         repo,
		fetcher:      fetcher,
		concurrency:  DefaultConcurrency,
		maxBatchSize: DefaultMaxBatchSize,
		logger:       logger,
	}
}

// WithConcurrency configures how many pending paintings are processed in parallel.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// WithMaxBatchSize configures the maximum number of paintings per ProcessPending call.
func (s *Service) WithMaxBatchSize(n int) *Service {
	if n > 0 {
		s.maxBatchSize = n
	}
	return s
}

// StoreFeatures extracts features from an uploaded image and stores them on painting id.
func (s *Service) StoreFeatures(ctx context.Context, id int64, image []byte) (painting.Painting, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return painting.Painting{}, fmt.Errorf("get painting: %w", err)
	}

	vec, err := s.extractor.Extract(ctx, image)
	if err != nil {
		return painting.Painting{}, fmt.Errorf("extract features: %w", err)
	}

	if err := s.repo.StoreFeatures(ctx, id, vec); err != nil {
		return painting.Painting{}, fmt.Errorf("store features: %w", err)
	}

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return painting.Painting{}, fmt.Errorf("reload painting: %w", err)
	}
	return p, nil
}

// ProcessPending fetches, extracts and stores features for up to limit paintings
// that have a reference image URL but no vector. Item failures are reported per result.
func (s *Service) ProcessPending(ctx context.Context, limit int) ([]dombatch.Result, error) {
	if limit <= 0 || limit > s.maxBatchSize {
		limit = s.maxBatchSize
	}

	pending, err := s.repo.ListPendingFeatures(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	results := make([]dombatch.Result, len(pending))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range pending {
		p := pending[i]
		g.Go(func() error {
			results[i] = s.processOne(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	ok, failed := dombatch.Summarize(results)
	logger.FromContextOr(ctx, s.logger).Info("Processed pending paintings",
		zap.Int("total", len(results)),
		zap.Int("succeeded", ok),
		zap.Int("failed", failed),
	)

	return results, nil
}

func (s *Service) processOne(ctx context.Context, p painting.Painting) dombatch.Result {
	id := p.ID()
	meta := p.Metadata()

	res := func() dombatch.Result {
		if meta.ImageURL == "" {
			return dombatch.NewError(id, domain.ErrNoImageSource)
		}
		if err := ctx.Err(); err != nil {
			return dombatch.NewError(id, err)
		}

		image, err := s.fetcher.Fetch(ctx, meta.ImageURL)
		if err != nil {
			return dombatch.NewError(id, fmt.Errorf("fetch image: %w", err))
		}

		vec, err := s.extractor.Extract(ctx, image)
		if err != nil {
			return dombatch.NewError(id, fmt.Errorf("extract features: %w", err))
		}

		if err := s.repo.StoreFeatures(ctx, id, vec); err != nil {
			return dombatch.NewError(id, fmt.Errorf("store features: %w", err))
		}
		return dombatch.NewOK(id, vec.Dim())
	}()

	metrics.IngestItemsTotal.WithLabelValues(string(res.Status())).Inc()
	if res.Err() != nil {
		logger.FromContextOr(ctx, s.logger).Warn("Failed to process painting",
			zap.Int64("painting_id", id),
			zap.String("image_url", meta.ImageURL),
			zap.Error(res.Err()),
		)
	}
	return res
}
