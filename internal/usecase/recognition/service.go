// Package recognition matches an uploaded photograph against the catalog.
package recognition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/domain/match"
	"github.com/kailas-cloud/pictura/internal/logger"
	"github.com/kailas-cloud/pictura/internal/metrics"
)

// DefaultViewCountTimeout bounds the detached view-count update.
const DefaultViewCountTimeout = 5 * time.Second

// Service runs extract -> load candidates -> match.
type Service struct {
	extractor        domain.Extractor
	catalog          Catalog
	threshold        float64
	viewCountTimeout time.Duration
	logger           *zap.Logger

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New creates a recognition service.
func New(extractor domain.Extractor, catalog Catalog, threshold float64, logger *zap.Logger) *Service {
	return &Service{
		extractor:        extractor,
		catalog:          catalog,
		threshold:        threshold,
		viewCountTimeout: DefaultViewCountTimeout,
		logger:           logger,
	}
}

// WithViewCountTimeout configures the timeout of the background view-count update.
func (s *Service) WithViewCountTimeout(d time.Duration) *Service {
	if d > 0 {
		s.viewCountTimeout = d
	}
	return s
}

// Threshold returns the confidence threshold a score must exceed to match.
func (s *Service) Threshold() float64 { return s.threshold }

// Recognize extracts features from image and returns the best catalog match.
// A NoMatch result is not an error.
func (s *Service) Recognize(ctx context.Context, image []byte) (match.Result, error) {
	log := logger.FromContextOr(ctx, s.logger)

	query, err := s.extractor.Extract(ctx, image)
	if err != nil {
		metrics.RecognitionsTotal.WithLabelValues("error").Inc()
		return match.Result{}, fmt.Errorf("extract query features: %w", err)
	}

	candidates, err := s.catalog.ListWithFeatures(ctx)
	if err != nil {
		metrics.RecognitionsTotal.WithLabelValues("error").Inc()
		return match.Result{}, fmt.Errorf("load candidates: %w", err)
	}
	metrics.RecognitionCandidates.Set(float64(len(candidates)))

	res := match.Best(query, candidates, s.threshold)

	if !res.IsMatch() {
		metrics.RecognitionsTotal.WithLabelValues("no_match").Inc()
		metrics.RecognitionScore.WithLabelValues("no_match").Observe(res.Score())
		log.Debug("No painting matched",
			zap.Float64("best_score", res.Score()),
			zap.Float64("threshold", s.threshold),
			zap.Int("candidates", len(candidates)),
		)
		return res, nil
	}

	p := res.Painting()
	metrics.RecognitionsTotal.WithLabelValues("match").Inc()
	metrics.RecognitionScore.WithLabelValues("match").Observe(res.Score())
	log.Debug("Painting recognized",
		zap.Int64("painting_id", p.ID()),
		zap.Float64("score", res.Score()),
		zap.Int("candidates", len(candidates)),
	)

	s.recordView(ctx, p.ID())
	return res, nil
}

// recordView increments the view counter in the background, detached from the request.
// Once Wait has been called no new updates are started.
func (s *Service) recordView(ctx context.Context, id int64) {
	log := logger.FromContextOr(ctx, s.logger)
	bg := context.WithoutCancel(ctx)

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		log.Warn("Skipping view count update during shutdown", zap.Int64("painting_id", id))
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(bg, s.viewCountTimeout)
		defer cancel()
		if err := s.catalog.IncrementViewCount(ctx, id); err != nil {
			log.Warn("Failed to increment view count", zap.Int64("painting_id", id), zap.Error(err))
		}
	}()
}

// Wait stops accepting view-count updates and blocks until the in-flight ones have finished.
func (s *Service) Wait() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.wg.Wait()
}
