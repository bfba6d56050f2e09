package extractor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/domain/feature"
)

// Loader prepares an extractor for use, e.g. waits until a remote model is served.
type Loader interface {
	Load(ctx context.Context) error
}

// Gate guards an extractor behind the loading -> ready | failed state machine.
// Extract fails with domain.ErrExtractorNotReady until loading has succeeded.
type Gate struct {
	inner  domain.Extractor
	loader Loader
	logger *zap.Logger

	mu      sync.RWMutex
	state   domain.ExtractorState
	loadErr error
	done    chan struct{}
	once    sync.Once

	startOnce sync.Once
}

// NewGate wraps inner. A nil loader makes the gate ready immediately.
func NewGate(inner domain.Extractor, loader Loader, logger *zap.Logger) *Gate {
	g := &Gate{
		inner:  inner,
		loader: loader,
		logger: logger,
		state:  domain.ExtractorLoading,
		done:   make(chan struct{}),
	}
	if loader == nil {
		g.state = domain.ExtractorReady
		g.once.Do(func() { close(g.done) })
	}
	return g
}

// Start runs the loader in the background. Calling it more than once has no effect.
func (g *Gate) Start(ctx context.Context) {
	if g.loader == nil {
		return
	}
	g.startOnce.Do(func() { go g.load(ctx) })
}

func (g *Gate) load(ctx context.Context) {
	start := time.Now()
	g.logger.Info("Loading feature extractor")

	err := g.loader.Load(ctx)

	g.mu.Lock()
	if err != nil {
		g.state = domain.ExtractorFailed
		g.loadErr = err
	} else {
		g.state = domain.ExtractorReady
	}
	g.mu.Unlock()
	g.once.Do(func() { close(g.done) })

	if err != nil {
		g.logger.Error("Feature extractor failed to load",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	g.logger.Info("Feature extractor ready", zap.Duration("duration", time.Since(start)))
}

// Status returns the current state and, when failed, the load error.
func (g *Gate) Status() (domain.ExtractorState, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state, g.loadErr
}

// Done is closed once loading has finished, successfully or not.
func (g *Gate) Done() <-chan struct{} { return g.done }

// Extract delegates to the inner extractor once ready.
func (g *Gate) Extract(ctx context.Context, image []byte) (feature.Vector, error) {
	state, loadErr := g.Status()
	switch state {
	case domain.ExtractorReady:
		return g.inner.Extract(ctx, image)
	case domain.ExtractorFailed:
		return nil, fmt.Errorf("%w: load failed: %w", domain.ErrExtractorNotReady, loadErr)
	default:
		return nil, domain.ErrExtractorNotReady
	}
}
