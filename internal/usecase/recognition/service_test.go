package recognition

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/domain/feature"
	"github.com/kailas-cloud/pictura/internal/domain/painting"
	"github.com/kailas-cloud/pictura/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterRecognitionMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockExtractor struct {
	vec feature.Vector
	err error
}

func (m *mockExtractor) Extract(_ context.Context, _ []byte) (feature.Vector, error) {
	return m.vec, m.err
}

type mockCatalog struct {
	mu          sync.Mutex
	paintings   []painting.Painting
	listErr     error
	incrErr     error
	incremented []int64
	incrCtxErr  error
	incrDone    chan struct{}
}

func (m *mockCatalog) ListWithFeatures(_ context.Context) ([]painting.Painting, error) {
	return m.paintings, m.listErr
}

func (m *mockCatalog) IncrementViewCount(ctx context.Context, id int64) error {
	m.mu.Lock()
	m.incremented = append(m.incremented, id)
	m.incrCtxErr = ctx.Err()
	m.mu.Unlock()
	if m.incrDone != nil {
		m.incrDone <- struct{}{}
	}
	return m.incrErr
}

func (m *mockCatalog) increments() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.incremented...)
}

func entry(id int64, vec feature.Vector) painting.Painting {
	return painting.Reconstruct(id, painting.Metadata{Title: "t", Artist: "a"}, vec, 0, 0, 0)
}

// --- Tests ---

func TestRecognize_Match(t *testing.T) {
	cat := &mockCatalog{paintings: []painting.Painting{
		entry(1, feature.Vector{1, 0}),
		entry(2, feature.Vector{0, 1}),
	}}
	svc := New(&mockExtractor{vec: feature.Vector{1, 0}}, cat, 0.6, zap.NewNop())

	res, err := svc.Recognize(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsMatch() {
		t.Fatal("expected match")
	}
	p := res.Painting()
	if p.ID() != 1 || res.Score() != 1 {
		t.Fatalf("unexpected result: id=%d score=%v", p.ID(), res.Score())
	}

	svc.Wait()
	if got := cat.increments(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected view count increment for id 1, got %v", got)
	}
}

func TestRecognize_NoMatchBelowThreshold(t *testing.T) {
	cat := &mockCatalog{paintings: []painting.Painting{entry(1, feature.Vector{0.6, 0.8})}}
	svc := New(&mockExtractor{vec: feature.Vector{1, 0}}, cat, 0.9, zap.NewNop())

	res, err := svc.Recognize(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsMatch() {
		t.Fatal("expected no match")
	}
	if diff := res.Score() - 0.6; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("expected best score 0.6, got %v", res.Score())
	}

	svc.Wait()
	if got := cat.increments(); len(got) != 0 {
		t.Fatalf("no increment expected on no-match, got %v", got)
	}
}

func TestRecognize_EmptyCatalog(t *testing.T) {
	svc := New(&mockExtractor{vec: feature.Vector{1}}, &mockCatalog{}, 0.6, zap.NewNop())

	res, err := svc.Recognize(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsMatch() || res.Score() != 0 {
		t.Fatalf("expected NoMatch(0), got match=%v score=%v", res.IsMatch(), res.Score())
	}
}

func TestRecognize_ExtractorNotReady(t *testing.T) {
	svc := New(&mockExtractor{err: domain.ErrExtractorNotReady}, &mockCatalog{}, 0.6, zap.NewNop())

	_, err := svc.Recognize(context.Background(), []byte("img"))
	if !errors.Is(err, domain.ErrExtractorNotReady) {
		t.Fatalf("expected ErrExtractorNotReady, got %v", err)
	}
}

func TestRecognize_CatalogError(t *testing.T) {
	listErr := errors.New("db down")
	svc := New(&mockExtractor{vec: feature.Vector{1}}, &mockCatalog{listErr: listErr}, 0.6, zap.NewNop())

	_, err := svc.Recognize(context.Background(), []byte("img"))
	if !errors.Is(err, listErr) {
		t.Fatalf("expected catalog error, got %v", err)
	}
}

func TestRecognize_IncrementFailureDoesNotFailRequest(t *testing.T) {
	cat := &mockCatalog{
		paintings: []painting.Painting{entry(7, feature.Vector{1, 1})},
		incrErr:   errors.New("write failed"),
	}
	svc := New(&mockExtractor{vec: feature.Vector{1, 1}}, cat, 0.5, zap.NewNop())

	res, err := svc.Recognize(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsMatch() {
		t.Fatal("expected match")
	}
	svc.Wait()
}

func TestRecognize_IncrementDetachedFromRequest(t *testing.T) {
	cat := &mockCatalog{
		paintings: []painting.Painting{entry(3, feature.Vector{1, 0})},
		incrDone:  make(chan struct{}, 1),
	}
	svc := New(&mockExtractor{vec: feature.Vector{1, 0}}, cat, 0.5, zap.NewNop()).
		WithViewCountTimeout(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := svc.Recognize(ctx, []byte("img")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()

	select {
	case <-cat.incrDone:
	case <-time.After(2 * time.Second):
		t.Fatal("increment not called")
	}
	svc.Wait()

	cat.mu.Lock()
	defer cat.mu.Unlock()
	if cat.incrCtxErr != nil {
		t.Fatalf("increment context must not inherit request cancellation, got %v", cat.incrCtxErr)
	}
}

func TestRecognize_SkipsUnprocessed(t *testing.T) {
	cat := &mockCatalog{paintings: []painting.Painting{
		entry(1, nil),
		entry(2, feature.Vector{0, 1}),
	}}
	svc := New(&mockExtractor{vec: feature.Vector{0, 1}}, cat, 0.6, zap.NewNop())

	res, err := svc.Recognize(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := res.Painting()
	if !res.IsMatch() || p.ID() != 2 {
		t.Fatalf("expected match on id 2, got match=%v id=%d", res.IsMatch(), p.ID())
	}
	svc.Wait()
}

func TestRecognize_AfterWaitSkipsIncrement(t *testing.T) {
	cat := &mockCatalog{paintings: []painting.Painting{entry(4, feature.Vector{1, 0})}}
	svc := New(&mockExtractor{vec: feature.Vector{1, 0}}, cat, 0.5, zap.NewNop())

	svc.Wait()

	res, err := svc.Recognize(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsMatch() {
		t.Fatal("recognition must still answer after Wait")
	}
	svc.Wait()
	if got := cat.increments(); len(got) != 0 {
		t.Fatalf("no increment expected after Wait, got %v", got)
	}
}

func TestRecognize_ConcurrentWithWait(t *testing.T) {
	cat := &mockCatalog{paintings: []painting.Painting{entry(5, feature.Vector{1, 0})}}
	svc := New(&mockExtractor{vec: feature.Vector{1, 0}}, cat, 0.5, zap.NewNop())

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Recognize(context.Background(), []byte("img")); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	svc.Wait()
	wg.Wait()
	svc.Wait()

	if got := len(cat.increments()); got > 20 {
		t.Fatalf("expected at most 20 increments, got %d", got)
	}
}
