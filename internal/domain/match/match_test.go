package match

import (
	"math"
	"sync"
	"testing"

	"github.com/kailas-cloud/pictura/internal/domain/feature"
	"github.com/kailas-cloud/pictura/internal/domain/painting"
)

const eps = 1e-6

func entry(id int64, vec feature.Vector) painting.Painting {
	return painting.Reconstruct(id, painting.Metadata{Title: "t", Artist: "a"}, vec, 0, 0, 0)
}

func twoAxes() []painting.Painting {
	return []painting.Painting{
		entry(1, feature.Vector{1, 0}),
		entry(2, feature.Vector{0, 1}),
	}
}

func TestBest_ExactMatch(t *testing.T) {
	r := Best(feature.Vector{1, 0}, twoAxes(), 0.6)
	if !r.IsMatch() {
		t.Fatalf("expected match, got score %f", r.Score())
	}
	p := r.Painting()
	if p.ID() != 1 {
		t.Errorf("expected id 1, got %d", p.ID())
	}
	if math.Abs(r.Score()-1) > eps {
		t.Errorf("expected score 1, got %f", r.Score())
	}
}

func TestBest_BelowThresholdReportsMaxScore(t *testing.T) {
	r := Best(feature.Vector{0.6, 0.8}, twoAxes(), 0.9)
	if r.IsMatch() {
		t.Fatal("expected no match")
	}
	if math.Abs(r.Score()-0.8) > eps {
		t.Errorf("expected best score 0.8, got %f", r.Score())
	}
	p := r.Painting()
	if p.ID() != 0 {
		t.Errorf("no-match result must not carry a painting, got id %d", p.ID())
	}
}

func TestBest_EmptyCandidates(t *testing.T) {
	r := Best(feature.Vector{1, 0}, nil, 0.6)
	if r.IsMatch() || r.Score() != 0 {
		t.Errorf("expected NoMatch(0), got match=%v score=%f", r.IsMatch(), r.Score())
	}
}

func TestBest_SkipsUnprocessedEntries(t *testing.T) {
	candidates := []painting.Painting{
		entry(1, nil),
		entry(2, feature.Vector{}),
	}
	r := Best(feature.Vector{1, 0}, candidates, 0)
	if r.IsMatch() || r.Score() != 0 {
		t.Errorf("expected NoMatch(0), got match=%v score=%f", r.IsMatch(), r.Score())
	}

	candidates = append(candidates, entry(3, feature.Vector{1, 1}))
	r = Best(feature.Vector{1, 0}, candidates, 0.5)
	p := r.Painting()
	if !r.IsMatch() || p.ID() != 3 {
		t.Errorf("expected match on id 3, got match=%v id=%d", r.IsMatch(), p.ID())
	}
}

func TestBest_ThresholdIsStrict(t *testing.T) {
	r := Best(feature.Vector{1, 0}, twoAxes(), 1.0)
	if r.IsMatch() {
		t.Error("score equal to threshold must not match")
	}
	if math.Abs(r.Score()-1) > eps {
		t.Errorf("expected score 1, got %f", r.Score())
	}
}

func TestBest_TieKeepsFirst(t *testing.T) {
	candidates := []painting.Painting{
		entry(10, feature.Vector{1, 0}),
		entry(20, feature.Vector{2, 0}),
		entry(30, feature.Vector{3, 0}),
	}
	r := Best(feature.Vector{5, 0}, candidates, 0.5)
	p := r.Painting()
	if p.ID() != 10 {
		t.Errorf("tie must resolve to first candidate, got %d", p.ID())
	}
}

func TestBest_MismatchedDimensionScoresZero(t *testing.T) {
	candidates := []painting.Painting{
		entry(1, feature.Vector{1, 0, 0}),
		entry(2, feature.Vector{0.5, 0.5}),
	}
	r := Best(feature.Vector{1, 0}, candidates, 0.5)
	p := r.Painting()
	if !r.IsMatch() || p.ID() != 2 {
		t.Errorf("expected match on id 2, got match=%v id=%d", r.IsMatch(), p.ID())
	}
}

func TestBest_NegativeScoresReported(t *testing.T) {
	candidates := []painting.Painting{entry(1, feature.Vector{-1, 0})}
	r := Best(feature.Vector{1, 0}, candidates, 0.6)
	if r.IsMatch() {
		t.Fatal("expected no match")
	}
	if math.Abs(r.Score()+1) > eps {
		t.Errorf("expected best score -1, got %f", r.Score())
	}
}

func TestBest_Deterministic(t *testing.T) {
	candidates := make([]painting.Painting, 50)
	for i := range candidates {
		vec := make(feature.Vector, 64)
		for j := range vec {
			vec[j] = float32((i*31+j*7)%13) * 0.1
		}
		candidates[i] = entry(int64(i+1), vec)
	}
	query := candidates[17].Features().Clone()
	query[0] += 0.05

	first := Best(query, candidates, 0.6)
	fp := first.Painting()
	for range 20 {
		r := Best(query, candidates, 0.6)
		p := r.Painting()
		if math.Float64bits(r.Score()) != math.Float64bits(first.Score()) || p.ID() != fp.ID() {
			t.Fatalf("non-deterministic result: %d/%v vs %d/%v", p.ID(), r.Score(), fp.ID(), first.Score())
		}
	}
}

func TestBest_ConcurrentCalls(t *testing.T) {
	candidates := twoAxes()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := Best(feature.Vector{1, 0}, candidates, 0.6)
			p := r.Painting()
			if !r.IsMatch() || p.ID() != 1 {
				t.Errorf("unexpected result: match=%v id=%d", r.IsMatch(), p.ID())
			}
		}()
	}
	wg.Wait()
}
