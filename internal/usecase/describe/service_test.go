package describe

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/domain/painting"
)

// --- Mocks ---

type mockRepo struct {
	p         painting.Painting
	getErr    error
	updateErr error
	stored    string
}

func (m *mockRepo) Get(_ context.Context, _ int64) (painting.Painting, error) {
	return m.p, m.getErr
}

func (m *mockRepo) UpdateDescription(_ context.Context, _ int64, desc string) error {
	m.stored = desc
	return m.updateErr
}

type mockDescriber struct {
	text string
	err  error
}

func (m *mockDescriber) Describe(_ context.Context, _ painting.Metadata) (domain.DescriptionResult, error) {
	return domain.DescriptionResult{Text: m.text, PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10}, m.err
}

var meta = painting.Metadata{Title: "The Night Watch", Artist: "Rembrandt", Year: 1642, Museum: "Rijksmuseum"}

func newRepo() *mockRepo {
	return &mockRepo{p: painting.Reconstruct(1, meta, nil, 0, 0, 0)}
}

// --- Tests ---

func TestGenerate_Provider(t *testing.T) {
	repo := newRepo()
	svc := New(repo, &mockDescriber{text: "A militia company steps out of shadow."}, zap.NewNop())

	res, err := svc.Generate(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceGenerated {
		t.Errorf("source = %s, want generated", res.Source)
	}
	if repo.stored != "A militia company steps out of shadow." {
		t.Errorf("stored %q", repo.stored)
	}
	if res.Painting.Metadata().Description != repo.stored {
		t.Errorf("returned painting must carry the new description")
	}
}

func TestGenerate_ProviderFailureFallsBack(t *testing.T) {
	repo := newRepo()
	svc := New(repo, &mockDescriber{err: domain.ErrDescriptionProviderError}, zap.NewNop())

	res, err := svc.Generate(context.Background(), 1)
	if err != nil {
		t.Fatalf("provider failure must not fail the call: %v", err)
	}
	if res.Source != SourceTemplate {
		t.Errorf("source = %s, want template", res.Source)
	}
	if res.Text != Template(meta) || repo.stored != res.Text {
		t.Errorf("unexpected text %q (stored %q)", res.Text, repo.stored)
	}
}

func TestGenerate_NoProvider(t *testing.T) {
	svc := New(newRepo(), nil, zap.NewNop())
	res, err := svc.Generate(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceTemplate {
		t.Errorf("source = %s, want template", res.Source)
	}
}

func TestGenerate_NotFound(t *testing.T) {
	repo := &mockRepo{getErr: domain.ErrPaintingNotFound}
	svc := New(repo, nil, zap.NewNop())
	if _, err := svc.Generate(context.Background(), 1); !errors.Is(err, domain.ErrPaintingNotFound) {
		t.Fatalf("expected ErrPaintingNotFound, got %v", err)
	}
}

func TestGenerate_StoreError(t *testing.T) {
	repo := newRepo()
	repo.updateErr = errors.New("db down")
	svc := New(repo, nil, zap.NewNop())
	if _, err := svc.Generate(context.Background(), 1); !errors.Is(err, repo.updateErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestTemplate(t *testing.T) {
	tests := []struct {
		name string
		meta painting.Metadata
		want string
	}{
		{"full", meta, `"The Night Watch" by Rembrandt, 1642. Held in the collection of Rijksmuseum.`},
		{"minimal", painting.Metadata{Title: "Untitled", Artist: "Anonymous"}, `"Untitled" by Anonymous.`},
		{"bc", painting.Metadata{Title: "Fresco", Artist: "Unknown", Year: -500}, `"Fresco" by Unknown, 500 BC.`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Template(tt.meta); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
