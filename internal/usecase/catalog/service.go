// Package catalog manages painting metadata.
package catalog

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/domain/painting"
)

// Paging limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is one slice of the catalog.
type Page struct {
	Items  []painting.Painting
	Total  int
	Limit  int
	Offset int
}

// Service handles catalog CRUD operations.
type Service struct {
	repo Repository
}

// New creates a catalog service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and stores a new painting.
func (s *Service) Create(ctx context.Context, meta painting.Metadata) (painting.Painting, error) {
	p, err := painting.New(meta)
	if err != nil {
		return painting.Painting{}, fmt.Errorf("validate painting: %w: %w", domain.ErrInvalidInput, err)
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return painting.Painting{}, fmt.Errorf("create painting: %w", err)
	}
	return created, nil
}

// Get retrieves a painting by id.
func (s *Service) Get(ctx context.Context, id int64) (painting.Painting, error) {
	if id <= 0 {
		return painting.Painting{}, domain.ErrPaintingNotFound
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return painting.Painting{}, fmt.Errorf("get painting: %w", err)
	}
	return p, nil
}

// Update validates and replaces the metadata of a painting.
func (s *Service) Update(ctx context.Context, id int64, meta painting.Metadata) (painting.Painting, error) {
	if id <= 0 {
		return painting.Painting{}, domain.ErrPaintingNotFound
	}
	p, err := painting.New(meta)
	if err != nil {
		return painting.Painting{}, fmt.Errorf("validate painting: %w: %w", domain.ErrInvalidInput, err)
	}

	updated, err := s.repo.Update(ctx, id, p.Metadata())
	if err != nil {
		return painting.Painting{}, fmt.Errorf("update painting: %w", err)
	}
	return updated, nil
}

// Delete removes a painting.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return domain.ErrPaintingNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete painting: %w", err)
	}
	return nil
}

// List returns a page of paintings. limit is clamped to [1, MaxLimit], 0 means DefaultLimit.
func (s *Service) List(ctx context.Context, limit, offset int) (Page, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return Page{}, err
	}
	if offset < 0 {
		return Page{}, fmt.Errorf("offset must be non-negative: %w", domain.ErrInvalidInput)
	}

	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return Page{}, fmt.Errorf("list paintings: %w", err)
	}
	return Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Popular returns the most frequently recognized paintings.
func (s *Service) Popular(ctx context.Context, limit int) ([]painting.Painting, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.Popular(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("popular paintings: %w", err)
	}
	return items, nil
}

func normalizeLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return DefaultLimit, nil
	case limit < 0:
		return 0, fmt.Errorf("limit must be positive: %w", domain.ErrInvalidInput)
	case limit > MaxLimit:
		return MaxLimit, nil
	default:
		return limit, nil
	}
}
