// Package painting stores catalog entries in PostgreSQL.
package painting

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/domain/feature"
	dompainting "github.com/kailas-cloud/pictura/internal/domain/painting"
)

// querier is the consumer interface over a pgx pool (ISP).
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo implements the catalog storage contracts of the use cases.
type Repo struct {
	db querier
}

// New creates a painting repository.
func New(db querier) *Repo {
	return &Repo{db: db}
}

// Create inserts a painting and returns it with its assigned id and timestamps.
func (r *Repo) Create(ctx context.Context, p dompainting.Painting) (dompainting.Painting, error) {
	m := p.Metadata()
	row := r.db.QueryRow(ctx, `
		INSERT INTO paintings (title, artist, year, description, museum, link, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+selectColumns,
		m.Title, m.Artist, m.Year, m.Description, m.Museum, m.Link, m.ImageURL,
	)
	created, err := scanRow(row)
	if err != nil {
		return dompainting.Painting{}, fmt.Errorf("insert painting: %w", err)
	}
	return created.toDomain(), nil
}

// Get loads one painting by id.
func (r *Repo) Get(ctx context.Context, id int64) (dompainting.Painting, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM paintings WHERE id = $1`, id)
	got, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dompainting.Painting{}, domain.ErrPaintingNotFound
		}
		return dompainting.Painting{}, fmt.Errorf("select painting: %w", err)
	}
	return got.toDomain(), nil
}

// Update replaces the metadata of an existing painting. Features and view count are untouched.
func (r *Repo) Update(ctx context.Context, id int64, m dompainting.Metadata) (dompainting.Painting, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE paintings
		SET title = $2, artist = $3, year = $4, description = $5, museum = $6,
		    link = $7, image_url = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+selectColumns,
		id, m.Title, m.Artist, m.Year, m.Description, m.Museum, m.Link, m.ImageURL,
	)
	updated, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dompainting.Painting{}, domain.ErrPaintingNotFound
		}
		return dompainting.Painting{}, fmt.Errorf("update painting: %w", err)
	}
	return updated.toDomain(), nil
}

// Delete removes a painting.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM paintings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete painting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaintingNotFound
	}
	return nil
}

// List returns a page of paintings ordered by id, plus the total count.
func (r *Repo) List(ctx context.Context, limit, offset int) ([]dompainting.Painting, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM paintings`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count paintings: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+` FROM paintings ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list paintings: %w", err)
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("scan paintings: %w", err)
	}
	return out, total, nil
}

// Popular returns the most recognized paintings.
func (r *Repo) Popular(ctx context.Context, limit int) ([]dompainting.Painting, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+` FROM paintings ORDER BY view_count DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("popular paintings: %w", err)
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan paintings: %w", err)
	}
	return out, nil
}

// ListWithFeatures returns every painting that has a stored feature vector.
func (r *Repo) ListWithFeatures(ctx context.Context) ([]dompainting.Painting, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+` FROM paintings WHERE features IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list featured paintings: %w", err)
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan paintings: %w", err)
	}
	return out, nil
}

// ListPendingFeatures returns paintings with a reference image URL but no feature vector yet.
func (r *Repo) ListPendingFeatures(ctx context.Context, limit int) ([]dompainting.Painting, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+selectColumns+` FROM paintings
		WHERE features IS NULL AND image_url <> ''
		ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending paintings: %w", err)
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan paintings: %w", err)
	}
	return out, nil
}

// StoreFeatures sets the feature vector of a painting, replacing any previous one.
func (r *Repo) StoreFeatures(ctx context.Context, id int64, vec feature.Vector) error {
	if len(vec) == 0 {
		return fmt.Errorf("store features: %w: empty vector", domain.ErrInvalidInput)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE paintings SET features = $2, updated_at = now() WHERE id = $1`, id, []float32(vec))
	if err != nil {
		return fmt.Errorf("store features: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaintingNotFound
	}
	return nil
}

// IncrementViewCount bumps the recognition counter of a painting by one.
func (r *Repo) IncrementViewCount(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE paintings SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaintingNotFound
	}
	return nil
}

// UpdateDescription replaces the description text.
func (r *Repo) UpdateDescription(ctx context.Context, id int64, desc string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE paintings SET description = $2, updated_at = now() WHERE id = $1`, id, desc)
	if err != nil {
		return fmt.Errorf("update description: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaintingNotFound
	}
	return nil
}
