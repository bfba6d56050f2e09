package painting

import (
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/pictura/internal/domain/feature"
	dompainting "github.com/kailas-cloud/pictura/internal/domain/painting"
)

// selectColumns is the column list every painting read returns, in scanRow order.
const selectColumns = `id, title, artist, year, description, museum, link, image_url,
	features, view_count, created_at, updated_at`

// paintingRow mirrors one row of the paintings table.
type paintingRow struct {
	ID          int64
	Title       string
	Artist      string
	Year        int32
	Description string
	Museum      string
	Link        string
	ImageURL    string
	Features    []float32
	ViewCount   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func scanRow(row pgx.Row) (paintingRow, error) {
	var r paintingRow
	err := row.Scan(
		&r.ID, &r.Title, &r.Artist, &r.Year, &r.Description, &r.Museum, &r.Link, &r.ImageURL,
		&r.Features, &r.ViewCount, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func (r paintingRow) toDomain() dompainting.Painting {
	var vec feature.Vector
	if len(r.Features) > 0 {
		vec = feature.Vector(r.Features)
	}
	return dompainting.Reconstruct(
		r.ID,
		dompainting.Metadata{
			Title:       r.Title,
			Artist:      r.Artist,
			Year:        int(r.Year),
			Description: r.Description,
			Museum:      r.Museum,
			Link:        r.Link,
			ImageURL:    r.ImageURL,
		},
		vec,
		r.ViewCount,
		r.CreatedAt.UnixMilli(),
		r.UpdatedAt.UnixMilli(),
	)
}

func collectRows(rows pgx.Rows) ([]dompainting.Painting, error) {
	defer rows.Close()

	var out []dompainting.Painting
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
