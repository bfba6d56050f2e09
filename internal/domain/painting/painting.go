package painting

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/pictura/internal/domain/feature"
)

// Field limits.
const (
	MaxTitleLength       = 512
	MaxArtistLength      = 256
	MaxMuseumLength      = 256
	MaxDescriptionLength = 8192
	MinYear              = -3000
	MaxYear              = 2100
)

// Metadata is the descriptive payload of a catalog entry.
type Metadata struct {
	Title       string
	Artist      string
	Year        int // 0 = unknown
	Description string
	Museum      string
	Link        string
	ImageURL    string
}

// Painting is the catalog entry aggregate (immutable value object).
type Painting struct {
	id        int64
	meta      Metadata
	features  feature.Vector
	viewCount int64
	createdAt int64 // unix millis
	updatedAt int64 // unix millis
}

// New validates metadata and creates a Painting that is not yet persisted (id 0).
func New(meta Metadata) (Painting, error) {
	meta = normalize(meta)
	if err := Validate(meta); err != nil {
		return Painting{}, err
	}
	return Painting{meta: meta}, nil
}

// Validate checks metadata field constraints.
func Validate(meta Metadata) error {
	if meta.Title == "" {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(meta.Title) > MaxTitleLength {
		return fmt.Errorf("title too long (max %d)", MaxTitleLength)
	}
	if meta.Artist == "" {
		return fmt.Errorf("artist is required")
	}
	if utf8.RuneCountInString(meta.Artist) > MaxArtistLength {
		return fmt.Errorf("artist too long (max %d)", MaxArtistLength)
	}
	if utf8.RuneCountInString(meta.Museum) > MaxMuseumLength {
		return fmt.Errorf("museum too long (max %d)", MaxMuseumLength)
	}
	if utf8.RuneCountInString(meta.Description) > MaxDescriptionLength {
		return fmt.Errorf("description too long (max %d)", MaxDescriptionLength)
	}
	if meta.Year != 0 && (meta.Year < MinYear || meta.Year > MaxYear) {
		return fmt.Errorf("year must be between %d and %d", MinYear, MaxYear)
	}
	if err := validateURL("link", meta.Link); err != nil {
		return err
	}
	return validateURL("image_url", meta.ImageURL)
}

// Reconstruct creates a Painting without validation (storage hydration).
func Reconstruct(
	id int64, meta Metadata, features feature.Vector, viewCount, createdAt, updatedAt int64,
) Painting {
	return Painting{
		id:        id,
		meta:      meta,
		features:  features,
		viewCount: viewCount,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the catalog identifier.
func (p *Painting) ID() int64 { return p.id }

// Metadata returns the descriptive payload.
func (p *Painting) Metadata() Metadata { return p.meta }

// Title returns the painting title.
func (p *Painting) Title() string { return p.meta.Title }

// Artist returns the painting artist.
func (p *Painting) Artist() string { return p.meta.Artist }

// Features returns the stored feature vector, nil if not yet processed.
func (p *Painting) Features() feature.Vector { return p.features }

// HasFeatures reports whether a feature vector is stored.
func (p *Painting) HasFeatures() bool { return len(p.features) > 0 }

// ViewCount returns how many times the painting has been recognized.
func (p *Painting) ViewCount() int64 { return p.viewCount }

// CreatedAt returns the creation time in unix millis.
func (p *Painting) CreatedAt() int64 { return p.createdAt }

// UpdatedAt returns the last update time in unix millis.
func (p *Painting) UpdatedAt() int64 { return p.updatedAt }

// WithID returns a copy carrying the given identifier.
func (p *Painting) WithID(id int64) Painting {
	c := *p
	c.id = id
	return c
}

// WithDescription returns a copy with the description replaced.
func (p *Painting) WithDescription(desc string) Painting {
	c := *p
	c.meta.Description = desc
	return c
}

func normalize(meta Metadata) Metadata {
	meta.Title = strings.TrimSpace(meta.Title)
	meta.Artist = strings.TrimSpace(meta.Artist)
	meta.Museum = strings.TrimSpace(meta.Museum)
	meta.Description = strings.TrimSpace(meta.Description)
	meta.Link = strings.TrimSpace(meta.Link)
	meta.ImageURL = strings.TrimSpace(meta.ImageURL)
	return meta
}

func validateURL(name, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL", name)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
