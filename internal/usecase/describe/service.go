// Package describe generates gallery descriptions for paintings.
package describe

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/domain/painting"
	"github.com/kailas-cloud/pictura/internal/logger"
)

// Source tells where a description came from.
type Source string

// Description sources.
const (
	SourceGenerated Source = "generated"
	SourceTemplate  Source = "template"
)

// Result is a stored description and its origin.
type Result struct {
	Painting painting.Painting
	Text     string
	Source   Source
}

// Service produces and stores descriptions. A nil describer always uses the template.
type Service struct {
	repo      Repository
	describer domain.Describer
	logger    *zap.Logger
}

// New creates a description service.
func New(repo Repository, describer domain.Describer, logger *zap.Logger) *Service {
	return &Service{repo: repo, describer: describer, logger: logger}
}

// Generate builds a description for painting id, stores it and returns it.
// Provider failures fall back to the metadata template and never fail the call.
func (s *Service) Generate(ctx context.Context, id int64) (Result, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("get painting: %w", err)
	}
	meta := p.Metadata()

	text, source := Template(meta), SourceTemplate
	if s.describer != nil {
		res, err := s.describer.Describe(ctx, meta)
		if err != nil {
			logger.FromContextOr(ctx, s.logger).Warn("Description provider failed, using template",
				zap.Int64("painting_id", id),
				zap.Error(err),
			)
		} else {
			text, source = truncate(res.Text, painting.MaxDescriptionLength), SourceGenerated
		}
	}

	if err := s.repo.UpdateDescription(ctx, id, text); err != nil {
		return Result{}, fmt.Errorf("store description: %w", err)
	}

	return Result{Painting: p.WithDescription(text), Text: text, Source: source}, nil
}

// Template builds a plain description from metadata.
func Template(meta painting.Metadata) string {
	var b strings.Builder
	b.WriteString(`"` + meta.Title + `" by ` + meta.Artist)
	if meta.Year != 0 {
		b.WriteString(", " + formatYear(meta.Year))
	}
	b.WriteString(".")
	if meta.Museum != "" {
		b.WriteString(" Held in the collection of " + meta.Museum + ".")
	}
	return b.String()
}

func formatYear(y int) string {
	if y < 0 {
		return strconv.Itoa(-y) + " BC"
	}
	return strconv.Itoa(y)
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes])
}
