package chi

import (
	"time"

	dombatch "github.com/kailas-cloud/pictura/internal/domain/batch"
	"github.com/kailas-cloud/pictura/internal/domain/painting"
	domusage "github.com/kailas-cloud/pictura/internal/domain/usage"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.Code.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodePaintingNotFound  ErrorCode = "painting_not_found"
	ErrorCodeInvalidImage      ErrorCode = "invalid_image"
	ErrorCodeImageTooLarge     ErrorCode = "image_too_large"
	ErrorCodeExtractorNotReady ErrorCode = "extractor_not_ready"
	ErrorCodeExtractionFailed  ErrorCode = "extraction_failed"
	ErrorCodeVectorDimMismatch ErrorCode = "vector_dim_mismatch"
	ErrorCodeDescriptionFailed ErrorCode = "description_provider_error"
	ErrorCodeNoImageSource     ErrorCode = "no_image_source"
	ErrorCodeBudgetExceeded    ErrorCode = "description_budget_exceeded"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

const notRecognizedMessage = "Painting not recognized"

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// PaintingRequest is the body of create and update calls.
type PaintingRequest struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Year        int    `json:"year,omitempty"`
	Description string `json:"description,omitempty"`
	Museum      string `json:"museum,omitempty"`
	Link        string `json:"link,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Painting is the public representation of a catalog entry.
type Painting struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	Year        *int      `json:"year,omitempty"`
	Description string    `json:"description,omitempty"`
	Museum      string    `json:"museum,omitempty"`
	Link        string    `json:"link,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	ViewCount   int64     `json:"view_count"`
	HasFeatures bool      `json:"has_features"`
	Dimensions  *int      `json:"dimensions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RecognitionResponse is the reply of POST /recognize.
type RecognitionResponse struct {
	Success  bool      `json:"success"`
	Painting *Painting `json:"painting,omitempty"`
	Score    float64   `json:"score"`
	Message  string    `json:"message,omitempty"`
}

// PaintingListResponse is one page of the catalog.
type PaintingListResponse struct {
	Items  []Painting `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// PopularResponse lists the most recognized paintings.
type PopularResponse struct {
	Items []Painting `json:"items"`
}

// DescriptionResponse is the reply of the description endpoint.
type DescriptionResponse struct {
	PaintingID  int64  `json:"painting_id"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// BatchResultItem reports one painting of a batch run.
type BatchResultItem struct {
	ID         int64          `json:"id"`
	Status     string         `json:"status"`
	Dimensions *int           `json:"dimensions,omitempty"`
	Error      *ErrorResponse `json:"error,omitempty"`
}

// BatchResponse is the reply of POST /admin/features/process.
type BatchResponse struct {
	Items     []BatchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// UsageResponse reports description token consumption for a period.
type UsageResponse struct {
	Period           string    `json:"period"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TokensUsed       int64     `json:"tokens_used"`
	TokensLimit      int64     `json:"tokens_limit"`
	TokensRemaining  int64     `json:"tokens_remaining"`
	Exhausted        bool      `json:"exhausted"`
}

// HealthResponse is the reply of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (req PaintingRequest) toMetadata() painting.Metadata {
	return painting.Metadata{
		Title:       req.Title,
		Artist:      req.Artist,
		Year:        req.Year,
		Description: req.Description,
		Museum:      req.Museum,
		Link:        req.Link,
		ImageURL:    req.ImageURL,
	}
}

func paintingToDTO(p painting.Painting) Painting {
	m := p.Metadata()
	out := Painting{
		ID:          p.ID(),
		Title:       m.Title,
		Artist:      m.Artist,
		Description: m.Description,
		Museum:      m.Museum,
		Link:        m.Link,
		ImageURL:    m.ImageURL,
		ViewCount:   p.ViewCount(),
		HasFeatures: p.HasFeatures(),
		CreatedAt:   time.UnixMilli(p.CreatedAt()).UTC(),
		UpdatedAt:   time.UnixMilli(p.UpdatedAt()).UTC(),
	}
	if m.Year != 0 {
		y := m.Year
		out.Year = &y
	}
	if p.HasFeatures() {
		d := p.Features().Dim()
		out.Dimensions = &d
	}
	return out
}

func paintingsToDTO(ps []painting.Painting) []Painting {
	out := make([]Painting, len(ps))
	for i, p := range ps {
		out[i] = paintingToDTO(p)
	}
	return out
}

func usageToDTO(r domusage.Report) UsageResponse {
	used := r.Used()
	return UsageResponse{
		Period:           string(r.Period()),
		PeriodStart:      time.UnixMilli(r.PeriodStart()).UTC(),
		PeriodEnd:        time.UnixMilli(r.PeriodEnd()).UTC(),
		PromptTokens:     used.Prompt,
		CompletionTokens: used.Completion,
		TokensUsed:       r.TokensUsed(),
		TokensLimit:      r.TokensLimit(),
		TokensRemaining:  r.TokensRemaining(),
		Exhausted:        r.IsExhausted(),
	}
}

func batchResultToDTO(r dombatch.Result) BatchResultItem {
	item := BatchResultItem{
		ID:     r.ID(),
		Status: string(r.Status()),
	}
	if r.Status() == dombatch.StatusOK {
		d := r.Dim()
		item.Dimensions = &d
	}
	if r.Err() != nil {
		item.Error = &ErrorResponse{
			Code:    errorCode(r.Err()),
			Message: safeDomainMessage(r.Err()),
		}
	}
	return item
}
