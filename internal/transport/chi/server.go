// Package chi exposes the recognition, catalog and admin HTTP API on a chi router.
package chi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/pictura/internal/domain/batch"
	domusage "github.com/kailas-cloud/pictura/internal/domain/usage"
	catalogpkg "github.com/kailas-cloud/pictura/internal/usecase/catalog"
	describeuc "github.com/kailas-cloud/pictura/internal/usecase/describe"
	healthuc "github.com/kailas-cloud/pictura/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/pictura/internal/usecase/ingest"
	recognitionuc "github.com/kailas-cloud/pictura/internal/usecase/recognition"
	usageuc "github.com/kailas-cloud/pictura/internal/usecase/usage"
)

// DefaultMaxUploadBytes caps uploaded images unless configured otherwise.
const DefaultMaxUploadBytes = 10 << 20

// Server holds the HTTP handlers.
type Server struct {
	recognition    *recognitionuc.Service
	catalog        *catalogpkg.Service
	ingest         *ingestuc.Service
	describe       *describeuc.Service
	usage          *usageuc.Service
	health         *healthuc.Service
	logger         *zap.Logger
	maxUploadBytes int64
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	recognition *recognitionuc.Service,
	catalog *catalogpkg.Service,
	ingest *ingestuc.Service,
	describe *describeuc.Service,
	usage *usageuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		recognition:    recognition,
		catalog:        catalog,
		ingest:         ingest,
		describe:       describe,
		usage:          usage,
		health:         health,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
		errorHandlers:  defaultErrorHandlers(),
	}
}

// WithMaxUploadBytes configures the upload size limit.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// Routes registers all endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recognize", s.Recognize)

		r.Get("/paintings", s.ListPaintings)
		r.Get("/paintings/popular", s.PopularPaintings)
		r.Get("/paintings/{id}", s.GetPainting)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/paintings", s.CreatePainting)
			r.Put("/paintings/{id}", s.UpdatePainting)
			r.Delete("/paintings/{id}", s.DeletePainting)
			r.Put("/paintings/{id}/features", s.StoreFeatures)
			r.Post("/paintings/{id}/description", s.GenerateDescription)
			r.Post("/features/process", s.ProcessPending)
			r.Get("/usage", s.GetUsage)
		})
	})
}

// Recognize handles POST /api/v1/recognize.
func (s *Server) Recognize(w http.ResponseWriter, r *http.Request) {
	image, err := readImage(w, r, s.maxUploadBytes)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	res, err := s.recognition.Recognize(r.Context(), image)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if !res.IsMatch() {
		writeJSON(w, http.StatusOK, RecognitionResponse{
			Success: false,
			Score:   res.Score(),
			Message: notRecognizedMessage,
		})
		return
	}

	p := paintingToDTO(res.Painting())
	writeJSON(w, http.StatusOK, RecognitionResponse{
		Success:  true,
		Painting: &p,
		Score:    res.Score(),
	})
}

// ListPaintings handles GET /api/v1/paintings.
func (s *Server) ListPaintings(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid limit parameter")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid offset parameter")
		return
	}

	page, err := s.catalog.List(r.Context(), limit, offset)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PaintingListResponse{
		Items:  paintingsToDTO(page.Items),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// PopularPaintings handles GET /api/v1/paintings/popular.
func (s *Server) PopularPaintings(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid limit parameter")
		return
	}

	items, err := s.catalog.Popular(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PopularResponse{Items: paintingsToDTO(items)})
}

// GetPainting handles GET /api/v1/paintings/{id}.
func (s *Server) GetPainting(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bindID(w, r)
	if !ok {
		return
	}

	p, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, paintingToDTO(p))
}

// CreatePainting handles POST /api/v1/admin/paintings.
func (s *Server) CreatePainting(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePainting(w, r)
	if !ok {
		return
	}

	p, err := s.catalog.Create(r.Context(), req.toMetadata())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, paintingToDTO(p))
}

// UpdatePainting handles PUT /api/v1/admin/paintings/{id}.
func (s *Server) UpdatePainting(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bindID(w, r)
	if !ok {
		return
	}
	req, ok := decodePainting(w, r)
	if !ok {
		return
	}

	p, err := s.catalog.Update(r.Context(), id, req.toMetadata())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, paintingToDTO(p))
}

// DeletePainting handles DELETE /api/v1/admin/paintings/{id}.
func (s *Server) DeletePainting(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bindID(w, r)
	if !ok {
		return
	}

	if err := s.catalog.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StoreFeatures handles PUT /api/v1/admin/paintings/{id}/features.
func (s *Server) StoreFeatures(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bindID(w, r)
	if !ok {
		return
	}

	image, err := readImage(w, r, s.maxUploadBytes)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	p, err := s.ingest.StoreFeatures(r.Context(), id, image)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, paintingToDTO(p))
}

// ProcessPending handles POST /api/v1/admin/features/process.
func (s *Server) ProcessPending(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid limit parameter")
		return
	}

	results, err := s.ingest.ProcessPending(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]BatchResultItem, len(results))
	for i, res := range results {
		items[i] = batchResultToDTO(res)
	}
	succeeded, failed := dombatch.Summarize(results)

	writeJSON(w, http.StatusOK, BatchResponse{
		Items:     items,
		Succeeded: succeeded,
		Failed:    failed,
	})
}

// GenerateDescription handles POST /api/v1/admin/paintings/{id}/description.
func (s *Server) GenerateDescription(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bindID(w, r)
	if !ok {
		return
	}

	res, err := s.describe.Generate(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DescriptionResponse{
		PaintingID:  id,
		Description: res.Text,
		Source:      string(res.Source),
	})
}

// GetUsage handles GET /api/v1/admin/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	report := s.usage.GetReport(r.Context(), period)
	writeJSON(w, http.StatusOK, usageToDTO(report))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) bindID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid painting id")
		return 0, false
	}
	return id, true
}

func decodePainting(w http.ResponseWriter, r *http.Request) (PaintingRequest, bool) {
	var req PaintingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return PaintingRequest{}, false
	}
	return req, true
}
