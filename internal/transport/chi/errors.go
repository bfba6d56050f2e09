package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/logger"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// sentinelErrors maps every client-visible sentinel to its status and code, checked in order.
var sentinelErrors = []struct {
	err    error
	status int
	code   ErrorCode
}{
	{domain.ErrPaintingNotFound, http.StatusNotFound, ErrorCodePaintingNotFound},
	{domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeValidationFailed},
	{domain.ErrInvalidImage, http.StatusBadRequest, ErrorCodeInvalidImage},
	{domain.ErrImageTooLarge, http.StatusRequestEntityTooLarge, ErrorCodeImageTooLarge},
	{domain.ErrNoImageSource, http.StatusBadRequest, ErrorCodeNoImageSource},
	{domain.ErrExtractorNotReady, http.StatusServiceUnavailable, ErrorCodeExtractorNotReady},
	{domain.ErrVectorDimMismatch, http.StatusBadGateway, ErrorCodeVectorDimMismatch},
	{domain.ErrExtraction, http.StatusBadGateway, ErrorCodeExtractionFailed},
	{domain.ErrDescriptionProviderError, http.StatusBadGateway, ErrorCodeDescriptionFailed},
	{domain.ErrDescriptionBudgetExceeded, http.StatusTooManyRequests, ErrorCodeBudgetExceeded},
}

func defaultErrorHandlers() []errorHandler {
	hs := make([]errorHandler, 0, len(sentinelErrors))
	for _, s := range sentinelErrors {
		hs = append(hs, sentinelHandler(s.err, s.status, s.code))
	}
	return hs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range sentinelErrors {
		if errors.Is(err, s.err) {
			return s.err.Error()
		}
	}
	return "internal error"
}

// errorCode maps an error to its client code.
func errorCode(err error) ErrorCode {
	for _, s := range sentinelErrors {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return ErrorCodeInternalError
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
