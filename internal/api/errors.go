package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"oairag/internal/models"
	"oairag/internal/util"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	if code >= 500 {
		s.log.Error("request failed", zap.Int("status", code), zap.String("code", apiErr.Code), zap.Error(err))
	}
	writeJSON(w, code, models.ErrorResponse{
		Status:  "error",
		Message: apiErr.Message,
		Code:    apiErr.Code,
	})
}

// statusFor maps the error taxonomy onto the contractual status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, util.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, util.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusBadGateway:
		return apiError{Code: "RAG-API-5020", Message: "Background workflow service unavailable. Retry shortly."}
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{Code: "RAG-DB-5001", Message: "Database schema is not initialized. Run migrations and retry."}
		case strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{Code: "RAG-DB-5002", Message: "Database connection is unavailable. Check local services and retry."}
		case errors.Is(err, util.ErrDependency):
			return apiError{Code: "RAG-DEP-5003", Message: "An upstream model or search capability failed. Retry later."}
		default:
			return apiError{Code: "RAG-API-5000", Message: "Internal server error. Please retry or check service logs."}
		}
	case status == http.StatusNotFound:
		return apiError{Code: "RAG-API-4004", Message: clientMessage(err, "Requested resource was not found.")}
	case status == http.StatusConflict:
		return apiError{Code: "RAG-API-4009", Message: clientMessage(err, "Resource already exists.")}
	case status == http.StatusUnprocessableEntity:
		return apiError{Code: "RAG-API-4022", Message: clientMessage(err, "Invalid request. Check inputs and retry.")}
	}
	return apiError{Code: "RAG-API-4000", Message: clientMessage(err, "Request failed.")}
}

// clientMessage surfaces our own 4xx error text, which never carries internals.
func clientMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return err.Error()
}
