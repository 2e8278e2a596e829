package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// apiError carries an HTTP status plus a human-readable detail, rendered as
// the {"detail": ...} envelope.
type apiError struct {
	status int
	detail string
}

func (e *apiError) Error() string {
	return e.detail
}

func invalidParameter(parameter, detail string) *apiError {
	return &apiError{
		status: http.StatusBadRequest,
		detail: fmt.Sprintf("Invalid parameter '%s': %s", parameter, detail),
	}
}

func notFound(resource string, identifier interface{}) *apiError {
	return &apiError{
		status: http.StatusNotFound,
		detail: fmt.Sprintf("%s with identifier %v not found", resource, identifier),
	}
}

func internalError(detail string) *apiError {
	return &apiError{
		status: http.StatusInternalServerError,
		detail: "Database error: " + detail,
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, err *apiError) {
	writeJSON(w, err.status, errorResponse{Detail: err.detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
