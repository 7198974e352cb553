package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"supplies-portal/internal/forecast"
	"supplies-portal/internal/platform/logger"
	"supplies-portal/internal/services"
	"supplies-portal/internal/tabular"
	"supplies-portal/internal/web"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error          string   `json:"error"`
	Message        string   `json:"message,omitempty"`
	MissingColumns []string `json:"missing_columns,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Printf("Error encoding JSON response: %v\n", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// respondErrorWithRequest sends an error response (HTML for HTMX, JSON otherwise)
func respondErrorWithRequest(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `<div role="alert" class="alert alert-error"><strong>Error</strong> %s</div>`,
			template.HTMLEscapeString(message))
		return
	}
	respondError(w, statusCode, message)
}

// errorStatus maps service and store errors to an HTTP status and a message
// safe to show the user. Unrecognised errors are 500s.
func errorStatus(err error) (int, string, []string) {
	var missing *forecast.MissingColumnsError
	switch {
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity, missing.Error(), missing.Names()
	case errors.Is(err, tabular.ErrEmptyHeader):
		return http.StatusUnprocessableEntity, "The worksheet has no header row", nil
	case errors.Is(err, services.ErrUnknownWorksheet), errors.Is(err, tabular.ErrTableNotFound):
		return http.StatusNotFound, "Worksheet not found", nil
	case errors.Is(err, services.ErrNoWorksheets):
		return http.StatusNotFound, "None of the expected worksheets exist", nil
	}
	return http.StatusInternalServerError, "An error occurred", nil
}

// respondServiceError reports err to an API client, logging anything that
// is not the client's fault.
func respondServiceError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	status, message, missing := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Fields{"path": r.URL.Path, "err": err})
	}

	if missing != nil && r.Header.Get("HX-Request") != "true" {
		respondJSON(w, status, ErrorResponse{
			Error:          http.StatusText(status),
			Message:        message,
			MissingColumns: missing,
		})
		return
	}
	respondErrorWithRequest(w, r, status, message)
}

// renderPage executes a page template into a buffer first so a template
// error can still become a clean 500.
func renderPage(w http.ResponseWriter, statusCode int, name string, page *web.Page, log logger.Logger) {
	var buf bytes.Buffer
	if err := web.Render(&buf, name, page); err != nil {
		log.Error("failed to render template", logger.Fields{"template": name, "err": err})
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	buf.WriteTo(w)
}
