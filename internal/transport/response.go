// Package transport contains the HTTP router, middleware chain, and all
// request handlers of the console BFF.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pitabwire/crmconsole/internal/apiclient"
	"github.com/pitabwire/crmconsole/model"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// statusForKind maps error kinds to HTTP status codes.
var statusForKind = map[model.ErrorKind]int{
	model.KindValidation:  http.StatusUnprocessableEntity,
	model.KindTransport:   http.StatusBadGateway,
	model.KindTimeout:     http.StatusGatewayTimeout,
	model.KindAuth:        http.StatusUnauthorized,
	model.KindNotFound:    http.StatusNotFound,
	model.KindServer:      http.StatusBadGateway,
	model.KindUnavailable: http.StatusServiceUnavailable,
	model.KindInternal:    http.StatusInternalServerError,
}

// statusFor returns the response status for e. Upstream 403s and 4xx
// server errors keep their status; upstream 5xx become 502.
func statusFor(e *model.Error) int {
	switch {
	case e.Kind == model.KindAuth && e.Status == http.StatusForbidden:
		return http.StatusForbidden
	case e.Kind == model.KindServer && e.Status >= 400 && e.Status < 500:
		return e.Status
	}
	if status, ok := statusForKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes err as {"error": {...}}. Errors that are not a
// *model.Error become a generic internal error.
func WriteError(w http.ResponseWriter, err error) {
	var e *model.Error
	if !errors.As(err, &e) {
		e = model.NewInternalError(err)
	}

	type errorResponse struct {
		Error *model.Error `json:"error"`
	}
	WriteJSON(w, statusFor(e), errorResponse{Error: e})
}

// WriteValidationError writes a 422 with a single field detail.
func WriteValidationError(w http.ResponseWriter, field, code, msg string) {
	WriteError(w, model.NewValidationError([]model.FieldError{{Field: field, Code: code, Message: msg}}))
}

// WriteBlob streams a downloaded file as an attachment.
func WriteBlob(w http.ResponseWriter, blob *apiclient.Blob) {
	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", blob.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Body)
}

// decodeJSON reads the request body into v. A malformed body is a
// validation error.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError([]model.FieldError{{
			Field:   "body",
			Code:    "invalid_json",
			Message: "Request body is not valid JSON",
		}})
	}
	return nil
}
