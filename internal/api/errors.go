package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kheast/cb-config/internal/codec"
	"github.com/kheast/cb-config/internal/document"
	"github.com/kheast/cb-config/internal/lifecycle"
	"github.com/kheast/cb-config/internal/schema"
	"github.com/kheast/cb-config/internal/storage"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// writeDomainError maps core errors onto HTTP statuses. Validation failures
// carry the full per-field report so the admin UI can render it inline.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		fields := make([]map[string]string, len(verr.Fields))
		for i, f := range verr.Fields {
			fields[i] = map[string]string{"path": f.Path, "message": f.Message}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "configuration failed validation",
				"type":    "validation_error",
				"fields":  fields,
			},
		})
		return
	}

	var perr *codec.ParseError
	if errors.As(err, &perr) {
		httpError(w, http.StatusBadRequest, "parse_error", "%v", perr)
		return
	}

	var ferr *lifecycle.FileError
	if errors.As(err, &ferr) {
		httpError(w, http.StatusBadGateway, "file_error", "%v", ferr)
		return
	}

	switch {
	case errors.Is(err, storage.ErrNotFound) || errors.Is(err, document.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "configuration not found")
	case errors.Is(err, storage.ErrConflict):
		httpError(w, http.StatusConflict, "conflict", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}
