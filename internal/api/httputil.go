package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ppiankov/redline/internal/model"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON error envelope. Description is omitted for server
// side failures so internals never reach callers.
type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Field       string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates typed errors to HTTP responses.
func writeError(w http.ResponseWriter, err error) {
	var (
		ve *model.ValidationError
		nf *model.NotFoundError
		ue *model.UpstreamServiceError
		se *model.StorageError
		ce *model.ConfigurationError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation_error", Description: ve.Error(), Field: ve.Field})
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Description: nf.Error()})
	case errors.As(err, &ue):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "upstream_unavailable"})
	case errors.As(err, &se):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "storage_error"})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "configuration_error"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
	}
}

// decodeJSON reads a bounded JSON body into dst, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Description: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}
