// Package httpapi exposes the counter's HTTP API to the scanning page.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/ahinestrog/frontcounter/internal/model"
)

type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message, Details: details})
}

// WriteError maps err onto its taxonomy kind and HTTP status.
func WriteError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	WriteJSONError(w, statusFor(kind), string(kind), err.Error())
}

func statusFor(k model.Kind) int {
	switch k {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindOutOfStock, model.KindExceedsAvailable, model.KindEmptyCart:
		return http.StatusConflict
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindNetwork:
		return http.StatusServiceUnavailable
	case model.KindStore:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
