package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/benchtrack/benchtrack/internal/apperr"
	log "github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// StatusFor maps an error kind to the HTTP status the API answers with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrEditWindowExpired):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError answers with the status for err's kind. Storage details are logged, not returned.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	response := ErrorResponse{Error: http.StatusText(status), Details: err.Error()}
	if status == http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
		response.Details = ""
	}
	WriteJSON(w, status, response)
}

func WriteBadRequest(w http.ResponseWriter, message string, details string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Details: details})
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

// IntParam parses a required integer from a path variable or query value.
func IntParam(value string, name string) (int, error) {
	if value == "" {
		return 0, apperr.Validation("missing required parameter %s", name)
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperr.Validation("parameter %s must be a number", name)
	}
	return parsed, nil
}

// IntListParam parses "1,2, 3" into ints; an empty value yields nil.
func IntListParam(value string, name string) ([]int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var result []int
	for _, part := range strings.Split(value, ",") {
		parsed, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, apperr.Validation("parameter %s must be a comma separated list of numbers", name)
		}
		result = append(result, parsed)
	}
	return result, nil
}
