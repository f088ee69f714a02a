// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/flickfeed/flickfeed/internal/logging"
	"github.com/flickfeed/flickfeed/internal/models"
)

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondError sends an error response in the standard envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Warn().
			Str("code", code).
			Err(err).
			Msg("api error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	})
}

// respondData sends a success envelope with timing metadata.
func respondData(w http.ResponseWriter, r *http.Request, data interface{}, start time.Time) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			RequestID:   logging.RequestIDFromContext(r.Context()),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// validateRequest validates a request struct. A non-nil result is the
// client-facing validation error.
func validateRequest(validate *validator.Validate, v interface{}) *models.APIError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	return &models.APIError{
		Code:    "VALIDATION_ERROR",
		Message: "invalid request parameters",
		Details: err.Error(),
	}
}

// getIntParam extracts an integer query parameter with a default value.
// Malformed values fall back to the default; range checks belong to the
// request validator.
func getIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
