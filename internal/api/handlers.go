// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

// Package api provides the HTTP surface of the feed service: the composed
// feed, the genre row, item lookups and the interest/verdict flows.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/flickfeed/flickfeed/internal/feed"
	"github.com/flickfeed/flickfeed/internal/models"
)

// Composer is the feed engine surface the handlers invoke.
type Composer interface {
	ComposeFeed(ctx context.Context, userID string) models.Feed
	GenreRow(ctx context.Context, userID string, genreID, limit int) (models.RecommendationRow, error)
}

// ItemStore is the content store surface the handlers invoke.
type ItemStore interface {
	Get(ctx context.Context, id models.ContentID) (models.CachedRecord, bool, error)
	GetStats(ctx context.Context, id models.ContentID) (models.ContentStats, error)
	IncrementStat(ctx context.Context, id models.ContentID, path string, delta int64) error
}

// Handler holds the HTTP handlers and their collaborators.
type Handler struct {
	composer Composer
	store    ItemStore
	validate *validator.Validate
	started  time.Time
}

// NewHandler creates the handler set.
func NewHandler(composer Composer, store ItemStore) *Handler {
	return &Handler{
		composer: composer,
		store:    store,
		validate: validator.New(),
		started:  time.Now(),
	}
}

// GetFeed handles GET /api/v1/feed/{userID}.
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", "user id is required", nil)
		return
	}

	result := h.composer.ComposeFeed(r.Context(), userID)
	respondData(w, r, result, start)
}

// genreRowRequest carries the validated genre-row parameters.
type genreRowRequest struct {
	GenreID int `validate:"required,gt=0"`
	Limit   int `validate:"gte=0,lte=50"`
}

// GetGenreRow handles GET /api/v1/feed/{userID}/genre/{genreID}?limit=.
func (h *Handler) GetGenreRow(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID := chi.URLParam(r, "userID")
	req := genreRowRequest{
		GenreID: urlIntParam(r, "genreID"),
		Limit:   getIntParam(r, "limit", 0),
	}
	if apiErr := validateRequest(h.validate, &req); apiErr != nil {
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	row, err := h.composer.GenreRow(r.Context(), userID, req.GenreID, req.Limit)
	if err != nil {
		if errors.Is(err, feed.ErrInvalidInput) {
			respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to build genre row", err)
		return
	}
	respondData(w, r, row, start)
}

// itemResponse joins the cached record with its stat counters.
type itemResponse struct {
	Item     models.ContentItem  `json:"item"`
	CachedAt time.Time           `json:"cached_at"`
	Stats    models.ContentStats `json:"stats"`
}

// GetItem handles GET /api/v1/items/{kind}/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := parseContentID(w, r)
	if !ok {
		return
	}

	rec, found, err := h.store.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "item lookup failed", err)
		return
	}
	if !found {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "item not cached", nil)
		return
	}

	stats, err := h.store.GetStats(r.Context(), id)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "stats lookup failed", err)
		return
	}

	respondData(w, r, itemResponse{Item: rec.Item, CachedAt: rec.CachedAt, Stats: stats}, start)
}

// interestRequest is the optional POST body for the interest endpoint.
type interestRequest struct {
	// Verdict, when present, counts a review verdict instead of plain
	// interest.
	Verdict string `json:"verdict,omitempty" validate:"omitempty,oneof=loved liked ok disliked"`
}

// PostInterest handles POST /api/v1/items/{kind}/{id}/interest.
func (h *Handler) PostInterest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, ok := parseContentID(w, r)
	if !ok {
		return
	}

	var req interestRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", "malformed request body", err)
			return
		}
	}
	if apiErr := validateRequest(h.validate, &req); apiErr != nil {
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	path := "interest"
	if req.Verdict != "" {
		path = "verdict:" + req.Verdict
	}
	if err := h.store.IncrementStat(r.Context(), id, path, 1); err != nil {
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to record interest", err)
		return
	}

	stats, err := h.store.GetStats(r.Context(), id)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "stats lookup failed", err)
		return
	}
	respondData(w, r, stats, start)
}

// healthResponse is the health endpoint payload.
type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.started).Seconds(),
	}, time.Now())
}

// parseContentID reads and validates the {kind}/{id} route params. On
// failure it writes the error response and returns ok=false.
func parseContentID(w http.ResponseWriter, r *http.Request) (models.ContentID, bool) {
	kind, err := models.ParseMediaKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", "kind must be movie or tv", nil)
		return models.ContentID{}, false
	}

	id := urlIntParam(r, "id")
	if id <= 0 {
		respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", "id must be a positive integer", nil)
		return models.ContentID{}, false
	}

	return models.ContentID{Kind: kind, ID: id}, true
}

// urlIntParam parses an integer chi route parameter; 0 on failure.
func urlIntParam(r *http.Request, name string) int {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0
	}
	return v
}
