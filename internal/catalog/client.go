// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

// Package catalog provides a read-only client for the external discovery/
// search/detail API (TMDB-shaped). The exported Client swallows upstream
// failures: every call degrades to an empty result so generators can treat
// "no data" uniformly. Persistence is not this package's job; the content
// store owns caching.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/flickfeed/flickfeed/internal/config"
	"github.com/flickfeed/flickfeed/internal/models"
)

// Filters narrow a discover call.
type Filters struct {
	// Language filters by original language (ISO 639-1).
	Language string

	// GenreIDs filters to items carrying all the given genres.
	GenreIDs []int

	// CastID filters to items featuring the given person.
	CastID int

	// SortBy is the upstream sort key, e.g. "popularity.desc".
	SortBy string
}

// Page is one page of discover results.
type Page struct {
	Page       int
	TotalPages int
	Results    []models.ContentItem
}

// CastMember is one credited cast entry.
type CastMember struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	// Order is the billing position; 0 is top-billed.
	Order int `json:"order"`
}

// Client is the read-only catalog abstraction consumed by the feed engine.
// Implementations must return empty results, never errors, on upstream
// failure.
type Client interface {
	// Discover returns one page of items matching the filters.
	Discover(ctx context.Context, kind models.MediaKind, f Filters, page int) Page

	// Search returns items matching a free-text query.
	Search(ctx context.Context, kind models.MediaKind, query string) []models.ContentItem

	// Details returns the full record for one item, including the
	// collection reference for movies. ok=false on failure or not-found.
	Details(ctx context.Context, kind models.MediaKind, id int) (models.ContentItem, bool)

	// CollectionParts returns the sibling entries of a collection.
	CollectionParts(ctx context.Context, collectionID int) []models.ContentItem

	// LeadActor returns the top-billed cast member of an item.
	LeadActor(ctx context.Context, kind models.MediaKind, id int) (CastMember, bool)
}

// HTTPClient performs the raw catalog API calls. Unlike the resilient
// wrapper it returns errors; use New for the production client.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates the raw catalog API client.
func NewHTTPClient(cfg config.CatalogConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// discoverResponse is the upstream paged envelope.
type discoverResponse struct {
	Page         int          `json:"page"`
	TotalPages   int          `json:"total_pages"`
	TotalResults int          `json:"total_results"`
	Results      []wireResult `json:"results"`
}

// wireResult is one upstream item. Movies and series use different field
// names for title and date; both sets are mapped here.
type wireResult struct {
	ID               int      `json:"id"`
	Title            string   `json:"title"`
	Name             string   `json:"name"`
	Overview         string   `json:"overview"`
	OriginalLanguage string   `json:"original_language"`
	GenreIDs         []int    `json:"genre_ids"`
	Genres           []struct {
		ID int `json:"id"`
	} `json:"genres"`
	Popularity          float64  `json:"popularity"`
	VoteAverage         float64  `json:"vote_average"`
	ReleaseDate         string   `json:"release_date"`
	FirstAirDate        string   `json:"first_air_date"`
	OriginCountry       []string `json:"origin_country"`
	PosterPath          string   `json:"poster_path"`
	BackdropPath        string   `json:"backdrop_path"`
	BelongsToCollection *struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"belongs_to_collection"`
}

// toItem maps a wire result to the domain model.
func (w *wireResult) toItem(kind models.MediaKind) models.ContentItem {
	item := models.ContentItem{
		ID:               w.ID,
		Kind:             kind,
		Title:            w.Title,
		Overview:         w.Overview,
		OriginalLanguage: w.OriginalLanguage,
		GenreIDs:         w.GenreIDs,
		Popularity:       w.Popularity,
		VoteAverage:      w.VoteAverage,
		ReleaseDate:      w.ReleaseDate,
		OriginCountries:  w.OriginCountry,
		PosterPath:       w.PosterPath,
		BackdropPath:     w.BackdropPath,
	}
	if item.Title == "" {
		item.Title = w.Name
	}
	if item.ReleaseDate == "" {
		item.ReleaseDate = w.FirstAirDate
	}
	// Detail responses carry expanded genre objects instead of genre_ids.
	if len(item.GenreIDs) == 0 && len(w.Genres) > 0 {
		item.GenreIDs = make([]int, 0, len(w.Genres))
		for _, g := range w.Genres {
			item.GenreIDs = append(item.GenreIDs, g.ID)
		}
	}
	if kind == models.KindMovie && w.BelongsToCollection != nil {
		item.Collection = &models.CollectionRef{
			ID:   w.BelongsToCollection.ID,
			Name: w.BelongsToCollection.Name,
		}
	}
	return item
}

// Discover fetches one page of filtered discovery results.
func (c *HTTPClient) Discover(ctx context.Context, kind models.MediaKind, f Filters, page int) (Page, error) {
	params := url.Values{}
	if f.Language != "" {
		params.Set("with_original_language", f.Language)
	}
	if len(f.GenreIDs) > 0 {
		ids := make([]string, len(f.GenreIDs))
		for i, g := range f.GenreIDs {
			ids[i] = strconv.Itoa(g)
		}
		params.Set("with_genres", strings.Join(ids, ","))
	}
	if f.CastID > 0 {
		params.Set("with_cast", strconv.Itoa(f.CastID))
	}
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = "popularity.desc"
	}
	params.Set("sort_by", sortBy)
	if page < 1 {
		page = 1
	}
	params.Set("page", strconv.Itoa(page))

	var resp discoverResponse
	if err := c.doGet(ctx, fmt.Sprintf("/discover/%s", kind), params, &resp); err != nil {
		return Page{}, fmt.Errorf("discover %s: %w", kind, err)
	}

	return Page{
		Page:       resp.Page,
		TotalPages: resp.TotalPages,
		Results:    mapResults(resp.Results, kind),
	}, nil
}

// Search fetches items matching a free-text query.
func (c *HTTPClient) Search(ctx context.Context, kind models.MediaKind, query string) ([]models.ContentItem, error) {
	params := url.Values{}
	params.Set("query", query)

	var resp discoverResponse
	if err := c.doGet(ctx, fmt.Sprintf("/search/%s", kind), params, &resp); err != nil {
		return nil, fmt.Errorf("search %s: %w", kind, err)
	}
	return mapResults(resp.Results, kind), nil
}

// Details fetches the full record for one item.
func (c *HTTPClient) Details(ctx context.Context, kind models.MediaKind, id int) (models.ContentItem, error) {
	var w wireResult
	if err := c.doGet(ctx, fmt.Sprintf("/%s/%d", kind, id), nil, &w); err != nil {
		return models.ContentItem{}, fmt.Errorf("details %s/%d: %w", kind, id, err)
	}
	return w.toItem(kind), nil
}

// collectionResponse is the upstream collection envelope.
type collectionResponse struct {
	ID    int          `json:"id"`
	Name  string       `json:"name"`
	Parts []wireResult `json:"parts"`
}

// CollectionParts fetches the entries of a movie collection.
func (c *HTTPClient) CollectionParts(ctx context.Context, collectionID int) ([]models.ContentItem, error) {
	var resp collectionResponse
	if err := c.doGet(ctx, fmt.Sprintf("/collection/%d", collectionID), nil, &resp); err != nil {
		return nil, fmt.Errorf("collection %d: %w", collectionID, err)
	}

	parts := mapResults(resp.Parts, models.KindMovie)
	for i := range parts {
		parts[i].Collection = &models.CollectionRef{ID: resp.ID, Name: resp.Name}
	}
	return parts, nil
}

// creditsResponse is the upstream credits envelope.
type creditsResponse struct {
	Cast []CastMember `json:"cast"`
}

// LeadActor fetches the top-billed cast member of an item.
func (c *HTTPClient) LeadActor(ctx context.Context, kind models.MediaKind, id int) (CastMember, error) {
	var resp creditsResponse
	if err := c.doGet(ctx, fmt.Sprintf("/%s/%d/credits", kind, id), nil, &resp); err != nil {
		return CastMember{}, fmt.Errorf("credits %s/%d: %w", kind, id, err)
	}
	if len(resp.Cast) == 0 {
		return CastMember{}, fmt.Errorf("credits %s/%d: empty cast", kind, id)
	}

	lead := resp.Cast[0]
	for _, m := range resp.Cast[1:] {
		if m.Order < lead.Order {
			lead = m
		}
	}
	return lead, nil
}

// doGet performs a GET against the catalog API and decodes the JSON body.
func (c *HTTPClient) doGet(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	reqURL := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the error message.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// mapResults converts wire results, dropping entries with no id.
func mapResults(results []wireResult, kind models.MediaKind) []models.ContentItem {
	items := make([]models.ContentItem, 0, len(results))
	for i := range results {
		if results[i].ID == 0 {
			continue
		}
		items = append(items, results[i].toItem(kind))
	}
	return items
}

// timeoutFor derives the per-call deadline; exposed for the wrapper.
func timeoutFor(cfg config.CatalogConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return 4 * time.Second
}
