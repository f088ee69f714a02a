// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

// Package profile reads taste profiles and consumption history from the user
// profile collaborator. The feed engine never writes back.
package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/flickfeed/flickfeed/internal/config"
	"github.com/flickfeed/flickfeed/internal/models"
)

// Provider supplies the read-only user inputs for feed composition.
type Provider interface {
	// GetProfile returns the user's taste profile. An unknown user gets a
	// zero-value (neutral) profile, not an error.
	GetProfile(ctx context.Context, userID string) (models.TasteProfile, error)

	// GetHistory returns the user's consumption history: watch entries plus
	// review entries, newest first.
	GetHistory(ctx context.Context, userID string) ([]models.HistoryEntry, error)
}

// HTTPProvider talks to the profile service over HTTP.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a profile client for the configured service.
func NewHTTPProvider(cfg config.ProfileConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPProvider{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetProfile fetches the taste profile. A 404 maps to a neutral profile.
func (p *HTTPProvider) GetProfile(ctx context.Context, userID string) (models.TasteProfile, error) {
	var prof models.TasteProfile
	err := p.doGet(ctx, fmt.Sprintf("/users/%s/profile", url.PathEscape(userID)), &prof)
	if err != nil {
		if isNotFound(err) {
			return models.TasteProfile{}, nil
		}
		return models.TasteProfile{}, fmt.Errorf("profile for %s: %w", userID, err)
	}
	return prof, nil
}

// GetHistory fetches watch history and reviews merged into one list.
// A 404 maps to an empty history.
func (p *HTTPProvider) GetHistory(ctx context.Context, userID string) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := p.doGet(ctx, fmt.Sprintf("/users/%s/history", url.PathEscape(userID)), &entries)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history for %s: %w", userID, err)
	}
	return entries, nil
}

// statusError carries the upstream HTTP status for classification.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

// doGet performs a GET against the profile service and decodes the JSON body.
func (p *HTTPProvider) doGet(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StaticProvider serves fixed profiles and history from memory. Used by tests
// and by standalone deployments with no profile service configured.
type StaticProvider struct {
	Profiles  map[string]models.TasteProfile
	Histories map[string][]models.HistoryEntry
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider creates an empty static provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		Profiles:  make(map[string]models.TasteProfile),
		Histories: make(map[string][]models.HistoryEntry),
	}
}

// GetProfile returns the stored profile, or a neutral one for unknown users.
func (s *StaticProvider) GetProfile(_ context.Context, userID string) (models.TasteProfile, error) {
	return s.Profiles[userID], nil
}

// GetHistory returns the stored history, or nil for unknown users.
func (s *StaticProvider) GetHistory(_ context.Context, userID string) ([]models.HistoryEntry, error) {
	return s.Histories[userID], nil
}
