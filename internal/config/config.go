// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

// Package config loads and validates service configuration with layered
// sources: built-in defaults, an optional YAML file, then environment
// variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the FlickFeed server.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Catalog CatalogConfig `koanf:"catalog"`
	Store   StoreConfig   `koanf:"store"`
	Profile ProfileConfig `koanf:"profile"`
	Feed    FeedConfig    `koanf:"feed"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs / RateLimitWindow bound inbound requests per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// CORSOrigins lists allowed origins for browser clients.
	CORSOrigins []string `koanf:"cors_origins"`
}

// CatalogConfig holds upstream catalog API settings.
type CatalogConfig struct {
	// BaseURL is the catalog API root, e.g. https://api.themoviedb.org/3.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates catalog calls.
	APIKey string `koanf:"api_key"`

	// Timeout bounds every single upstream call.
	Timeout time.Duration `koanf:"timeout"`

	// RatePerSecond / RateBurst configure the client-side limiter. The
	// upstream is rate-limited; stay under its ceiling.
	RatePerSecond float64 `koanf:"rate_per_second"`
	RateBurst     int     `koanf:"rate_burst"`
}

// StoreConfig holds content store (BadgerDB) settings.
type StoreConfig struct {
	// Path is the badger data directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory runs the store without disk persistence. Tests and dev only.
	InMemory bool `koanf:"in_memory"`

	// GCInterval is how often the value-log GC runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// ProfileConfig holds the user profile/history collaborator settings.
type ProfileConfig struct {
	// BaseURL is the profile service root. Empty selects the static
	// in-process provider (standalone mode).
	BaseURL string `koanf:"base_url"`

	Timeout time.Duration `koanf:"timeout"`
}

// FeedConfig holds generation, scoring and composition parameters.
type FeedConfig struct {
	// Seed drives all randomized selection (anchor choice, page sampling).
	// Fixed inputs plus a fixed seed reproduce a pipeline's output.
	Seed int64 `koanf:"seed"`

	// MaxAnchors is how many history anchors one pipeline samples (1-2).
	MaxAnchors int `koanf:"max_anchors"`

	// FranchiseCap / PersonaCap bound the respective generators.
	FranchiseCap int `koanf:"franchise_cap"`
	PersonaCap   int `koanf:"persona_cap"`

	// TastePages is how many discover pages the taste generator samples,
	// TastePageWindow the window it samples from.
	TastePages      int `koanf:"taste_pages"`
	TastePageWindow int `koanf:"taste_page_window"`

	// TasteMinYear excludes older items from taste discovery;
	// FallbackMinYear is the relaxed threshold for the recency fallback.
	TasteMinYear    int `koanf:"taste_min_year"`
	FallbackMinYear int `koanf:"fallback_min_year"`

	// MinCandidates triggers the recency fallback when the other
	// generators accumulated fewer accepted candidates.
	MinCandidates int `koanf:"min_candidates"`

	// RowLimit caps every composed row; DefaultLimit / MaxLimit bound the
	// genre endpoint's requested limit.
	RowLimit     int `koanf:"row_limit"`
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`

	// GenrePages is how many discover pages the genre pipeline fetches.
	GenrePages int `koanf:"genre_pages"`

	// PipelineTimeout bulkheads one pipeline so a hanging upstream cannot
	// stall the whole composed feed.
	PipelineTimeout time.Duration `koanf:"pipeline_timeout"`

	Scoring ScoringConfig `koanf:"scoring"`
}

// ScoringConfig names every signal constant of the additive scorer.
type ScoringConfig struct {
	// PopularityCap / PopularityWeight shape the popularity signal:
	// min(popularity, cap) * weight.
	PopularityCap    float64 `koanf:"popularity_cap"`
	PopularityWeight float64 `koanf:"popularity_weight"`

	// GenreMissPenalty / GenreHitBonus form the genre-identity signal.
	GenreMissPenalty float64 `koanf:"genre_miss_penalty"`
	GenreHitBonus    float64 `koanf:"genre_hit_bonus"`

	// AffinityBonus applies when the target genre is a preferred genre.
	AffinityBonus float64 `koanf:"affinity_bonus"`

	// Origin-priority tiers.
	PrimaryLanguage    string   `koanf:"primary_language"`
	SecondaryLanguages []string `koanf:"secondary_languages"`
	PriorityRegion     string   `koanf:"priority_region"`
	PrimaryLangBonus   float64  `koanf:"primary_lang_bonus"`
	SecondaryLangBonus float64  `koanf:"secondary_lang_bonus"`
	RegionBonus        float64  `koanf:"region_bonus"`

	// UnknownLangPenalty applies when the profile restricts to known
	// languages and the candidate's language is not among them.
	UnknownLangPenalty float64 `koanf:"unknown_lang_penalty"`

	// Blockbuster signal: items above the popularity floor get the bonus
	// when the profile's blockbuster flag is set.
	BlockbusterFloor float64 `koanf:"blockbuster_floor"`
	BlockbusterBonus float64 `koanf:"blockbuster_bonus"`

	// Dislike penalties.
	AvoidGenrePenalty   float64 `koanf:"avoid_genre_penalty"`
	AvoidKeywordPenalty float64 `koanf:"avoid_keyword_penalty"`
	SlowPacedFloor      float64 `koanf:"slow_paced_floor"`
	SlowPacedPenalty    float64 `koanf:"slow_paced_penalty"`

	// FreshnessBonus applies to items not yet present in the content store.
	FreshnessBonus float64 `koanf:"freshness_bonus"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with production defaults. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Catalog: CatalogConfig{
			BaseURL:       "https://api.themoviedb.org/3",
			APIKey:        "",
			Timeout:       4 * time.Second,
			RatePerSecond: 20,
			RateBurst:     40,
		},
		Store: StoreConfig{
			Path:       "/data/flickfeed/content",
			InMemory:   false,
			GCInterval: 10 * time.Minute,
		},
		Profile: ProfileConfig{
			BaseURL: "",
			Timeout: 3 * time.Second,
		},
		Feed: FeedConfig{
			Seed:            0, // 0 = time-seeded; tests pass explicit seeds
			MaxAnchors:      2,
			FranchiseCap:    5,
			PersonaCap:      7,
			TastePages:      2,
			TastePageWindow: 5,
			TasteMinYear:    2000,
			FallbackMinYear: 2015,
			MinCandidates:   5,
			RowLimit:        20,
			DefaultLimit:    20,
			MaxLimit:        50,
			GenrePages:      3,
			PipelineTimeout: 8 * time.Second,
			Scoring:         defaultScoring(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// defaultScoring returns the named signal constants of the additive scorer.
func defaultScoring() ScoringConfig {
	return ScoringConfig{
		PopularityCap:       100,
		PopularityWeight:    0.5,
		GenreMissPenalty:    200,
		GenreHitBonus:       30,
		AffinityBonus:       40,
		PrimaryLanguage:     "hi",
		SecondaryLanguages:  []string{"ta", "te", "ml", "kn", "bn", "mr"},
		PriorityRegion:      "IN",
		PrimaryLangBonus:    50,
		SecondaryLangBonus:  25,
		RegionBonus:         20,
		UnknownLangPenalty:  60,
		BlockbusterFloor:    500,
		BlockbusterBonus:    35,
		AvoidGenrePenalty:   300,
		AvoidKeywordPenalty: 80,
		SlowPacedFloor:      20,
		SlowPacedPenalty:    40,
		FreshnessBonus:      15,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url must not be empty")
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog.timeout must be positive, got %v", c.Catalog.Timeout)
	}
	if c.Catalog.RatePerSecond <= 0 {
		return fmt.Errorf("catalog.rate_per_second must be positive, got %f", c.Catalog.RatePerSecond)
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty when store.in_memory is false")
	}
	if c.Feed.MaxAnchors < 1 {
		return fmt.Errorf("feed.max_anchors must be positive, got %d", c.Feed.MaxAnchors)
	}
	if c.Feed.TastePages < 1 || c.Feed.TastePageWindow < c.Feed.TastePages {
		return fmt.Errorf("feed.taste_page_window must be >= feed.taste_pages, got %d < %d",
			c.Feed.TastePageWindow, c.Feed.TastePages)
	}
	if c.Feed.RowLimit < 1 {
		return fmt.Errorf("feed.row_limit must be positive, got %d", c.Feed.RowLimit)
	}
	if c.Feed.MaxLimit < c.Feed.DefaultLimit {
		return fmt.Errorf("feed.max_limit must be >= feed.default_limit, got %d < %d",
			c.Feed.MaxLimit, c.Feed.DefaultLimit)
	}
	if c.Feed.PipelineTimeout <= 0 {
		return fmt.Errorf("feed.pipeline_timeout must be positive, got %v", c.Feed.PipelineTimeout)
	}
	if c.Feed.Scoring.PopularityCap <= 0 {
		return fmt.Errorf("feed.scoring.popularity_cap must be positive, got %f", c.Feed.Scoring.PopularityCap)
	}
	return nil
}
