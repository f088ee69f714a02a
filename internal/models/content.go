// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

// Package models defines the shared data model for the feed engine:
// catalog content, cached records, taste profiles, consumption history
// and the candidate/row types produced per request.
package models

import (
	"fmt"
	"time"
)

// MediaKind discriminates the two content variants in the catalog.
type MediaKind string

const (
	// KindMovie is a feature film.
	KindMovie MediaKind = "movie"
	// KindTV is a television series.
	KindTV MediaKind = "tv"
)

// Valid reports whether the kind is one of the known variants.
func (k MediaKind) Valid() bool {
	return k == KindMovie || k == KindTV
}

// ParseMediaKind converts a string to a MediaKind.
// Returns an error for unknown values.
func ParseMediaKind(s string) (MediaKind, error) {
	switch MediaKind(s) {
	case KindMovie:
		return KindMovie, nil
	case KindTV:
		return KindTV, nil
	default:
		return "", fmt.Errorf("unknown media kind %q", s)
	}
}

// ContentID is the identity of a catalog item: (kind, catalog id).
// Movie and TV id spaces overlap upstream, so the kind is part of identity.
type ContentID struct {
	Kind MediaKind `json:"kind"`
	ID   int       `json:"id"`
}

// String returns the canonical "kind:id" form used in store keys and logs.
func (c ContentID) String() string {
	return fmt.Sprintf("%s:%d", c.Kind, c.ID)
}

// CollectionRef points at the franchise/collection a movie belongs to.
// Only the movie variant carries one; TV series have no collection concept.
type CollectionRef struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// ContentItem is a catalog item as mirrored from the upstream catalog service.
type ContentItem struct {
	// ID is the upstream catalog identifier.
	ID int `json:"id"`

	// Kind is the media kind discriminant (movie or tv).
	Kind MediaKind `json:"media_kind"`

	// Title is the display title (movie title or series name).
	Title string `json:"title"`

	// Overview is the upstream plot summary.
	Overview string `json:"overview,omitempty"`

	// OriginalLanguage is the ISO 639-1 language code.
	OriginalLanguage string `json:"original_language,omitempty"`

	// GenreIDs are the upstream genre identifiers.
	GenreIDs []int `json:"genre_ids,omitempty"`

	// Popularity is the upstream popularity metric.
	Popularity float64 `json:"popularity"`

	// VoteAverage is the upstream rating (0-10).
	VoteAverage float64 `json:"vote_average,omitempty"`

	// ReleaseDate is the release/first-air date in YYYY-MM-DD form.
	ReleaseDate string `json:"release_date,omitempty"`

	// OriginCountries are ISO 3166-1 country codes.
	OriginCountries []string `json:"origin_countries,omitempty"`

	// PosterPath and BackdropPath are upstream image references.
	PosterPath   string `json:"poster_path,omitempty"`
	BackdropPath string `json:"backdrop_path,omitempty"`

	// Collection is the franchise reference. Movies only.
	Collection *CollectionRef `json:"collection,omitempty"`

	// LeadActor is the top-billed cast member, when credits were fetched.
	LeadActor string `json:"lead_actor,omitempty"`

	// StreamingSources lists providers the item is available on. Enrichment;
	// may be empty.
	StreamingSources []string `json:"streaming_sources,omitempty"`

	// TrailerURL is a generated trailer reference. Enrichment; may be empty.
	TrailerURL string `json:"trailer_url,omitempty"`
}

// ContentID returns the item identity.
func (c *ContentItem) ContentID() ContentID {
	return ContentID{Kind: c.Kind, ID: c.ID}
}

// ReleaseYear parses the year out of ReleaseDate.
// Returns 0 when the date is missing or malformed.
func (c *ContentItem) ReleaseYear() int {
	if len(c.ReleaseDate) < 4 {
		return 0
	}
	var year int
	if _, err := fmt.Sscanf(c.ReleaseDate[:4], "%d", &year); err != nil {
		return 0
	}
	return year
}

// HasGenre reports whether the item carries the given genre id.
func (c *ContentItem) HasGenre(genreID int) bool {
	for _, g := range c.GenreIDs {
		if g == genreID {
			return true
		}
	}
	return false
}

// ContentStats holds derived counters for a cached item. Stats are owned by
// interaction flows and are only ever incremented, never overwritten by
// metadata upserts.
type ContentStats struct {
	// InterestCount is the number of users who marked interest.
	InterestCount int64 `json:"interest_count"`

	// Verdicts counts reviews by verdict label (e.g. "loved", "liked", "disliked").
	Verdicts map[string]int64 `json:"verdicts,omitempty"`
}

// CachedRecord is a ContentItem as stored in the content store.
type CachedRecord struct {
	// Item is the mirrored catalog metadata.
	Item ContentItem `json:"item"`

	// CachedAt is when the record was last upserted.
	CachedAt time.Time `json:"cached_at"`

	// Version increments on every metadata upsert. Carried so a TTL/eviction
	// policy can be added without changing callers.
	Version int `json:"version"`
}
