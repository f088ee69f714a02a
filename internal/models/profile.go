// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

package models

import "time"

// TasteProfile is the structured preference/dislike representation for one
// user, supplied read-only by the profile collaborator.
type TasteProfile struct {
	// PreferredLanguages are ISO 639-1 codes the user prefers, in order.
	PreferredLanguages []string `json:"preferred_languages,omitempty"`

	// PreferredRegions are ISO 3166-1 country codes the user prefers.
	PreferredRegions []string `json:"preferred_regions,omitempty"`

	// PreferredGenres are upstream genre ids the user likes.
	PreferredGenres []int `json:"preferred_genres,omitempty"`

	// AvoidGenres are genre ids the user wants suppressed.
	AvoidGenres []int `json:"avoid_genres,omitempty"`

	// AvoidKeywords are lowercase terms that disqualify an item when they
	// appear in its overview.
	AvoidKeywords []string `json:"avoid_keywords,omitempty"`

	// AvoidStyles are pacing/style labels the user dislikes (e.g. "slow-paced").
	AvoidStyles []string `json:"avoid_styles,omitempty"`

	// OriginPriority boosts content from the user's priority region.
	OriginPriority bool `json:"origin_priority"`

	// BlockbusterMode boosts very popular mainstream titles.
	BlockbusterMode bool `json:"blockbuster_mode"`
}

// PrefersGenre reports whether genreID is in the preferred set.
func (p *TasteProfile) PrefersGenre(genreID int) bool {
	for _, g := range p.PreferredGenres {
		if g == genreID {
			return true
		}
	}
	return false
}

// AvoidsGenre reports whether genreID is in the avoid set.
func (p *TasteProfile) AvoidsGenre(genreID int) bool {
	for _, g := range p.AvoidGenres {
		if g == genreID {
			return true
		}
	}
	return false
}

// AvoidsStyle reports whether the style label is in the avoid set.
func (p *TasteProfile) AvoidsStyle(style string) bool {
	for _, s := range p.AvoidStyles {
		if s == style {
			return true
		}
	}
	return false
}

// KnowsLanguage reports whether lang is among the preferred languages.
func (p *TasteProfile) KnowsLanguage(lang string) bool {
	for _, l := range p.PreferredLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// HistoryEntry is one consumed item from watch history or reviews.
// Used only to pick anchors and build the exclusion set.
type HistoryEntry struct {
	// ID and Kind identify the consumed catalog item.
	ID   int       `json:"id"`
	Kind MediaKind `json:"media_kind"`

	// Timestamp is when the item was watched or reviewed.
	Timestamp time.Time `json:"timestamp"`

	// Verdict is the review verdict, empty for plain watch history.
	Verdict string `json:"verdict,omitempty"`

	// Rating is the numeric review rating (0-10), zero when absent.
	Rating float64 `json:"rating,omitempty"`
}

// ContentID returns the entry identity.
func (h *HistoryEntry) ContentID() ContentID {
	return ContentID{Kind: h.Kind, ID: h.ID}
}

// Positive reports whether the entry is a positive review. Positive reviews
// are excluded from anchor selection (the user has "graduated" past them)
// but still seed the exclusion set.
func (h *HistoryEntry) Positive() bool {
	switch h.Verdict {
	case "loved", "liked":
		return true
	}
	return h.Rating >= 7.0
}
