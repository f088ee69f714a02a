// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

package models

import "time"

// CandidateItem is an item proposed by a generator, before or after scoring.
// Ephemeral; produced per request and never persisted.
type CandidateItem struct {
	// Item is the proposed catalog item.
	Item ContentItem `json:"item"`

	// Reason is the human-readable tag explaining why the item was proposed
	// (e.g. "same franchise", "popular in this language").
	Reason string `json:"_reason"`

	// Score is the ranking score. Zero until the scoring engine runs;
	// rows that skip scoring keep generator order.
	Score int `json:"score,omitempty"`
}

// RecommendationRow is one named, ordered section of the composed feed.
type RecommendationRow struct {
	// Key is the stable machine-readable row identifier.
	Key string `json:"key"`

	// Title is the display title for the row.
	Title string `json:"title"`

	// Context is an optional human-readable qualifier, e.g. the anchor title
	// for a "because you watched" row.
	Context string `json:"context,omitempty"`

	// Items is the ordered candidate list. No two items share an identity.
	Items []CandidateItem `json:"items"`
}

// Feed is the full composed response: rows in fixed priority order.
type Feed struct {
	// UserID is the user the feed was composed for.
	UserID string `json:"user_id"`

	// Rows are the non-empty pipeline results.
	Rows []RecommendationRow `json:"rows"`

	// Fallback is true when no pipeline produced items and the feed holds
	// only the generic trending row.
	Fallback bool `json:"fallback,omitempty"`
}

// APIResponse is the standard response envelope.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Error    *APIError   `json:"error,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

// APIError carries a machine-readable code plus a human-readable message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Metadata carries response timing information.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}
