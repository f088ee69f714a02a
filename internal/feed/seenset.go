// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

// Package feed implements the recommendation engine: candidate generators
// fanned out from history anchors, the additive scoring engine, per-request
// dedup, and the composer that assembles pipelines into feed rows.
package feed

import "github.com/flickfeed/flickfeed/internal/models"

// SeenSet tracks content identities already consumed or already accepted
// during one pipeline invocation. Generators skip anything in the set and add
// everything they accept, so earlier generators suppress duplicates in later
// ones. One set spans all anchors of an invocation.
//
// Not safe for concurrent use; acceptance runs sequentially by design.
type SeenSet struct {
	ids map[models.ContentID]struct{}
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[models.ContentID]struct{})}
}

// SeedSeenSet builds a set pre-loaded with the user's full consumption
// history: watched entries and reviewed entries alike. Consumed content is
// never resurfaced, whatever the verdict was.
func SeedSeenSet(history []models.HistoryEntry) *SeenSet {
	s := NewSeenSet()
	for i := range history {
		s.Add(history[i].ContentID())
	}
	return s
}

// Contains reports whether the identity is already in the set.
func (s *SeenSet) Contains(id models.ContentID) bool {
	_, ok := s.ids[id]
	return ok
}

// Add inserts the identity. Returns false if it was already present.
func (s *SeenSet) Add(id models.ContentID) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Len returns the number of tracked identities.
func (s *SeenSet) Len() int {
	return len(s.ids)
}
