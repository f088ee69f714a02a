// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

package feed

import (
	"math"
	"sort"
	"strings"

	"github.com/flickfeed/flickfeed/internal/config"
	"github.com/flickfeed/flickfeed/internal/models"
)

// slowPacedStyle is the avoid-style label matched against low-activity items.
const slowPacedStyle = "slow-paced"

// StoreProbe reports whether an identity is already cached. Injected so the
// scorer stays a pure function over its inputs.
type StoreProbe func(models.ContentID) bool

// signal is one named scoring contribution. Signals are pure and are summed
// in a fixed order; randomized sampling happens upstream in the generators,
// never here.
type signal struct {
	name string
	fn   func(s *Scorer, item *models.ContentItem, targetGenre int, profile *models.TasteProfile) float64
}

// Scorer ranks candidates for the genre-targeted pipeline with an additive
// multi-signal score.
type Scorer struct {
	cfg     config.ScoringConfig
	inStore StoreProbe
	signals []signal
}

// NewScorer builds a scorer from the named signal constants. probe may be nil,
// which disables the freshness signal.
func NewScorer(cfg config.ScoringConfig, probe StoreProbe) *Scorer {
	if probe == nil {
		probe = func(models.ContentID) bool { return true }
	}
	return &Scorer{
		cfg:     cfg,
		inStore: probe,
		signals: []signal{
			{"popularity", (*Scorer).popularitySignal},
			{"genre_identity", (*Scorer).genreIdentitySignal},
			{"genre_affinity", (*Scorer).genreAffinitySignal},
			{"origin_priority", (*Scorer).originSignal},
			{"language_restriction", (*Scorer).languageRestrictionSignal},
			{"blockbuster", (*Scorer).blockbusterSignal},
			{"dislikes", (*Scorer).dislikeSignal},
			{"freshness", (*Scorer).freshnessSignal},
		},
	}
}

// Score computes the rounded integer score of one candidate for a target
// genre under a profile. Deterministic for fixed inputs.
func (s *Scorer) Score(item *models.ContentItem, targetGenre int, profile *models.TasteProfile) int {
	var sum float64
	for _, sig := range s.signals {
		sum += sig.fn(s, item, targetGenre, profile)
	}
	return int(math.Round(sum))
}

// Rank scores the candidates, drops everything at or below zero, then
// deduplicates the survivors by identity (first kept occurrence wins, so
// higher-priority sources survive), sorts strictly descending and truncates
// to limit. limit <= 0 means no cap. A discarded occurrence never suppresses
// a later duplicate: only kept candidates mark their identity.
func (s *Scorer) Rank(candidates []models.CandidateItem, targetGenre int, profile *models.TasteProfile, limit int) []models.CandidateItem {
	ranked := make([]models.CandidateItem, 0, len(candidates))
	seen := make(map[models.ContentID]struct{}, len(candidates))

	for _, c := range candidates {
		id := c.Item.ContentID()
		if _, dup := seen[id]; dup {
			continue
		}

		c.Score = s.Score(&c.Item, targetGenre, profile)
		if c.Score <= 0 {
			continue
		}
		seen[id] = struct{}{}
		ranked = append(ranked, c)
	}

	// Stable sort keeps source-priority order between equal scores.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// popularitySignal: min(popularity, cap) * weight.
func (s *Scorer) popularitySignal(item *models.ContentItem, _ int, _ *models.TasteProfile) float64 {
	return math.Min(item.Popularity, s.cfg.PopularityCap) * s.cfg.PopularityWeight
}

// genreIdentitySignal: large penalty when the target genre is absent from the
// candidate, a smaller bonus when present. The penalty is what keeps the genre
// row on-topic against raw popularity.
func (s *Scorer) genreIdentitySignal(item *models.ContentItem, targetGenre int, _ *models.TasteProfile) float64 {
	if targetGenre == 0 {
		return 0
	}
	if !item.HasGenre(targetGenre) {
		return -s.cfg.GenreMissPenalty
	}
	return s.cfg.GenreHitBonus
}

// genreAffinitySignal: bonus when the target genre is one the user prefers.
func (s *Scorer) genreAffinitySignal(_ *models.ContentItem, targetGenre int, profile *models.TasteProfile) float64 {
	if targetGenre != 0 && profile.PrefersGenre(targetGenre) {
		return s.cfg.AffinityBonus
	}
	return 0
}

// originSignal: regional bonus tiers, gated by the profile's origin-priority
// flag. Primary language earns the largest bonus, the secondary group a
// smaller one, and a matching origin country stacks on top.
func (s *Scorer) originSignal(item *models.ContentItem, _ int, profile *models.TasteProfile) float64 {
	if !profile.OriginPriority {
		return 0
	}

	var bonus float64
	switch {
	case item.OriginalLanguage == s.cfg.PrimaryLanguage:
		bonus += s.cfg.PrimaryLangBonus
	case containsString(s.cfg.SecondaryLanguages, item.OriginalLanguage):
		bonus += s.cfg.SecondaryLangBonus
	}
	if containsString(item.OriginCountries, s.cfg.PriorityRegion) {
		bonus += s.cfg.RegionBonus
	}
	return bonus
}

// languageRestrictionSignal: penalty when the profile names preferred
// languages and the candidate speaks none of them.
func (s *Scorer) languageRestrictionSignal(item *models.ContentItem, _ int, profile *models.TasteProfile) float64 {
	if len(profile.PreferredLanguages) == 0 {
		return 0
	}
	if profile.KnowsLanguage(item.OriginalLanguage) {
		return 0
	}
	return -s.cfg.UnknownLangPenalty
}

// blockbusterSignal: bonus for very popular items when the profile opts in.
func (s *Scorer) blockbusterSignal(item *models.ContentItem, _ int, profile *models.TasteProfile) float64 {
	if profile.BlockbusterMode && item.Popularity >= s.cfg.BlockbusterFloor {
		return s.cfg.BlockbusterBonus
	}
	return 0
}

// dislikeSignal: heavy penalty per avoid-genre overlap, moderate penalty per
// avoid-keyword in the overview, and a pacing penalty when the user avoids
// slow-paced content and the item sits below the low-activity floor.
func (s *Scorer) dislikeSignal(item *models.ContentItem, _ int, profile *models.TasteProfile) float64 {
	var penalty float64

	for _, g := range item.GenreIDs {
		if profile.AvoidsGenre(g) {
			penalty += s.cfg.AvoidGenrePenalty
		}
	}

	if len(profile.AvoidKeywords) > 0 && item.Overview != "" {
		overview := strings.ToLower(item.Overview)
		for _, kw := range profile.AvoidKeywords {
			if kw != "" && strings.Contains(overview, strings.ToLower(kw)) {
				penalty += s.cfg.AvoidKeywordPenalty
			}
		}
	}

	if profile.AvoidsStyle(slowPacedStyle) && item.Popularity < s.cfg.SlowPacedFloor {
		penalty += s.cfg.SlowPacedPenalty
	}

	return -penalty
}

// freshnessSignal: bonus for items not yet mirrored in the content store.
// Self-erasing once the item is cached; kept as specified.
func (s *Scorer) freshnessSignal(item *models.ContentItem, _ int, _ *models.TasteProfile) float64 {
	if s.inStore(item.ContentID()) {
		return 0
	}
	return s.cfg.FreshnessBonus
}

func containsString(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}
