// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/flickfeed/flickfeed/internal/catalog"
	"github.com/flickfeed/flickfeed/internal/config"
	"github.com/flickfeed/flickfeed/internal/models"
	"github.com/flickfeed/flickfeed/internal/profile"
)

// ErrInvalidInput rejects malformed pipeline parameters at the entry point,
// before any external call is made. Maps to a 400 at the API layer.
var ErrInvalidInput = errors.New("feed: invalid input")

// Row keys, in composition priority order.
const (
	RowBecauseYouWatched = "because_you_watched"
	RowFromYourReviews   = "from_your_reviews"
	RowTopInGenre        = "top_in_genre"
	RowTrending          = "trending"
)

// ContentCache is the slice of the content store the engine uses: mirroring
// fetched items and probing for the freshness signal.
type ContentCache interface {
	Upsert(ctx context.Context, item models.ContentItem) error
	Contains(id models.ContentID) bool
}

// Engine composes personalized feeds. One engine serves all requests;
// per-request state (seen sets, candidates) never escapes a call.
type Engine struct {
	cfg      config.FeedConfig
	catalog  catalog.Client
	cache    ContentCache
	profiles profile.Provider
	logger   zerolog.Logger
	rnd      *randSource
	scorer   *Scorer

	generators []Generator
	fallback   Generator
}

// NewEngine wires the engine with its collaborators. The configured seed
// drives anchor choice and page sampling; tests pass a fixed seed.
func NewEngine(cfg config.FeedConfig, cat catalog.Client, cache ContentCache, profiles profile.Provider, logger zerolog.Logger) *Engine {
	rnd := newRandSource(cfg.Seed)

	return &Engine{
		cfg:      cfg,
		catalog:  cat,
		cache:    cache,
		profiles: profiles,
		logger:   logger.With().Str("component", "feed").Logger(),
		rnd:      rnd,
		scorer:   NewScorer(cfg.Scoring, cache.Contains),
		generators: []Generator{
			NewFranchiseExpander(cat, cfg),
			NewPersonaExpander(cat, cfg),
			NewTasteDiscoverer(cat, cfg, rnd),
		},
		fallback: NewRecencyFallback(cat, cfg),
	}
}

// loadUserInputs fetches profile and history, degrading failures to neutral
// inputs so a profile-service outage cannot fail feed composition.
func (e *Engine) loadUserInputs(ctx context.Context, userID string) (models.TasteProfile, []models.HistoryEntry) {
	prof, err := e.profiles.GetProfile(ctx, userID)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("profile fetch failed, using neutral profile")
		prof = models.TasteProfile{}
	}

	history, err := e.profiles.GetHistory(ctx, userID)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("history fetch failed, using empty history")
		history = nil
	}
	return prof, history
}

// splitAnchors partitions history into watch anchors and review anchors.
// Positively-reviewed entries anchor the reviews row, not the watched row:
// the user has graduated past them. Duplicate identities keep their first
// (newest) entry.
func splitAnchors(history []models.HistoryEntry) (watched, reviewed []models.HistoryEntry) {
	seen := make(map[models.ContentID]struct{}, len(history))
	for _, entry := range history {
		id := entry.ContentID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if entry.Positive() {
			reviewed = append(reviewed, entry)
		} else {
			watched = append(watched, entry)
		}
	}
	return watched, reviewed
}

// anchoredRow is the shared machinery of the history-anchored pipelines:
// sample anchors, resolve each via the catalog, fan out the generators with
// one shared seen set, cap the row.
func (e *Engine) anchoredRow(ctx context.Context, key, title string, anchors, history []models.HistoryEntry, prof *models.TasteProfile) models.RecommendationRow {
	row := models.RecommendationRow{Key: key, Title: title}
	if len(anchors) == 0 {
		return row
	}

	seen := SeedSeenSet(history)

	maxAnchors := e.cfg.MaxAnchors
	if maxAnchors > len(anchors) {
		maxAnchors = len(anchors)
	}

	for _, idx := range e.rnd.Perm(len(anchors))[:maxAnchors] {
		entry := anchors[idx]

		anchor, ok := e.catalog.Details(ctx, entry.Kind, entry.ID)
		if !ok {
			e.logger.Debug().
				Str("row", key).
				Str("anchor", entry.ContentID().String()).
				Msg("anchor lookup failed, skipping")
			continue
		}
		// The anchor must never surface among its own candidates.
		seen.Add(anchor.ContentID())

		if row.Context == "" {
			row.Context = anchor.Title
		}

		candidates := generateForAnchor(ctx, e.generators, e.fallback, &anchor, seen, prof, e.cfg.MinCandidates)
		row.Items = append(row.Items, candidates...)
	}

	if len(row.Items) > e.cfg.RowLimit {
		row.Items = row.Items[:e.cfg.RowLimit]
	}
	return row
}

// watchedRow builds the "because you watched" row from plain watch history.
func (e *Engine) watchedRow(ctx context.Context, prof *models.TasteProfile, history []models.HistoryEntry) models.RecommendationRow {
	watched, _ := splitAnchors(history)
	return e.anchoredRow(ctx, RowBecauseYouWatched, "Because You Watched", watched, history, prof)
}

// reviewsRow builds the "from your reviews" row anchored on positively
// reviewed items.
func (e *Engine) reviewsRow(ctx context.Context, prof *models.TasteProfile, history []models.HistoryEntry) models.RecommendationRow {
	_, reviewed := splitAnchors(history)
	return e.anchoredRow(ctx, RowFromYourReviews, "From Your Reviews", reviewed, history, prof)
}

// GenreRow builds the genre-targeted scored row for a user. Input validation
// happens here, before any external call; everything past it degrades rather
// than errors.
func (e *Engine) GenreRow(ctx context.Context, userID string, genreID, limit int) (models.RecommendationRow, error) {
	if genreID <= 0 {
		return models.RecommendationRow{}, fmt.Errorf("%w: genre id %d", ErrInvalidInput, genreID)
	}
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		return models.RecommendationRow{}, fmt.Errorf("%w: limit %d exceeds maximum %d", ErrInvalidInput, limit, e.cfg.MaxLimit)
	}

	prof, history := e.loadUserInputs(ctx, userID)
	return e.genreRow(ctx, &prof, history, genreID, limit), nil
}

// genreRow fetches discover pages for the target genre in the user's
// preferred languages, mirrors every fetched item into the content store,
// excludes consumed items and ranks the rest with the additive scorer.
func (e *Engine) genreRow(ctx context.Context, prof *models.TasteProfile, history []models.HistoryEntry, genreID, limit int) models.RecommendationRow {
	languages := prof.PreferredLanguages
	if len(languages) == 0 {
		// Neutral profile: one unfiltered pass.
		languages = []string{""}
	}

	// Score against the pre-fetch cache state so the freshness signal sees
	// what was actually new this request.
	fresh := make(map[models.ContentID]bool)

	var candidates []models.CandidateItem
	for _, lang := range languages {
		filters := catalog.Filters{Language: lang, GenreIDs: []int{genreID}}
		for page := 1; page <= e.cfg.GenrePages; page++ {
			result := e.catalog.Discover(ctx, models.KindMovie, filters, page)
			for _, item := range result.Results {
				id := item.ContentID()
				if _, probed := fresh[id]; !probed {
					fresh[id] = !e.cache.Contains(id)
				}
				if err := e.cache.Upsert(ctx, item); err != nil {
					e.logger.Warn().Err(err).Str("item", id.String()).Msg("cache upsert failed")
				}
				candidates = append(candidates, models.CandidateItem{Item: item, Reason: "top in genre"})
			}
			if result.TotalPages > 0 && page >= result.TotalPages {
				break
			}
		}
	}

	seen := SeedSeenSet(history)
	unseen := candidates[:0]
	for _, c := range candidates {
		if !seen.Contains(c.Item.ContentID()) {
			unseen = append(unseen, c)
		}
	}

	scorer := e.scorer
	if len(fresh) > 0 {
		scorer = NewScorer(e.cfg.Scoring, func(id models.ContentID) bool {
			if wasFresh, probed := fresh[id]; probed {
				return !wasFresh
			}
			return e.cache.Contains(id)
		})
	}

	return models.RecommendationRow{
		Key:   RowTopInGenre,
		Title: "Top Picks For You",
		Items: scorer.Rank(unseen, genreID, prof, limit),
	}
}

// trendingRow is the generic, non-personalized fallback.
func (e *Engine) trendingRow(ctx context.Context) models.RecommendationRow {
	page := e.catalog.Discover(ctx, models.KindMovie, catalog.Filters{SortBy: "popularity.desc"}, 1)

	items := tagCandidates(page.Results, ReasonTrending)
	if len(items) > e.cfg.RowLimit {
		items = items[:e.cfg.RowLimit]
	}
	return models.RecommendationRow{
		Key:   RowTrending,
		Title: "Trending Now",
		Items: items,
	}
}
