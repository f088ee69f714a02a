// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

package feed

import (
	"context"
	"sync"

	"github.com/flickfeed/flickfeed/internal/catalog"
	"github.com/flickfeed/flickfeed/internal/config"
	"github.com/flickfeed/flickfeed/internal/logging"
	"github.com/flickfeed/flickfeed/internal/metrics"
	"github.com/flickfeed/flickfeed/internal/models"
)

// Reason tags attached to candidates by each strategy.
const (
	ReasonSameFranchise = "same franchise"
	ReasonSameLeadActor = "same lead actor"
	ReasonSimilarTaste  = "similar taste"
	ReasonPopularInLang = "popular in this language"
	ReasonTrending      = "trending now"
)

// Generator is one candidate-generation strategy. Fetch issues the upstream
// calls and returns tagged, unfiltered candidates; failures degrade to an
// empty list at the catalog boundary, so Fetch never errors. Cap bounds how
// many of its candidates may be accepted per anchor (0 = unbounded).
//
// Fetches for one anchor run concurrently; the seen-set filtering happens
// afterwards, sequentially in priority order, in acceptCandidates.
type Generator interface {
	Name() string
	Cap() int
	Fetch(ctx context.Context, anchor *models.ContentItem, profile *models.TasteProfile) []models.CandidateItem
}

// FranchiseExpander proposes the other entries of the anchor's collection.
// Movies only; series carry no collection concept.
type FranchiseExpander struct {
	catalog catalog.Client
	cap     int
}

func NewFranchiseExpander(c catalog.Client, cfg config.FeedConfig) *FranchiseExpander {
	return &FranchiseExpander{catalog: c, cap: cfg.FranchiseCap}
}

func (g *FranchiseExpander) Name() string { return "franchise" }
func (g *FranchiseExpander) Cap() int     { return g.cap }

func (g *FranchiseExpander) Fetch(ctx context.Context, anchor *models.ContentItem, _ *models.TasteProfile) []models.CandidateItem {
	if anchor.Kind != models.KindMovie || anchor.Collection == nil {
		return nil
	}
	parts := g.catalog.CollectionParts(ctx, anchor.Collection.ID)
	return tagCandidates(parts, ReasonSameFranchise)
}

// PersonaExpander proposes same-kind content featuring the anchor's
// top-billed cast member, in the anchor's language.
type PersonaExpander struct {
	catalog catalog.Client
	cap     int
}

func NewPersonaExpander(c catalog.Client, cfg config.FeedConfig) *PersonaExpander {
	return &PersonaExpander{catalog: c, cap: cfg.PersonaCap}
}

func (g *PersonaExpander) Name() string { return "persona" }
func (g *PersonaExpander) Cap() int     { return g.cap }

func (g *PersonaExpander) Fetch(ctx context.Context, anchor *models.ContentItem, _ *models.TasteProfile) []models.CandidateItem {
	lead, ok := g.catalog.LeadActor(ctx, anchor.Kind, anchor.ID)
	if !ok {
		return nil
	}

	page := g.catalog.Discover(ctx, anchor.Kind, catalog.Filters{
		Language: anchor.OriginalLanguage,
		CastID:   lead.ID,
	}, 1)

	candidates := tagCandidates(page.Results, ReasonSameLeadActor)
	for i := range candidates {
		candidates[i].Item.LeadActor = lead.Name
	}
	return candidates
}

// TasteDiscoverer proposes same-kind content matching the anchor's language
// and genre set. It samples a random subset of the available result pages for
// variety and excludes items older than the configured year threshold.
type TasteDiscoverer struct {
	catalog catalog.Client
	cfg     config.FeedConfig
	rnd     *randSource
}

func NewTasteDiscoverer(c catalog.Client, cfg config.FeedConfig, rnd *randSource) *TasteDiscoverer {
	return &TasteDiscoverer{catalog: c, cfg: cfg, rnd: rnd}
}

func (g *TasteDiscoverer) Name() string { return "taste" }
func (g *TasteDiscoverer) Cap() int     { return 0 }

func (g *TasteDiscoverer) Fetch(ctx context.Context, anchor *models.ContentItem, _ *models.TasteProfile) []models.CandidateItem {
	filters := catalog.Filters{
		Language: anchor.OriginalLanguage,
		GenreIDs: anchor.GenreIDs,
	}

	first := g.catalog.Discover(ctx, anchor.Kind, filters, 1)
	if len(first.Results) == 0 {
		return nil
	}

	pagesByNumber := map[int][]models.ContentItem{1: first.Results}
	var items []models.ContentItem
	for _, page := range g.samplePages(first.TotalPages) {
		results, ok := pagesByNumber[page]
		if !ok {
			results = g.catalog.Discover(ctx, anchor.Kind, filters, page).Results
		}
		items = append(items, results...)
	}

	kept := items[:0]
	for _, item := range items {
		if item.ReleaseYear() >= g.cfg.TasteMinYear {
			kept = append(kept, item)
		}
	}
	return tagCandidates(kept, ReasonSimilarTaste)
}

// samplePages picks up to TastePages distinct page numbers from the first
// TastePageWindow available pages.
func (g *TasteDiscoverer) samplePages(totalPages int) []int {
	window := g.cfg.TastePageWindow
	if totalPages < window {
		window = totalPages
	}
	if window < 1 {
		window = 1
	}

	count := g.cfg.TastePages
	if count > window {
		count = window
	}

	pages := make([]int, 0, count)
	for _, idx := range g.rnd.Perm(window)[:count] {
		pages = append(pages, idx+1)
	}
	return pages
}

// RecencyFallback proposes recent popular content in the anchor's language.
// Only consulted when the other generators came up short.
type RecencyFallback struct {
	catalog catalog.Client
	minYear int
}

func NewRecencyFallback(c catalog.Client, cfg config.FeedConfig) *RecencyFallback {
	return &RecencyFallback{catalog: c, minYear: cfg.FallbackMinYear}
}

func (g *RecencyFallback) Name() string { return "recency_fallback" }
func (g *RecencyFallback) Cap() int     { return 0 }

func (g *RecencyFallback) Fetch(ctx context.Context, anchor *models.ContentItem, _ *models.TasteProfile) []models.CandidateItem {
	page := g.catalog.Discover(ctx, anchor.Kind, catalog.Filters{
		Language: anchor.OriginalLanguage,
		SortBy:   "popularity.desc",
	}, 1)

	kept := make([]models.ContentItem, 0, len(page.Results))
	for _, item := range page.Results {
		if item.ReleaseYear() >= g.minYear {
			kept = append(kept, item)
		}
	}
	return tagCandidates(kept, ReasonPopularInLang)
}

// generateForAnchor runs the primary generators for one anchor: fetches fan
// out concurrently, then acceptance applies sequentially in priority order so
// earlier strategies' accepted ids suppress later duplicates. The fallback
// generator is consulted only when the accepted total is below minCandidates.
func generateForAnchor(
	ctx context.Context,
	generators []Generator,
	fallback Generator,
	anchor *models.ContentItem,
	seen *SeenSet,
	profile *models.TasteProfile,
	minCandidates int,
) []models.CandidateItem {
	fetched := make([][]models.CandidateItem, len(generators))

	var wg sync.WaitGroup
	for i, gen := range generators {
		wg.Add(1)
		go func(i int, gen Generator) {
			defer wg.Done()
			fetched[i] = safeFetch(ctx, gen, anchor, profile)
		}(i, gen)
	}
	wg.Wait()

	var accepted []models.CandidateItem
	for i, gen := range generators {
		got := acceptCandidates(fetched[i], anchor, seen, gen.Cap())
		metrics.GeneratorCandidates.WithLabelValues(gen.Name()).Add(float64(len(got)))
		accepted = append(accepted, got...)
	}

	if len(accepted) < minCandidates && fallback != nil {
		got := acceptCandidates(safeFetch(ctx, fallback, anchor, profile), anchor, seen, fallback.Cap())
		metrics.GeneratorCandidates.WithLabelValues(fallback.Name()).Add(float64(len(got)))
		accepted = append(accepted, got...)
	}

	return accepted
}

// safeFetch runs one generator's Fetch behind its own panic barrier. The
// fetches run on their own goroutines, out of reach of the pipeline's
// recover, so a panicking strategy must be contained here: it degrades to
// zero candidates and the remaining strategies still contribute.
func safeFetch(ctx context.Context, gen Generator, anchor *models.ContentItem, profile *models.TasteProfile) (candidates []models.CandidateItem) {
	defer func() {
		if r := recover(); r != nil {
			metrics.GeneratorPanics.WithLabelValues(gen.Name()).Inc()
			logging.Ctx(ctx).Error().
				Str("generator", gen.Name()).
				Interface("panic", r).
				Msg("generator panicked, dropping its candidates")
			candidates = nil
		}
	}()
	return gen.Fetch(ctx, anchor, profile)
}

// acceptCandidates filters one generator's fetch through the running seen
// set: the anchor itself and anything already seen is skipped, every accepted
// identity is recorded, and the result is capped.
func acceptCandidates(candidates []models.CandidateItem, anchor *models.ContentItem, seen *SeenSet, limit int) []models.CandidateItem {
	anchorID := anchor.ContentID()

	accepted := make([]models.CandidateItem, 0, len(candidates))
	for _, c := range candidates {
		if limit > 0 && len(accepted) >= limit {
			break
		}
		id := c.Item.ContentID()
		if id == anchorID || c.Item.ID == 0 {
			continue
		}
		if !seen.Add(id) {
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted
}

// tagCandidates wraps items with a reason tag.
func tagCandidates(items []models.ContentItem, reason string) []models.CandidateItem {
	candidates := make([]models.CandidateItem, 0, len(items))
	for _, item := range items {
		candidates = append(candidates, models.CandidateItem{Item: item, Reason: reason})
	}
	return candidates
}
