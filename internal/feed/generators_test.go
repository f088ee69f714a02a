// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

package feed

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/flickfeed/flickfeed/internal/catalog"
	"github.com/flickfeed/flickfeed/internal/config"
	"github.com/flickfeed/flickfeed/internal/models"
)

// fakeCatalog is an in-memory catalog.Client. Zero-value lookups return
// empty results, matching the swallow-failures contract.
type fakeCatalog struct {
	mu          sync.Mutex
	details     map[models.ContentID]models.ContentItem
	collections map[int][]models.ContentItem
	leads       map[models.ContentID]catalog.CastMember
	// discoverFn, when set, answers Discover calls.
	discoverFn func(kind models.MediaKind, f catalog.Filters, page int) catalog.Page
	// discoverCalls records the pages requested, for sampling assertions.
	discoverCalls []int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		details:     make(map[models.ContentID]models.ContentItem),
		collections: make(map[int][]models.ContentItem),
		leads:       make(map[models.ContentID]catalog.CastMember),
	}
}

func (f *fakeCatalog) Discover(_ context.Context, kind models.MediaKind, filters catalog.Filters, page int) catalog.Page {
	f.mu.Lock()
	f.discoverCalls = append(f.discoverCalls, page)
	fn := f.discoverFn
	f.mu.Unlock()

	if fn == nil {
		return catalog.Page{}
	}
	return fn(kind, filters, page)
}

func (f *fakeCatalog) Search(context.Context, models.MediaKind, string) []models.ContentItem {
	return nil
}

func (f *fakeCatalog) Details(_ context.Context, kind models.MediaKind, id int) (models.ContentItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.details[models.ContentID{Kind: kind, ID: id}]
	return item, ok
}

func (f *fakeCatalog) CollectionParts(_ context.Context, collectionID int) []models.ContentItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collections[collectionID]
}

func (f *fakeCatalog) LeadActor(_ context.Context, kind models.MediaKind, id int) (catalog.CastMember, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[models.ContentID{Kind: kind, ID: id}]
	return lead, ok
}

var _ catalog.Client = (*fakeCatalog)(nil)

func testFeedConfig() config.FeedConfig {
	return config.FeedConfig{
		Seed:            7,
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
		GenrePages:      2,
		PipelineTimeout: 2 * time.Second,
		Scoring:         testScoring(),
	}
}

func movie(id int, title string, popularity float64, genres ...int) models.ContentItem {
	return models.ContentItem{
		ID:               id,
		Kind:             models.KindMovie,
		Title:            title,
		OriginalLanguage: "hi",
		Popularity:       popularity,
		ReleaseDate:      "2022-06-01",
		GenreIDs:         genres,
	}
}

func TestFranchiseExpander_CollectionOfFour(t *testing.T) {
	cat := newFakeCatalog()

	anchor := movie(100, "Part One", 80, genreAction)
	anchor.Collection = &models.CollectionRef{ID: 9000, Name: "The Saga"}

	// The collection lookup returns the anchor plus four siblings.
	parts := []models.ContentItem{anchor}
	for i := 1; i <= 4; i++ {
		parts = append(parts, movie(100+i, fmt.Sprintf("Part %d", i+1), 70, genreAction))
	}
	cat.collections[9000] = parts

	g := NewFranchiseExpander(cat, testFeedConfig())
	seen := NewSeenSet()
	seen.Add(anchor.ContentID())

	got := acceptCandidates(g.Fetch(context.Background(), &anchor, &models.TasteProfile{}), &anchor, seen, g.Cap())

	if len(got) != 4 {
		t.Fatalf("accepted %d candidates, want exactly 4", len(got))
	}
	for _, c := range got {
		if c.Reason != ReasonSameFranchise {
			t.Errorf("Reason = %q, want %q", c.Reason, ReasonSameFranchise)
		}
		if c.Item.ContentID() == anchor.ContentID() {
			t.Error("anchor surfaced among its own candidates")
		}
	}
}

func TestFranchiseExpander_CapAndKindGate(t *testing.T) {
	cat := newFakeCatalog()

	anchor := movie(100, "Part One", 80)
	anchor.Collection = &models.CollectionRef{ID: 9000}

	var parts []models.ContentItem
	for i := 1; i <= 8; i++ {
		parts = append(parts, movie(100+i, "Part", 70))
	}
	cat.collections[9000] = parts

	g := NewFranchiseExpander(cat, testFeedConfig())
	got := acceptCandidates(g.Fetch(context.Background(), &anchor, &models.TasteProfile{}), &anchor, NewSeenSet(), g.Cap())
	if len(got) != 5 {
		t.Errorf("accepted %d candidates, want franchise cap of 5", len(got))
	}

	// TV anchors have no collection concept.
	tvAnchor := models.ContentItem{ID: 5, Kind: models.KindTV, Title: "Series"}
	if got := g.Fetch(context.Background(), &tvAnchor, &models.TasteProfile{}); got != nil {
		t.Errorf("Fetch(tv anchor) = %v, want nil", got)
	}
}

func TestPersonaExpander(t *testing.T) {
	cat := newFakeCatalog()
	anchor := movie(100, "Anchor", 80)
	cat.leads[anchor.ContentID()] = catalog.CastMember{ID: 500, Name: "Star", Order: 0}

	var results []models.ContentItem
	for i := 1; i <= 10; i++ {
		results = append(results, movie(200+i, "Co-starred", 60))
	}
	cat.discoverFn = func(kind models.MediaKind, f catalog.Filters, page int) catalog.Page {
		if f.CastID != 500 {
			t.Errorf("Discover CastID = %d, want lead 500", f.CastID)
		}
		if f.Language != anchor.OriginalLanguage {
			t.Errorf("Discover Language = %q, want anchor language %q", f.Language, anchor.OriginalLanguage)
		}
		return catalog.Page{Page: page, TotalPages: 1, Results: results}
	}

	g := NewPersonaExpander(cat, testFeedConfig())
	got := acceptCandidates(g.Fetch(context.Background(), &anchor, &models.TasteProfile{}), &anchor, NewSeenSet(), g.Cap())

	if len(got) != 7 {
		t.Fatalf("accepted %d candidates, want persona cap of 7", len(got))
	}
	for _, c := range got {
		if c.Reason != ReasonSameLeadActor {
			t.Errorf("Reason = %q, want %q", c.Reason, ReasonSameLeadActor)
		}
		if c.Item.LeadActor != "Star" {
			t.Errorf("LeadActor = %q, want enriched with lead name", c.Item.LeadActor)
		}
	}
}

func TestPersonaExpander_NoCreditsNoCandidates(t *testing.T) {
	cat := newFakeCatalog()
	anchor := movie(100, "Anchor", 80)

	g := NewPersonaExpander(cat, testFeedConfig())
	if got := g.Fetch(context.Background(), &anchor, &models.TasteProfile{}); got != nil {
		t.Errorf("Fetch() = %v, want nil when credits lookup fails", got)
	}
}

func TestTasteDiscoverer_SamplesPagesAndFiltersYear(t *testing.T) {
	cat := newFakeCatalog()
	anchor := movie(100, "Anchor", 80, genreAction)

	cat.discoverFn = func(kind models.MediaKind, f catalog.Filters, page int) catalog.Page {
		old := movie(page*1000+1, "Old", 50, genreAction)
		old.ReleaseDate = "1995-01-01"
		recent := movie(page*1000+2, "Recent", 50, genreAction)
		return catalog.Page{Page: page, TotalPages: 5, Results: []models.ContentItem{old, recent}}
	}

	cfg := testFeedConfig()
	g := NewTasteDiscoverer(cat, cfg, newRandSource(cfg.Seed))
	got := g.Fetch(context.Background(), &anchor, &models.TasteProfile{})

	// Two sampled pages, one pre-2000 item dropped per page.
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2 (one recent item per sampled page)", len(got))
	}
	for _, c := range got {
		if c.Reason != ReasonSimilarTaste {
			t.Errorf("Reason = %q, want %q", c.Reason, ReasonSimilarTaste)
		}
		if c.Item.ReleaseYear() < cfg.TasteMinYear {
			t.Errorf("item from %d kept, want year >= %d", c.Item.ReleaseYear(), cfg.TasteMinYear)
		}
	}

	// Fixed seed, fixed inputs: identical runs sample identical pages.
	cat2 := newFakeCatalog()
	cat2.discoverFn = cat.discoverFn
	g2 := NewTasteDiscoverer(cat2, cfg, newRandSource(cfg.Seed))
	again := g2.Fetch(context.Background(), &anchor, &models.TasteProfile{})
	if len(again) != len(got) {
		t.Fatalf("rerun len = %d, want %d", len(again), len(got))
	}
	for i := range got {
		if got[i].Item.ID != again[i].Item.ID {
			t.Errorf("rerun[%d] = %d, want %d (deterministic sampling)", i, again[i].Item.ID, got[i].Item.ID)
		}
	}
}

func TestRecencyFallback_RelaxedYearThreshold(t *testing.T) {
	cat := newFakeCatalog()
	anchor := movie(100, "Anchor", 80)

	older := movie(201, "From 2010", 90)
	older.ReleaseDate = "2010-05-01"
	recent := movie(202, "From 2023", 85)
	recent.ReleaseDate = "2023-05-01"
	cat.discoverFn = func(kind models.MediaKind, f catalog.Filters, page int) catalog.Page {
		if f.SortBy != "popularity.desc" {
			t.Errorf("SortBy = %q, want popularity.desc", f.SortBy)
		}
		return catalog.Page{Page: 1, TotalPages: 1, Results: []models.ContentItem{older, recent}}
	}

	g := NewRecencyFallback(cat, testFeedConfig())
	got := g.Fetch(context.Background(), &anchor, &models.TasteProfile{})

	if len(got) != 1 || got[0].Item.ID != 202 {
		t.Fatalf("got = %+v, want only the post-2015 item", got)
	}
	if got[0].Reason != ReasonPopularInLang {
		t.Errorf("Reason = %q, want %q", got[0].Reason, ReasonPopularInLang)
	}
}

func TestGenerateForAnchor_PriorityOrderSuppressesDuplicates(t *testing.T) {
	cat := newFakeCatalog()
	cfg := testFeedConfig()

	anchor := movie(100, "Anchor", 80, genreAction)
	anchor.Collection = &models.CollectionRef{ID: 9000}

	shared := movie(300, "Shared", 75, genreAction)
	cat.collections[9000] = []models.ContentItem{shared, movie(301, "Sibling", 70, genreAction)}
	cat.leads[anchor.ContentID()] = catalog.CastMember{ID: 500, Name: "Star"}
	cat.discoverFn = func(kind models.MediaKind, f catalog.Filters, page int) catalog.Page {
		// Persona and taste discovery both resurface the shared item.
		return catalog.Page{Page: 1, TotalPages: 1, Results: []models.ContentItem{
			shared, movie(400+f.CastID, "Other", 65, genreAction),
		}}
	}

	generators := []Generator{
		NewFranchiseExpander(cat, cfg),
		NewPersonaExpander(cat, cfg),
		NewTasteDiscoverer(cat, cfg, newRandSource(cfg.Seed)),
	}

	seen := NewSeenSet()
	seen.Add(anchor.ContentID())
	got := generateForAnchor(context.Background(), generators, NewRecencyFallback(cat, cfg), &anchor, seen, &models.TasteProfile{}, cfg.MinCandidates)

	ids := make(map[models.ContentID]string)
	for _, c := range got {
		id := c.Item.ContentID()
		if prev, dup := ids[id]; dup {
			t.Fatalf("duplicate identity %v emitted by %q and %q", id, prev, c.Reason)
		}
		ids[id] = c.Reason
	}
	if reason := ids[shared.ContentID()]; reason != ReasonSameFranchise {
		t.Errorf("shared item tagged %q, want franchise (highest priority) to win", reason)
	}
}

// panickingGenerator blows up inside its own fetch goroutine.
type panickingGenerator struct{}

func (panickingGenerator) Name() string { return "broken" }
func (panickingGenerator) Cap() int     { return 0 }
func (panickingGenerator) Fetch(context.Context, *models.ContentItem, *models.TasteProfile) []models.CandidateItem {
	panic("generator bug")
}

func TestGenerateForAnchor_PanickingGeneratorIsContained(t *testing.T) {
	cat := newFakeCatalog()
	cfg := testFeedConfig()

	anchor := movie(100, "Anchor", 80, genreAction)
	anchor.Collection = &models.CollectionRef{ID: 9000}
	for i := 1; i <= 5; i++ {
		cat.collections[9000] = append(cat.collections[9000], movie(100+i, "Part", 70, genreAction))
	}

	generators := []Generator{
		NewFranchiseExpander(cat, cfg),
		panickingGenerator{},
	}

	got := generateForAnchor(context.Background(), generators, nil,
		&anchor, NewSeenSet(), &models.TasteProfile{}, cfg.MinCandidates)

	if len(got) != 5 {
		t.Fatalf("accepted %d candidates, want the 5 franchise siblings despite the broken strategy", len(got))
	}
	for _, c := range got {
		if c.Reason != ReasonSameFranchise {
			t.Errorf("Reason = %q, want %q", c.Reason, ReasonSameFranchise)
		}
	}
}

func TestGenerateForAnchor_FallbackOnlyWhenShort(t *testing.T) {
	cfg := testFeedConfig()
	anchor := movie(100, "Anchor", 80)

	t.Run("short output triggers fallback", func(t *testing.T) {
		cat := newFakeCatalog()
		recent := movie(900, "Filler", 60)
		cat.discoverFn = func(kind models.MediaKind, f catalog.Filters, page int) catalog.Page {
			return catalog.Page{Page: 1, TotalPages: 1, Results: []models.ContentItem{recent}}
		}

		// No collection, no credits: primary generators yield almost nothing.
		got := generateForAnchor(context.Background(),
			[]Generator{NewFranchiseExpander(cat, cfg), NewPersonaExpander(cat, cfg)},
			NewRecencyFallback(cat, cfg),
			&anchor, NewSeenSet(), &models.TasteProfile{}, cfg.MinCandidates)

		found := false
		for _, c := range got {
			if c.Reason == ReasonPopularInLang {
				found = true
			}
		}
		if !found {
			t.Error("fallback candidates missing despite short primary output")
		}
	})

	t.Run("sufficient output skips fallback", func(t *testing.T) {
		cat := newFakeCatalog()
		anchor := movie(100, "Anchor", 80)
		anchor.Collection = &models.CollectionRef{ID: 9000}
		for i := 1; i <= 5; i++ {
			cat.collections[9000] = append(cat.collections[9000], movie(100+i, "Part", 70))
		}

		got := generateForAnchor(context.Background(),
			[]Generator{NewFranchiseExpander(cat, cfg)},
			NewRecencyFallback(cat, cfg),
			&anchor, NewSeenSet(), &models.TasteProfile{}, cfg.MinCandidates)

		for _, c := range got {
			if c.Reason == ReasonPopularInLang {
				t.Fatal("fallback ran despite sufficient primary candidates")
			}
		}
		// The fallback's discover must not have been issued at all.
		if len(cat.discoverCalls) != 0 {
			t.Errorf("discover called %d times, want 0", len(cat.discoverCalls))
		}
	})
}
