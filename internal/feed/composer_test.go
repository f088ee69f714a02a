// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/flickfeed/flickfeed/internal/catalog"
	"github.com/flickfeed/flickfeed/internal/models"
	"github.com/flickfeed/flickfeed/internal/profile"
)

// fakeCache is an in-memory ContentCache.
type fakeCache struct {
	mu    sync.Mutex
	items map[models.ContentID]models.ContentItem
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[models.ContentID]models.ContentItem)}
}

func (c *fakeCache) Upsert(_ context.Context, item models.ContentItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ContentID()] = item
	return nil
}

func (c *fakeCache) Contains(id models.ContentID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	return ok
}

// seedWatchedUser wires a catalog and provider so user "u1" has one watched
// franchise movie that expands into four siblings.
func seedWatchedUser(cat *fakeCatalog, prov *profile.StaticProvider) {
	anchor := movie(100, "Part One", 80, genreAction)
	anchor.Collection = &models.CollectionRef{ID: 9000, Name: "The Saga"}
	cat.details[anchor.ContentID()] = anchor

	parts := []models.ContentItem{anchor}
	for i := 1; i <= 4; i++ {
		parts = append(parts, movie(100+i, "Part", 70, genreAction))
	}
	cat.collections[9000] = parts

	prov.Histories["u1"] = []models.HistoryEntry{
		{ID: 100, Kind: models.KindMovie, Timestamp: time.Now()},
	}
}

func newTestEngine(cat *fakeCatalog, prov *profile.StaticProvider) *Engine {
	return NewEngine(testFeedConfig(), cat, newFakeCache(), prov, zerolog.Nop())
}

func TestComposeFeed_WatchedRow(t *testing.T) {
	cat := newFakeCatalog()
	prov := profile.NewStaticProvider()
	seedWatchedUser(cat, prov)

	feed := newTestEngine(cat, prov).ComposeFeed(context.Background(), "u1")

	if feed.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", feed.UserID)
	}
	if feed.Fallback {
		t.Error("Fallback = true, want personalized rows")
	}
	if len(feed.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1 (watched row only)", len(feed.Rows))
	}

	row := feed.Rows[0]
	if row.Key != RowBecauseYouWatched {
		t.Errorf("Key = %q, want %q", row.Key, RowBecauseYouWatched)
	}
	if row.Context != "Part One" {
		t.Errorf("Context = %q, want anchor title", row.Context)
	}
	if len(row.Items) == 0 {
		t.Fatal("watched row is empty")
	}
	assertNoDuplicatesOrAnchor(t, row, models.ContentID{Kind: models.KindMovie, ID: 100})
}

func assertNoDuplicatesOrAnchor(t *testing.T, row models.RecommendationRow, anchor models.ContentID) {
	t.Helper()
	seen := make(map[models.ContentID]struct{})
	for _, c := range row.Items {
		id := c.Item.ContentID()
		if id == anchor {
			t.Errorf("row %q contains its own anchor %v", row.Key, id)
		}
		if _, dup := seen[id]; dup {
			t.Errorf("row %q contains duplicate identity %v", row.Key, id)
		}
		seen[id] = struct{}{}
	}
}

func TestComposeFeed_ReviewAnchorsFeedTheReviewsRow(t *testing.T) {
	cat := newFakeCatalog()
	prov := profile.NewStaticProvider()

	loved := movie(500, "Loved Movie", 90, genreAction)
	loved.Collection = &models.CollectionRef{ID: 9500}
	cat.details[loved.ContentID()] = loved
	cat.collections[9500] = []models.ContentItem{movie(501, "Sequel", 85, genreAction)}

	prov.Histories["u1"] = []models.HistoryEntry{
		{ID: 500, Kind: models.KindMovie, Verdict: "loved", Timestamp: time.Now()},
	}

	feed := newTestEngine(cat, prov).ComposeFeed(context.Background(), "u1")

	if len(feed.Rows) != 1 || feed.Rows[0].Key != RowFromYourReviews {
		t.Fatalf("rows = %+v, want only the reviews row", rowKeys(feed))
	}
	// A positively reviewed item never anchors the watched row, and never
	// reappears as a candidate anywhere.
	assertNoDuplicatesOrAnchor(t, feed.Rows[0], loved.ContentID())
}

func rowKeys(feed models.Feed) []string {
	keys := make([]string, 0, len(feed.Rows))
	for _, r := range feed.Rows {
		keys = append(keys, r.Key)
	}
	return keys
}

func TestComposeFeed_OutageDegradesToTrending(t *testing.T) {
	// Every catalog surface returns empty results: total upstream outage.
	cat := newFakeCatalog()
	trendingOnly := movie(700, "Trending Hit", 95, genreAction)
	cat.discoverFn = func(kind models.MediaKind, f catalog.Filters, page int) catalog.Page {
		if f.SortBy == "popularity.desc" && f.CastID == 0 && len(f.GenreIDs) == 0 {
			return catalog.Page{Page: 1, TotalPages: 1, Results: []models.ContentItem{trendingOnly}}
		}
		return catalog.Page{}
	}

	prov := profile.NewStaticProvider()
	prov.Histories["u1"] = []models.HistoryEntry{
		{ID: 100, Kind: models.KindMovie, Timestamp: time.Now()},
	}
	// Details lookups fail too, so every pipeline comes back empty.

	feed := newTestEngine(cat, prov).ComposeFeed(context.Background(), "u1")

	if !feed.Fallback {
		t.Error("Fallback = false, want trending fallback on total outage")
	}
	if len(feed.Rows) != 1 || feed.Rows[0].Key != RowTrending {
		t.Fatalf("rows = %v, want single trending row", rowKeys(feed))
	}
	if got := feed.Rows[0].Items[0]; got.Reason != ReasonTrending {
		t.Errorf("Reason = %q, want %q", got.Reason, ReasonTrending)
	}
}

// panickingProvider blows up on history fetches to exercise pipeline isolation.
type panickingProvider struct{ profile.Provider }

func (panickingProvider) GetProfile(context.Context, string) (models.TasteProfile, error) {
	return models.TasteProfile{}, errors.New("profile service down")
}

func (panickingProvider) GetHistory(context.Context, string) ([]models.HistoryEntry, error) {
	return nil, errors.New("profile service down")
}

func TestComposeFeed_ProviderFailureStillSucceeds(t *testing.T) {
	cat := newFakeCatalog()
	cat.discoverFn = func(kind models.MediaKind, f catalog.Filters, page int) catalog.Page {
		return catalog.Page{Page: 1, TotalPages: 1, Results: []models.ContentItem{movie(700, "Trending", 95)}}
	}

	engine := NewEngine(testFeedConfig(), cat, newFakeCache(), panickingProvider{}, zerolog.Nop())
	feed := engine.ComposeFeed(context.Background(), "u1")

	if len(feed.Rows) != 1 || !feed.Fallback {
		t.Fatalf("feed = %+v, want trending fallback despite provider outage", rowKeys(feed))
	}
}

// explodingCatalog panics on collection lookups, which run on generator
// fetch goroutines rather than the pipeline's own goroutine.
type explodingCatalog struct{ *fakeCatalog }

func (explodingCatalog) CollectionParts(context.Context, int) []models.ContentItem {
	panic("catalog bug")
}

func TestComposeFeed_GeneratorPanicCostsOnlyItsCandidates(t *testing.T) {
	cat := newFakeCatalog()
	prov := profile.NewStaticProvider()
	seedWatchedUser(cat, prov)
	cat.discoverFn = func(kind models.MediaKind, f catalog.Filters, page int) catalog.Page {
		return catalog.Page{Page: 1, TotalPages: 1, Results: []models.ContentItem{
			movie(710, "Taste Pick", 70, genreAction),
			movie(711, "Another Pick", 65, genreAction),
		}}
	}

	engine := NewEngine(testFeedConfig(), explodingCatalog{cat}, newFakeCache(), prov, zerolog.Nop())
	feed := engine.ComposeFeed(context.Background(), "u1")

	if len(feed.Rows) == 0 {
		t.Fatal("feed is empty, want surviving strategies to fill the watched row")
	}
	for _, c := range feed.Rows[0].Items {
		if c.Reason == ReasonSameFranchise {
			t.Errorf("candidate %d tagged %q, want no output from the failed strategy", c.Item.ID, c.Reason)
		}
	}
}

// stalledCatalog hangs detail lookups until the pipeline's deadline fires.
type stalledCatalog struct{ *fakeCatalog }

func (s stalledCatalog) Details(ctx context.Context, _ models.MediaKind, _ int) (models.ContentItem, bool) {
	<-ctx.Done()
	return models.ContentItem{}, false
}

func TestComposeFeed_StalledPipelineHitsTimeout(t *testing.T) {
	cat := newFakeCatalog()
	prov := profile.NewStaticProvider()
	seedWatchedUser(cat, prov)
	trending := movie(700, "Trending Hit", 95, genreAction)
	cat.discoverFn = func(kind models.MediaKind, f catalog.Filters, page int) catalog.Page {
		return catalog.Page{Page: 1, TotalPages: 1, Results: []models.ContentItem{trending}}
	}

	cfg := testFeedConfig()
	cfg.PipelineTimeout = 50 * time.Millisecond
	engine := NewEngine(cfg, stalledCatalog{cat}, newFakeCache(), prov, zerolog.Nop())

	start := time.Now()
	feed := engine.ComposeFeed(context.Background(), "u1")
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Fatalf("ComposeFeed took %v, want pipeline deadline to cut the stalled lookup", elapsed)
	}
	if !feed.Fallback {
		t.Error("Fallback = false, want trending fallback when the anchored pipelines stall out")
	}
	if len(feed.Rows) != 1 || feed.Rows[0].Key != RowTrending {
		t.Fatalf("rows = %v, want single trending row", rowKeys(feed))
	}
}

func TestComposeFeed_DeterministicWithFixedSeed(t *testing.T) {
	build := func() models.Feed {
		cat := newFakeCatalog()
		prov := profile.NewStaticProvider()
		seedWatchedUser(cat, prov)
		// A second eligible anchor so anchor sampling has real choices.
		other := movie(600, "Other Watch", 60, genreDrama)
		other.Collection = &models.CollectionRef{ID: 9600}
		cat.details[other.ContentID()] = other
		cat.collections[9600] = []models.ContentItem{movie(601, "Other Sequel", 55, genreDrama)}
		prov.Histories["u1"] = append(prov.Histories["u1"],
			models.HistoryEntry{ID: 600, Kind: models.KindMovie, Timestamp: time.Now()})

		return newTestEngine(cat, prov).ComposeFeed(context.Background(), "u1")
	}

	first, second := build(), build()
	if len(first.Rows) != len(second.Rows) {
		t.Fatalf("row counts differ: %d vs %d", len(first.Rows), len(second.Rows))
	}
	for i := range first.Rows {
		a, b := first.Rows[i], second.Rows[i]
		if a.Key != b.Key || len(a.Items) != len(b.Items) {
			t.Fatalf("row %d differs: (%s, %d) vs (%s, %d)", i, a.Key, len(a.Items), b.Key, len(b.Items))
		}
		for j := range a.Items {
			if a.Items[j].Item.ContentID() != b.Items[j].Item.ContentID() {
				t.Errorf("row %d item %d differs: %v vs %v", i, j,
					a.Items[j].Item.ContentID(), b.Items[j].Item.ContentID())
			}
		}
	}
}

func TestGenreRow_Validation(t *testing.T) {
	engine := newTestEngine(newFakeCatalog(), profile.NewStaticProvider())

	tests := []struct {
		name    string
		genreID int
		limit   int
		wantErr bool
	}{
		{"valid", genreAction, 10, false},
		{"zero genre", 0, 10, true},
		{"negative genre", -5, 10, true},
		{"limit over maximum", genreAction, 51, true},
		{"zero limit uses default", genreAction, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.GenreRow(context.Background(), "u1", tt.genreID, tt.limit)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GenreRow() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestGenreRow_RanksMirrorsAndExcludesConsumed(t *testing.T) {
	cat := newFakeCatalog()
	watched := movie(800, "Already Seen", 99, genreAction)
	fresh := movie(801, "New Pick", 60, genreAction)
	offGenre := movie(802, "Off Genre", 95, genreDrama)
	cat.discoverFn = func(kind models.MediaKind, f catalog.Filters, page int) catalog.Page {
		if page > 1 {
			return catalog.Page{Page: page, TotalPages: 1}
		}
		return catalog.Page{Page: 1, TotalPages: 1, Results: []models.ContentItem{watched, fresh, offGenre}}
	}

	prov := profile.NewStaticProvider()
	prov.Histories["u1"] = []models.HistoryEntry{{ID: 800, Kind: models.KindMovie}}

	cache := newFakeCache()
	engine := NewEngine(testFeedConfig(), cat, cache, prov, zerolog.Nop())

	row, err := engine.GenreRow(context.Background(), "u1", genreAction, 10)
	if err != nil {
		t.Fatalf("GenreRow() error = %v", err)
	}

	if len(row.Items) != 1 || row.Items[0].Item.ID != 801 {
		t.Fatalf("items = %+v, want only the unseen on-genre pick", row.Items)
	}
	if row.Items[0].Score <= 0 {
		t.Errorf("Score = %d, want positive", row.Items[0].Score)
	}

	// Every fetched item is mirrored into the store, consumed or not.
	for _, id := range []int{800, 801, 802} {
		if !cache.Contains(models.ContentID{Kind: models.KindMovie, ID: id}) {
			t.Errorf("item %d not mirrored into the content store", id)
		}
	}
}

func TestGenreRow_LimitRespected(t *testing.T) {
	cat := newFakeCatalog()
	cat.discoverFn = func(kind models.MediaKind, f catalog.Filters, page int) catalog.Page {
		var results []models.ContentItem
		for i := 0; i < 15; i++ {
			results = append(results, movie(page*100+i, "Pick", float64(50+i), genreAction))
		}
		return catalog.Page{Page: page, TotalPages: 2, Results: results}
	}

	engine := newTestEngine(cat, profile.NewStaticProvider())
	row, err := engine.GenreRow(context.Background(), "u1", genreAction, 5)
	if err != nil {
		t.Fatalf("GenreRow() error = %v", err)
	}
	if len(row.Items) > 5 {
		t.Errorf("len(Items) = %d, want <= limit 5", len(row.Items))
	}
}
