// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

package feed

import (
	"context"
	"time"

	"github.com/flickfeed/flickfeed/internal/metrics"
	"github.com/flickfeed/flickfeed/internal/models"
)

// ComposeFeed runs the named pipelines in fixed priority order and assembles
// the non-empty rows. Pipelines are isolated: a panicking or timed-out
// pipeline costs its own row, never the feed. Zero rows trigger the generic
// trending fallback.
func (e *Engine) ComposeFeed(ctx context.Context, userID string) models.Feed {
	prof, history := e.loadUserInputs(ctx, userID)

	pipelines := []struct {
		name string
		run  func(ctx context.Context) models.RecommendationRow
	}{
		{RowBecauseYouWatched, func(ctx context.Context) models.RecommendationRow {
			return e.watchedRow(ctx, &prof, history)
		}},
		{RowFromYourReviews, func(ctx context.Context) models.RecommendationRow {
			return e.reviewsRow(ctx, &prof, history)
		}},
	}
	if len(prof.PreferredGenres) > 0 {
		genreID := prof.PreferredGenres[0]
		pipelines = append(pipelines, struct {
			name string
			run  func(ctx context.Context) models.RecommendationRow
		}{RowTopInGenre, func(ctx context.Context) models.RecommendationRow {
			return e.genreRow(ctx, &prof, history, genreID, e.cfg.RowLimit)
		}})
	}

	feed := models.Feed{UserID: userID}
	for _, p := range pipelines {
		row := e.runPipeline(ctx, p.name, p.run)
		if len(row.Items) == 0 {
			continue
		}
		feed.Rows = append(feed.Rows, row)
	}

	if len(feed.Rows) == 0 {
		metrics.FeedFallbacks.Inc()
		feed.Fallback = true
		if row := e.runPipeline(ctx, RowTrending, e.trendingRow); len(row.Items) > 0 {
			feed.Rows = append(feed.Rows, row)
		}
	}

	return feed
}

// runPipeline executes one pipeline under its bulkhead: a bounded timeout and
// a panic barrier. Failures produce an empty row, which the composer drops.
func (e *Engine) runPipeline(ctx context.Context, name string, run func(ctx context.Context) models.RecommendationRow) (row models.RecommendationRow) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PipelineFailures.WithLabelValues(name).Inc()
			e.logger.Error().
				Str("pipeline", name).
				Interface("panic", r).
				Msg("pipeline panicked, dropping row")
			row = models.RecommendationRow{Key: name}
		}
	}()

	pctx, cancel := context.WithTimeout(ctx, e.cfg.PipelineTimeout)
	defer cancel()

	start := time.Now()
	row = run(pctx)
	metrics.PipelineDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	metrics.PipelineCandidates.WithLabelValues(name).Observe(float64(len(row.Items)))
	return row
}
