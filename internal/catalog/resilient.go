// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

package catalog

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/flickfeed/flickfeed/internal/config"
	"github.com/flickfeed/flickfeed/internal/logging"
	"github.com/flickfeed/flickfeed/internal/metrics"
	"github.com/flickfeed/flickfeed/internal/models"
)

// api is the raw, error-returning catalog surface wrapped by Resilient.
type api interface {
	Discover(ctx context.Context, kind models.MediaKind, f Filters, page int) (Page, error)
	Search(ctx context.Context, kind models.MediaKind, query string) ([]models.ContentItem, error)
	Details(ctx context.Context, kind models.MediaKind, id int) (models.ContentItem, error)
	CollectionParts(ctx context.Context, collectionID int) ([]models.ContentItem, error)
	LeadActor(ctx context.Context, kind models.MediaKind, id int) (CastMember, error)
}

// Resilient wraps the raw client with a rate limiter, a circuit breaker and
// per-call timeouts, and converts every failure into an empty result. The
// upstream is rate-limited and occasionally unavailable; a slow or failing
// catalog must degrade a row, never an entire feed.
//
// The circuit breaker uses real time for its interval and timeout windows.
// Unit tests exercise the raw client or a fake, not the breaker timing.
type Resilient struct {
	inner   api
	cb      *gobreaker.CircuitBreaker[any]
	limiter *rate.Limiter
	timeout time.Duration
}

var _ Client = (*Resilient)(nil)

// New builds the production catalog client: raw HTTP client wrapped with
// resilience.
func New(cfg config.CatalogConfig) *Resilient {
	return NewResilient(NewHTTPClient(cfg), cfg)
}

// NewResilient wraps an arbitrary raw client; split out for tests.
func NewResilient(inner api, cfg config.CatalogConfig) *Resilient {
	const cbName = "catalog-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		// Open after a 60% failure rate with at least 10 observations.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().
				Str("breaker", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("catalog circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Resilient{
		inner:   inner,
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		timeout: timeoutFor(cfg),
	}
}

// call runs one upstream operation behind the limiter and breaker with a
// bounded timeout. The returned error is logged and counted by the callers,
// which then degrade to empty results.
func (r *Resilient) call(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err := r.cb.Execute(func() (any, error) {
		if lerr := r.limiter.Wait(callCtx); lerr != nil {
			return nil, lerr
		}
		return fn(callCtx)
	})
	metrics.CatalogRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.CatalogRequestErrors.WithLabelValues(op, failureReason(err)).Inc()
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("operation", op).
			Msg("catalog call failed, returning empty result")
		return nil, err
	}
	return result, nil
}

// failureReason classifies an upstream failure for metrics.
func failureReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "upstream"
	}
}

// Discover returns one page of filtered results, or an empty page on failure.
func (r *Resilient) Discover(ctx context.Context, kind models.MediaKind, f Filters, page int) Page {
	result, err := r.call(ctx, "discover", func(ctx context.Context) (any, error) {
		return r.inner.Discover(ctx, kind, f, page)
	})
	if err != nil {
		return Page{}
	}
	p, ok := result.(Page)
	if !ok {
		return Page{}
	}
	return p
}

// Search returns matching items, or nil on failure.
func (r *Resilient) Search(ctx context.Context, kind models.MediaKind, query string) []models.ContentItem {
	result, err := r.call(ctx, "search", func(ctx context.Context) (any, error) {
		return r.inner.Search(ctx, kind, query)
	})
	if err != nil {
		return nil
	}
	items, _ := result.([]models.ContentItem)
	return items
}

// Details returns the full record for one item; ok=false on any failure.
func (r *Resilient) Details(ctx context.Context, kind models.MediaKind, id int) (models.ContentItem, bool) {
	result, err := r.call(ctx, "details", func(ctx context.Context) (any, error) {
		return r.inner.Details(ctx, kind, id)
	})
	if err != nil {
		return models.ContentItem{}, false
	}
	item, ok := result.(models.ContentItem)
	return item, ok && item.ID != 0
}

// CollectionParts returns the collection's entries, or nil on failure.
func (r *Resilient) CollectionParts(ctx context.Context, collectionID int) []models.ContentItem {
	result, err := r.call(ctx, "collection_parts", func(ctx context.Context) (any, error) {
		return r.inner.CollectionParts(ctx, collectionID)
	})
	if err != nil {
		return nil
	}
	items, _ := result.([]models.ContentItem)
	return items
}

// LeadActor returns the top-billed cast member; ok=false on any failure.
func (r *Resilient) LeadActor(ctx context.Context, kind models.MediaKind, id int) (CastMember, bool) {
	result, err := r.call(ctx, "lead_actor", func(ctx context.Context) (any, error) {
		return r.inner.LeadActor(ctx, kind, id)
	})
	if err != nil {
		return CastMember{}, false
	}
	member, ok := result.(CastMember)
	return member, ok && member.Name != ""
}

// stateToFloat converts circuit breaker state to a metric value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to a label value.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
