// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

// Package store implements the shared content store: a durable keyed cache of
// catalog metadata plus derived stat counters, backed by BadgerDB.
//
// Metadata and stats live under separate key families with explicit
// ownership. Upserts own the metadata record and never touch stats; stat
// updates are transactional increments and never touch metadata. Two
// concurrent requests can therefore upsert an item and bump its counters
// without clobbering each other.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/flickfeed/flickfeed/internal/config"
	"github.com/flickfeed/flickfeed/internal/metrics"
	"github.com/flickfeed/flickfeed/internal/models"
)

// Key families. Identity is (kind, catalog id); movie and tv id spaces
// overlap upstream so the kind is always part of the key.
const (
	contentKeyPrefix = "content:"
	statsKeyPrefix   = "stats:"
)

// Conflict-retry backoff bounds for stat increments. Increments must not be
// lost under contention, so conflicts retry until the caller's context ends.
const (
	txnRetryBaseDelay = time.Millisecond
	txnRetryMaxDelay  = 32 * time.Millisecond
)

// ContentStore is the durable cache of catalog items and derived stats.
// Safe for concurrent use.
type ContentStore struct {
	db     *badger.DB
	logger zerolog.Logger
	// now is injectable for tests.
	now func() time.Time
}

// Open opens (or creates) the content store at the configured path.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(cfg config.StoreConfig, logger zerolog.Logger) (*ContentStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(badgerLogger{logger})
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.Path, err)
	}

	return &ContentStore{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
		now:    time.Now,
	}, nil
}

// Close flushes and closes the underlying database.
func (s *ContentStore) Close() error {
	return s.db.Close()
}

// contentKey builds the metadata key for an identity.
func contentKey(id models.ContentID) []byte {
	return []byte(contentKeyPrefix + id.String())
}

// statsKey builds the stats key for an identity.
func statsKey(id models.ContentID) []byte {
	return []byte(statsKeyPrefix + id.String())
}

// Upsert writes the metadata record for the item, overwriting descriptive
// fields with the latest known values. The stats key is never touched.
// Metadata writes may race across requests; last write wins, which is
// acceptable since all writers project the same upstream truth.
func (s *ContentStore) Upsert(ctx context.Context, item models.ContentItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := item.ContentID()
	err := s.db.Update(func(txn *badger.Txn) error {
		rec := models.CachedRecord{Item: item, CachedAt: s.now(), Version: 1}

		// Carry the version forward when a record already exists.
		if existing, err := txn.Get(contentKey(id)); err == nil {
			var prev models.CachedRecord
			if verr := existing.Value(func(val []byte) error {
				return json.Unmarshal(val, &prev)
			}); verr == nil {
				rec.Version = prev.Version + 1
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("read existing record: %w", err)
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		return txn.Set(contentKey(id), data)
	})

	if err != nil {
		metrics.StoreOperations.WithLabelValues("upsert", "error").Inc()
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	metrics.StoreOperations.WithLabelValues("upsert", "ok").Inc()
	return nil
}

// Get returns the cached record for an identity. A miss is not an error:
// ok=false signals the cold-start path and callers fall through to live
// discovery.
func (s *ContentStore) Get(ctx context.Context, id models.ContentID) (models.CachedRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.CachedRecord{}, false, err
	}

	var rec models.CachedRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(contentKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.StoreMisses.Inc()
		return models.CachedRecord{}, false, nil
	}
	if err != nil {
		metrics.StoreOperations.WithLabelValues("get", "error").Inc()
		return models.CachedRecord{}, false, fmt.Errorf("get %s: %w", id, err)
	}
	metrics.StoreHits.Inc()
	return rec, true, nil
}

// Contains reports whether a metadata record exists, without reading its
// value. Used by the freshness scoring signal.
func (s *ContentStore) Contains(id models.ContentID) bool {
	found := false
	_ = s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(contentKey(id)); err == nil {
			found = true
		}
		return nil
	})
	return found
}

// GetStats returns the stat counters for an identity. Missing stats are a
// zero value, not an error.
func (s *ContentStore) GetStats(ctx context.Context, id models.ContentID) (models.ContentStats, error) {
	if err := ctx.Err(); err != nil {
		return models.ContentStats{}, err
	}

	var stats models.ContentStats
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(statsKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stats)
		})
	})
	if err != nil {
		return models.ContentStats{}, fmt.Errorf("get stats %s: %w", id, err)
	}
	return stats, nil
}

// IncrementStat atomically adds delta to a stat counter. The path is either
// "interest" or "verdict:<label>". A missing stats record is created with
// just the incremented counter; the metadata record is not required to
// exist. Conflicting concurrent increments retry with jittered backoff until
// they apply or the context ends; an increment is never silently dropped.
func (s *ContentStore) IncrementStat(ctx context.Context, id models.ContentID, path string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	delay := txnRetryBaseDelay
	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			var stats models.ContentStats

			item, err := txn.Get(statsKey(id))
			if err == nil {
				if verr := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &stats)
				}); verr != nil {
					return fmt.Errorf("unmarshal stats: %w", verr)
				}
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("read stats: %w", err)
			}

			if err := applyStatDelta(&stats, path, delta); err != nil {
				return err
			}

			data, err := json.Marshal(stats)
			if err != nil {
				return fmt.Errorf("marshal stats: %w", err)
			}
			return txn.Set(statsKey(id), data)
		})

		if err == nil {
			metrics.StoreOperations.WithLabelValues("increment_stat", "ok").Inc()
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			metrics.StoreOperations.WithLabelValues("increment_stat", "error").Inc()
			return fmt.Errorf("increment %s %s: %w", id, path, err)
		}

		// Conflict with a concurrent increment; back off, re-read and retry.
		metrics.StoreOperations.WithLabelValues("increment_stat", "conflict").Inc()
		jitter := time.Duration(rand.Int63n(int64(delay)))
		select {
		case <-ctx.Done():
			return fmt.Errorf("increment %s %s: %w", id, path, ctx.Err())
		case <-time.After(delay + jitter):
		}
		if delay < txnRetryMaxDelay {
			delay *= 2
		}
	}
}

// applyStatDelta mutates the addressed counter in place.
func applyStatDelta(stats *models.ContentStats, path string, delta int64) error {
	switch {
	case path == "interest":
		stats.InterestCount += delta
	case strings.HasPrefix(path, "verdict:"):
		label := strings.TrimPrefix(path, "verdict:")
		if label == "" {
			return fmt.Errorf("empty verdict label in stat path %q", path)
		}
		if stats.Verdicts == nil {
			stats.Verdicts = make(map[string]int64)
		}
		stats.Verdicts[label] += delta
	default:
		return fmt.Errorf("unknown stat path %q", path)
	}
	return nil
}

// RunGC runs badger's value-log garbage collection until the context is
// cancelled. Intended to run under the supervisor.
func (s *ContentStore) RunGC(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Badger recommends repeating until GC reports nothing to do.
			for {
				err := s.db.RunValueLogGC(0.5)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.logger.Warn().Err(err).Msg("value log GC failed")
					}
					break
				}
			}
		}
	}
}

// badgerLogger adapts zerolog to badger's Logger interface.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug().Msgf(strings.TrimSpace(format), args...)
}
