// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

package feed

import (
	"math/rand"
	"sync"
	"time"
)

// randSource is the single source of run-to-run variance in the engine:
// anchor choice and discover-page sampling both draw from it. Seedable so
// tests freeze it; seed 0 falls back to the clock.
type randSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newRandSource(seed int64) *randSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &randSource{r: rand.New(rand.NewSource(seed))}
}

// Perm returns a random permutation of [0, n).
func (s *randSource) Perm(n int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Perm(n)
}
