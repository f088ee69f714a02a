// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

// Package supervisor runs the service's long-lived processes under a suture
// v4 tree: the HTTP server and the content store GC loop. Crashed services
// restart with suture's default backoff; the tree stops on context cancel.
package supervisor

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// Tree is the root supervisor for the service.
type Tree struct {
	root   *suture.Supervisor
	logger zerolog.Logger
}

// NewTree builds the root supervisor with event logging wired to zerolog.
func NewTree(logger zerolog.Logger) *Tree {
	log := logger.With().Str("component", "supervisor").Logger()

	root := suture.New("flickfeed", suture.Spec{
		EventHook: func(event suture.Event) {
			switch event.Type() {
			case suture.EventTypeServiceTerminate, suture.EventTypeBackoff:
				log.Warn().Interface("event", event.Map()).Msg("supervisor event")
			default:
				log.Debug().Interface("event", event.Map()).Msg("supervisor event")
			}
		},
	})

	return &Tree{root: root, logger: log}
}

// Add registers a service with the tree.
func (t *Tree) Add(svc suture.Service) {
	t.root.Add(svc)
}

// Serve runs the tree until the context is cancelled. Blocks.
func (t *Tree) Serve(ctx context.Context) error {
	t.logger.Info().Msg("starting supervisor tree")
	return t.root.Serve(ctx)
}
