// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

// Command server runs the FlickFeed feed service: content store, catalog
// client, feed engine and HTTP API under one supervisor tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flickfeed/flickfeed/internal/api"
	"github.com/flickfeed/flickfeed/internal/catalog"
	"github.com/flickfeed/flickfeed/internal/config"
	"github.com/flickfeed/flickfeed/internal/feed"
	"github.com/flickfeed/flickfeed/internal/logging"
	"github.com/flickfeed/flickfeed/internal/profile"
	"github.com/flickfeed/flickfeed/internal/store"
	"github.com/flickfeed/flickfeed/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	logging.Info().
		Str("catalog_url", cfg.Catalog.BaseURL).
		Str("store_path", cfg.Store.Path).
		Bool("store_in_memory", cfg.Store.InMemory).
		Msg("configuration loaded")

	contentStore, err := store.Open(cfg.Store, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open content store")
	}
	defer func() {
		if err := contentStore.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing content store")
		}
	}()

	catalogClient := catalog.New(cfg.Catalog)

	var profiles profile.Provider
	if cfg.Profile.BaseURL != "" {
		profiles = profile.NewHTTPProvider(cfg.Profile)
		logging.Info().Str("profile_url", cfg.Profile.BaseURL).Msg("using HTTP profile provider")
	} else {
		profiles = profile.NewStaticProvider()
		logging.Info().Msg("no profile service configured, using static provider")
	}

	engine := feed.NewEngine(cfg.Feed, catalogClient, contentStore, profiles, logger)

	router := api.NewRouter(cfg.Server, api.NewHandler(engine, contentStore))
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logger)
	tree.Add(supervisor.NewHTTPServerService(server, 10*time.Second))
	tree.Add(supervisor.NewStoreGCService(contentStore, cfg.Store.GCInterval))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("starting flickfeed")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree stopped with error")
	}
	logging.Info().Msg("shutdown complete")
}
