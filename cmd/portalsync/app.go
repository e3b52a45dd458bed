package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"portalsync/internal/config"
	"portalsync/internal/engine"
	"portalsync/internal/job"
	"portalsync/internal/notify"
	"portalsync/internal/store"
)

// app bundles the wired-up components every command starts from.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    *store.Store
	engine   *engine.Engine
	registry *job.Registry
}

// newApp loads config, sets up logging and wires the engine. Commands that
// talk to the portal set needCreds; store-only commands run without secrets.
func newApp(needCreds bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	var creds config.Credentials
	if needCreds {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		c, err := config.LoadCredentials()
		if err != nil {
			return nil, err
		}
		creds = *c
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st := store.New(cfg.DataDir, log)
	sink := notify.NewWebhookSink(cfg.Notify, log)
	eng := engine.New(cfg, creds, st, sink, loc, log)

	registry := job.NewRegistry()
	registry.Register(engine.NewSyncJob(eng))
	registry.Register(engine.NewExpiryJob(eng))

	return &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		engine:   eng,
		registry: registry,
	}, nil
}
