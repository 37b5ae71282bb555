package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jask/lovenudge/internal/affection"
	"github.com/jask/lovenudge/internal/config"
	"github.com/jask/lovenudge/internal/database"
	"github.com/jask/lovenudge/internal/database/repository"
	"github.com/jask/lovenudge/internal/inbox"
	"github.com/jask/lovenudge/internal/logging"
	"github.com/jask/lovenudge/internal/pushtoken"
	"github.com/jask/lovenudge/internal/relay"
	"github.com/jask/lovenudge/internal/session"
	"github.com/jask/lovenudge/internal/store"
)

// app is everything a command needs, built once from configuration.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	db      *sql.DB
	kv      *repository.KVRepo
	session *session.Session
	presets affection.Catalogue
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	db, err := database.OpenMigrated(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	kv := repository.NewKVRepo(db)
	st := store.New(kv, log.Named("store"))
	rl := relay.New(cfg.Relay.BaseURL, relay.Options{
		Timeout: cfg.Relay.Timeout,
		Logger:  log.Named("relay"),
	})
	tokens := pushtoken.Chain{pushtoken.Static(cfg.Push.Token), pushtoken.File(cfg.Push.TokenFile)}

	sess := session.New(st, rl, tokens, session.Options{
		Logger: log.Named("session"),
		Title:  cfg.Notification.Title,
		Inbox:  inbox.File(cfg.Push.InboxFile),
	})
	sess.Load(ctx)

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		kv:      kv,
		session: sess,
		presets: affection.NewCatalogue(cfg.Affection.Presets),
	}, nil
}

func (a *app) Close() {
	_ = a.db.Close()
	_ = a.log.Sync()
}
