package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hanzzx311/skyport/internal/adapter/sqlite"
	"github.com/hanzzx311/skyport/internal/platform/config"
	"github.com/hanzzx311/skyport/internal/platform/logging"
	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v3"
)

const pruneTimeout = 30 * time.Second

func pruneSessions(ctx context.Context, _ *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)

	ctx, cancel := context.WithTimeout(ctx, pruneTimeout)
	defer cancel()

	db, err := sqlite.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	store := sqlite.NewSessionStore(db, clockwork.NewRealClock(), []byte(cfg.SessionSecret))
	removed, err := store.DeleteExpired(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d expired sessions\n", removed)
	return nil
}
