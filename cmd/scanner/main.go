package main

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"stayscan/internal/adapters/observability"
	redisad "stayscan/internal/adapters/redis"
	"stayscan/internal/adapters/replay"
	"stayscan/internal/app"
	"stayscan/internal/scan"
	"stayscan/internal/shared"
	mysqlrepo "stayscan/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "scanner")

	log.Info().
		Int("rooms", len(cfg.RoomIDs)).
		Int("batch_size", cfg.BatchSize).
		Int("lookahead_months", cfg.LookaheadMonths).
		Float64("price_tolerance", cfg.PriceTolerance).
		Msg("scanner starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	// The browser layer is an external collaborator; this binary replays
	// recorded calendar fixtures through the same port.
	if cfg.FixturePath == "" {
		log.Fatal().Msg("SCAN_FIXTURE_PATH is required")
	}
	fixture, err := replay.Load(cfg.FixturePath)
	if err != nil {
		log.Fatal().Err(err).Msg("fixture load failed")
	}
	sessions := replay.NewFactory(fixture)

	svc := app.NewScanService(
		sessions,
		repo,
		cache,
		app.NewReconciler(cfg.PriceTolerance),
		app.ScanConfig{
			BatchSize:      cfg.BatchSize,
			Workers:        cfg.Workers,
			RoomsPerSecond: cfg.RoomsPerSecond,
			Scan: scan.Config{
				LookaheadMonths: cfg.LookaheadMonths,
				PaneRetries:     cfg.PaneRetries,
				PaneBackoff:     cfg.PaneBackoff,
			},
		},
	)

	reconciled, err := svc.ScanRooms(ctx, cfg.RoomIDs)
	if err != nil {
		log.Fatal().Err(err).Msg("scan pass failed")
	}
	log.Info().Int("reconciled", reconciled).Msg("scan completed")
}
