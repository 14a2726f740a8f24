package main

import (
	"context"
	"flag"
	"os"

	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/config"
	"github.com/fortuna/gridiron/internal/logging"
	"github.com/fortuna/gridiron/internal/publisher"
	"github.com/fortuna/gridiron/internal/replay"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/fortuna/gridiron/internal/store/repository"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

const (
	appName    = "gridiron-replay"
	appVersion = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", false)
		bootLogger.Fatal().Err(err).Msg("load configuration")
	}
	logger := logging.New(cfg.Service.LogLevel, cfg.Service.PrettyLogs)
	logger.Info().Msgf("=== %s v%s ===", appName, appVersion)

	var (
		dsn      = flag.String("dsn", cfg.Database.URL, "PostgreSQL DSN")
		redisURL = flag.String("redis", cfg.Redis.URL, "Redis URL (empty skips the cache and events)")
		leagueID = flag.String("league", "", "League to recompute")
		from     = flag.Int("from", 1, "First period to recompute")
		workers  = flag.Int("workers", cfg.Replay.Workers, "Periods scored in parallel")
		dryRun   = flag.Bool("dry-run", false, "Compute and print without writing the cache or publishing")
	)
	flag.Parse()

	if *leagueID == "" {
		logger.Fatal().Msg("Specify --league")
	}

	db, err := store.NewDatabase(*dsn, logging.Component(logger, "database"))
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer db.Close()

	var (
		scores cache.Scores
		events publisher.Sink
	)
	if *redisURL != "" {
		rc, err := cache.NewRedisCache(*redisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect redis")
		}
		defer rc.Close()
		scores = rc
		events = publisher.NewRedisStreamPublisher(rc.Client(), cfg.Redis.StreamPrefix)
	}

	runner := replay.NewRunner(repository.NewStore(db), replay.NewScorer(scores, logger), events, *workers, logger)
	spec := replay.Spec{LeagueID: *leagueID, FromPeriod: *from, DryRun: *dryRun}

	res, err := runner.Run(context.Background(), spec, &consoleReporter{logger: logger, dryRun: *dryRun})
	if err != nil {
		logger.Fatal().Err(err).Msg("replay failed")
	}

	enc := jsoniter.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Standings); err != nil {
		logger.Fatal().Err(err).Msg("write standings")
	}
	logger.Info().Int("through", res.Through).Msg("✓ Replay completed successfully")
}

type consoleReporter struct {
	logger zerolog.Logger
	dryRun bool
}

func (c *consoleReporter) OnJobStart(spec replay.Spec, total int) {
	c.logger.Info().Str("league_id", spec.LeagueID).Int("periods", total).Bool("dry_run", c.dryRun).Msg("Starting replay")
}

func (c *consoleReporter) OnPeriodScored(period int, done int, total int) {
	c.logger.Info().Msgf("[%d/%d] period %d scored", done, total, period)
}

func (c *consoleReporter) OnJobComplete(res *replay.Result) {
	c.logger.Info().Int("through", res.Through).Msg("Job complete")
}

func (c *consoleReporter) OnJobError(err error) {
	c.logger.Error().Err(err).Msg("Job error")
}
