// Package scheduler runs the recurring league jobs: the standings digest
// and the periodic standings warm-up that keeps the score cache hot.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/notify"
	"github.com/fortuna/gridiron/internal/service"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Leagues is the part of the league service the scheduler reads.
type Leagues interface {
	ListLeagues(ctx context.Context) ([]league.League, error)
	Standings(ctx context.Context, leagueID string) (service.StandingsReport, error)
}

// Messenger delivers a digest message.
type Messenger interface {
	SendMessage(text string) error
}

// Config holds scheduler configuration
type Config struct {
	Timezone     string        // e.g. "America/Chicago"
	DigestCron   string        // five-field crontab; empty disables the digest
	WarmInterval time.Duration // zero disables the warm-up
	JobTimeout   time.Duration // Default: 2m
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		Timezone:     "America/Chicago",
		DigestCron:   "30 7 * * 3",
		WarmInterval: 15 * time.Minute,
		JobTimeout:   2 * time.Minute,
	}
}

// Orchestrator manages the scheduled league jobs.
type Orchestrator struct {
	s         gocron.Scheduler
	leagues   Leagues
	messenger Messenger
	config    *Config
	logger    zerolog.Logger
}

// NewOrchestrator creates a scheduler. messenger may be nil, in which case
// the digest is logged only.
func NewOrchestrator(leagues Leagues, messenger Messenger, config *Config, logger zerolog.Logger) (*Orchestrator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 2 * time.Minute
	}

	location := time.UTC
	if config.Timezone != "" {
		loc, err := time.LoadLocation(config.Timezone)
		if err != nil {
			logger.Warn().Err(err).Str("timezone", config.Timezone).Msg("failed to load location, using UTC")
		} else {
			location = loc
		}
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(location))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Orchestrator{
		s:         s,
		leagues:   leagues,
		messenger: messenger,
		config:    config,
		logger:    logger,
	}, nil
}

// Start registers the jobs and starts the scheduler.
func (o *Orchestrator) Start() error {
	if o.config.DigestCron != "" {
		_, err := o.s.NewJob(
			gocron.CronJob(o.config.DigestCron, false),
			gocron.NewTask(o.sendDigest),
			gocron.WithName("standings-digest"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to create digest job: %w", err)
		}
	}

	if o.config.WarmInterval > 0 {
		_, err := o.s.NewJob(
			gocron.DurationJob(o.config.WarmInterval),
			gocron.NewTask(o.warm),
			gocron.WithName("standings-warm"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to create warm-up job: %w", err)
		}
	}

	o.s.Start()
	o.logger.Info().
		Str("digest_cron", o.config.DigestCron).
		Dur("warm_interval", o.config.WarmInterval).
		Msg("✓ Scheduler started")
	return nil
}

// Stop gracefully stops the scheduler
func (o *Orchestrator) Stop() error {
	return o.s.Shutdown()
}

func (o *Orchestrator) sendDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), o.config.JobTimeout)
	defer cancel()
	if err := o.RunDigest(ctx); err != nil {
		o.logger.Error().Err(err).Msg("standings digest failed")
	}
}

func (o *Orchestrator) warm() {
	ctx, cancel := context.WithTimeout(context.Background(), o.config.JobTimeout)
	defer cancel()
	if err := o.Warm(ctx); err != nil {
		o.logger.Error().Err(err).Msg("standings warm-up failed")
	}
}

// RunDigest sends every league's current standings. A league that fails
// is logged and skipped.
func (o *Orchestrator) RunDigest(ctx context.Context) error {
	leagues, err := o.leagues.ListLeagues(ctx)
	if err != nil {
		return err
	}

	sent := 0
	for _, l := range leagues {
		report, err := o.leagues.Standings(ctx, l.ID)
		if err != nil {
			o.logger.Warn().Err(err).Str("league_id", l.ID).Msg("standings unavailable for digest")
			continue
		}
		name := l.Name
		if name == "" {
			name = l.ID
		}
		text := notify.FormatStandings(name, report.Through, report.Entries)
		if o.messenger == nil {
			o.logger.Info().Str("league_id", l.ID).Msg(text)
			continue
		}
		if err := o.messenger.SendMessage(text); err != nil {
			o.logger.Warn().Err(err).Str("league_id", l.ID).Msg("digest send failed")
			continue
		}
		sent++
	}
	o.logger.Info().Int("leagues", len(leagues)).Int("sent", sent).Msg("✓ Standings digest complete")
	return nil
}

// Warm recomputes standings for every league so finalized periods are
// served from cache.
func (o *Orchestrator) Warm(ctx context.Context) error {
	start := time.Now()
	leagues, err := o.leagues.ListLeagues(ctx)
	if err != nil {
		return err
	}
	for _, l := range leagues {
		if _, err := o.leagues.Standings(ctx, l.ID); err != nil {
			o.logger.Warn().Err(err).Str("league_id", l.ID).Msg("warm-up failed")
		}
	}
	o.logger.Debug().Int("leagues", len(leagues)).Dur("took", time.Since(start)).Msg("standings warmed")
	return nil
}

// GetStatus returns current scheduler status
func (o *Orchestrator) GetStatus() map[string]interface{} {
	status := map[string]interface{}{
		"digest_cron":     o.config.DigestCron,
		"digest_enabled":  o.config.DigestCron != "",
		"digest_delivery": "log",
		"warm_interval":   o.config.WarmInterval.String(),
		"timezone":        o.config.Timezone,
		"registered_jobs": len(o.s.Jobs()),
	}
	if o.messenger != nil {
		status["digest_delivery"] = "telegram"
	}
	return status
}
