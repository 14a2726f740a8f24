package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortuna/gridiron/internal/ingest"
	"github.com/fortuna/gridiron/internal/league"
)

// BatchError is a league-period batch that could not be appended.
type BatchError struct {
	LeagueID string `json:"league_id"`
	Period   int    `json:"period"`
	Reason   string `json:"error"`
	Err      error  `json:"-"`
}

// IngestReport summarizes one Ingest call.
type IngestReport struct {
	Received   int                            `json:"received"`
	Appended   int                            `json:"appended"`
	Duplicates int                            `json:"duplicates"`
	Conflicts  []string                       `json:"conflicts,omitempty"`
	Rejected   []*league.SchemaViolation      `json:"rejected,omitempty"`
	Warnings   []*league.UnrecognizedStatType `json:"warnings,omitempty"`
	Failed     []BatchError                   `json:"failed,omitempty"`
}

// Ingest validates raw records, normalizes them per league-period against
// the rule set in effect for that period and appends the resulting events.
// Malformed records are rejected individually; a batch aimed at an unknown
// league, an out-of-range or finalized period, or a league without a rule
// set fails as a whole without affecting other batches. Re-ingesting the
// same records appends nothing.
func (s *LeagueService) Ingest(ctx context.Context, records []ingest.RawStatRecord) IngestReport {
	report := IngestReport{Received: len(records)}

	batches, rejected := s.checker.Check(ctx, records)
	report.Rejected = rejected

	for _, b := range batches {
		if err := s.ingestBatch(ctx, b, &report); err != nil {
			report.Failed = append(report.Failed, BatchError{
				LeagueID: b.LeagueID,
				Period:   b.Period,
				Reason:   err.Error(),
				Err:      err,
			})
			s.logger.Warn().Err(err).Str("league_id", b.LeagueID).Int("period", b.Period).Msg("ingest batch failed")
		}
	}

	s.logger.Info().
		Int("received", report.Received).
		Int("appended", report.Appended).
		Int("duplicates", report.Duplicates).
		Int("rejected", len(report.Rejected)).
		Int("warnings", len(report.Warnings)).
		Int("failed", len(report.Failed)).
		Msg("ingest complete")
	return report
}

func (s *LeagueService) ingestBatch(ctx context.Context, b ingest.Batch, report *IngestReport) error {
	l, err := s.store.GetLeague(ctx, b.LeagueID)
	if err != nil {
		return err
	}
	if err := l.CheckPeriod(b.Period); err != nil {
		return err
	}
	key, err := l.RuleSetKeyFor(b.Period)
	if err != nil {
		return err
	}
	rs, err := s.store.GetRuleSet(ctx, key.ID, key.Version)
	if errors.Is(err, league.ErrNotFound) {
		return &league.StaleRuleSetReference{LeagueID: l.ID, RuleSetID: key.ID, Version: key.Version}
	}
	if err != nil {
		return err
	}

	res := s.normalizer.Normalize(b.LeagueID, b.Period, rs, b.Records)
	report.Warnings = append(report.Warnings, res.Warnings...)
	report.Conflicts = append(report.Conflicts, res.Conflicts...)
	if len(res.Events) == 0 {
		return nil
	}

	appended, err := s.store.AppendEvents(ctx, res.Events)
	if err != nil {
		return fmt.Errorf("appending %d events: %w", len(res.Events), err)
	}
	report.Appended += appended.Appended
	report.Duplicates += appended.Duplicates
	report.Conflicts = append(report.Conflicts, appended.Conflicts...)
	return nil
}
