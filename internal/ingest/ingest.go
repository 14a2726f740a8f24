// Package ingest is the boundary where raw stat records enter the system.
// Records are schema-checked here and grouped per league-period before they
// reach the normalizer.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/normalizer"
	"github.com/go-playground/validator/v10"
)

// RawStatRecord is one provider stat line as it arrives over REST or the
// raw stat stream. Count may be negative for compensating corrections.
type RawStatRecord struct {
	LeagueID string `json:"league_id" validate:"required,max=64"`
	Period   int    `json:"period" validate:"required,min=1"`
	PlayerID string `json:"player_id" validate:"required,max=64"`
	Stat     string `json:"stat" validate:"required,max=64"`
	Count    int64  `json:"count"`
	Key      string `json:"key" validate:"omitempty,max=255"`
}

// Batch is the set of records for one league-period.
type Batch struct {
	LeagueID string
	Period   int
	Records  []normalizer.Record
}

// Checker validates raw records.
type Checker struct {
	validate *validator.Validate
}

// NewChecker creates a Checker whose messages use the JSON field names.
func NewChecker() *Checker {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Checker{validate: v}
}

// Struct validates any request payload with the same rules engine.
func (c *Checker) Struct(ctx context.Context, payload any) error {
	if err := c.validate.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: %s", league.ErrInvalidArgument, describe(err))
	}
	return nil
}

// Check validates every record and groups the valid ones by league and
// period. Invalid records are returned as SchemaViolations and never grouped.
// Batches come back sorted by (league, period).
func (c *Checker) Check(ctx context.Context, records []RawStatRecord) ([]Batch, []*league.SchemaViolation) {
	var rejected []*league.SchemaViolation
	type groupKey struct {
		leagueID string
		period   int
	}
	groups := make(map[groupKey][]normalizer.Record)

	for i, r := range records {
		if err := c.validate.StructCtx(ctx, r); err != nil {
			rejected = append(rejected, &league.SchemaViolation{Index: i, Reason: describe(err)})
			continue
		}
		k := groupKey{leagueID: r.LeagueID, period: r.Period}
		groups[k] = append(groups[k], normalizer.Record{
			PlayerID: r.PlayerID,
			Stat:     r.Stat,
			Count:    r.Count,
			Key:      r.Key,
		})
	}

	batches := make([]Batch, 0, len(groups))
	for k, recs := range groups {
		batches = append(batches, Batch{LeagueID: k.leagueID, Period: k.period, Records: recs})
	}
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].LeagueID != batches[j].LeagueID {
			return batches[i].LeagueID < batches[j].LeagueID
		}
		return batches[i].Period < batches[j].Period
	})
	return batches, rejected
}

func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "min", "max":
			parts = append(parts, fmt.Sprintf("%s must be %s %s", fe.Field(), bound(fe.Tag()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func bound(tag string) string {
	if tag == "min" {
		return "at least"
	}
	return "at most"
}
