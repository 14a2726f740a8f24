// Package publisher fans league lifecycle events out to Redis streams and
// in-process subscribers.
package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/fortuna/gridiron/internal/league"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventType names a league lifecycle event.
type EventType string

const (
	EventPeriodFinalized  EventType = "period.finalized"
	EventPeriodReopened   EventType = "period.reopened"
	EventStandingsUpdated EventType = "standings.updated"
)

// Event is published after a state change commits.
type Event struct {
	Type      EventType               `json:"type"`
	LeagueID  string                  `json:"league_id"`
	Period    int                     `json:"period,omitempty"`
	Actor     string                  `json:"actor,omitempty"`
	Standings []league.StandingsEntry `json:"standings,omitempty"`
	At        time.Time               `json:"at"`
}

// Sink receives events.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// RedisStreamPublisher publishes events to Redis streams, one stream per
// event type: <prefix>.<type>
type RedisStreamPublisher struct {
	client *redis.Client
	prefix string
	maxLen int64
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client, prefix string) *RedisStreamPublisher {
	if prefix == "" {
		prefix = "gridiron"
	}
	return &RedisStreamPublisher{
		client: client,
		prefix: prefix,
		maxLen: 10000,
	}
}

// Stream returns the stream name an event type is written to
func (rsp *RedisStreamPublisher) Stream(t EventType) string {
	return rsp.prefix + "." + string(t)
}

// Publish appends the event to its stream
func (rsp *RedisStreamPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return rsp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: rsp.Stream(ev.Type),
		MaxLen: rsp.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"league_id": ev.LeagueID,
			"data":      string(data),
			"timestamp": ev.At.Unix(),
		},
	}).Err()
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.Events = append(r.Events, ev)
	return nil
}
