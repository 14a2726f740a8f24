// Package consumer feeds raw stat records published on a Redis stream into
// the ingestion boundary.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fortuna/gridiron/internal/ingest"
	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/service"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ingester is the part of the league service the consumer drives.
type Ingester interface {
	Ingest(ctx context.Context, records []ingest.RawStatRecord) service.IngestReport
}

// Message is one decoded stream entry. A message carries either a single
// record or an array of them under the "data" field.
type Message struct {
	ID      string
	Records []ingest.RawStatRecord
}

// StreamConsumer reads raw stats from a Redis stream through a consumer
// group.
type StreamConsumer struct {
	redis      *redis.Client
	ingester   Ingester
	stream     string
	groupName  string
	consumerID string
	batchSize  int64
	blockTime  time.Duration
	logger     zerolog.Logger
}

// NewStreamConsumer creates a new stream consumer
func NewStreamConsumer(client *redis.Client, ingester Ingester, stream, groupName, consumerID string, logger zerolog.Logger) *StreamConsumer {
	return &StreamConsumer{
		redis:      client,
		ingester:   ingester,
		stream:     stream,
		groupName:  groupName,
		consumerID: consumerID,
		batchSize:  100,
		blockTime:  5 * time.Second,
		logger:     logger,
	}
}

// Run consumes until ctx is cancelled.
func (c *StreamConsumer) Run(ctx context.Context) error {
	if err := c.createConsumerGroup(ctx); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	c.logger.Info().Str("stream", c.stream).Str("group", c.groupName).Msg("✓ Stat stream consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		messages, err := c.readMessages(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Msg("error reading stat stream")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if len(messages) == 0 {
			continue
		}

		report := c.Process(ctx, messages)
		for _, id := range ackable(messages, report) {
			if err := c.ackMessage(ctx, id); err != nil {
				c.logger.Warn().Err(err).Str("message_id", id).Msg("ack failed")
			}
		}
	}
}

// Process ingests one read batch as a single call so records for the same
// league-period are normalized together.
func (c *StreamConsumer) Process(ctx context.Context, messages []Message) service.IngestReport {
	var records []ingest.RawStatRecord
	for _, m := range messages {
		records = append(records, m.Records...)
	}
	report := c.ingester.Ingest(ctx, records)
	for _, f := range report.Failed {
		msg := "stat batch dropped"
		if !permanent(f.Err) {
			msg = "stat batch left pending for redelivery"
		}
		c.logger.Warn().Str("league_id", f.LeagueID).Int("period", f.Period).Str("error", f.Reason).Msg(msg)
	}
	return report
}

type batchKey struct {
	leagueID string
	period   int
}

// ackable returns the ids of messages that are done with: every record
// was appended or failed for a reason redelivery cannot fix. A message
// touching a batch that failed otherwise stays pending.
func ackable(messages []Message, report service.IngestReport) []string {
	retry := make(map[batchKey]bool)
	for _, f := range report.Failed {
		if !permanent(f.Err) {
			retry[batchKey{f.LeagueID, f.Period}] = true
		}
	}

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		pending := false
		for _, r := range m.Records {
			if retry[batchKey{r.LeagueID, r.Period}] {
				pending = true
				break
			}
		}
		if !pending {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// permanent reports whether a failed batch would fail the same way on
// redelivery.
func permanent(err error) bool {
	var stale *league.StaleRuleSetReference
	return errors.Is(err, league.ErrNotFound) ||
		errors.Is(err, league.ErrPeriodOutOfRange) ||
		errors.Is(err, league.ErrPeriodFinalized) ||
		errors.As(err, &stale)
}

func (c *StreamConsumer) readMessages(ctx context.Context) ([]Message, error) {
	streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.groupName,
		Consumer: c.consumerID,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockTime,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var messages []Message
	for _, stream := range streams {
		for _, xmsg := range stream.Messages {
			records, err := Decode(xmsg.Values)
			if err != nil {
				c.logger.Warn().Err(err).Str("message_id", xmsg.ID).Msg("undecodable stat message")
				// Malformed payloads are acked and dropped.
				_ = c.ackMessage(context.Background(), xmsg.ID)
				continue
			}
			messages = append(messages, Message{ID: xmsg.ID, Records: records})
		}
	}
	return messages, nil
}

// Decode parses the "data" field of a stream entry.
func Decode(values map[string]interface{}) ([]ingest.RawStatRecord, error) {
	data, ok := values["data"].(string)
	if !ok {
		return nil, errors.New("missing data field")
	}
	data = strings.TrimSpace(data)

	if strings.HasPrefix(data, "[") {
		var records []ingest.RawStatRecord
		if err := json.Unmarshal([]byte(data), &records); err != nil {
			return nil, fmt.Errorf("decoding records: %w", err)
		}
		return records, nil
	}

	var rec ingest.RawStatRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return []ingest.RawStatRecord{rec}, nil
}

func (c *StreamConsumer) ackMessage(ctx context.Context, messageID string) error {
	return c.redis.XAck(ctx, c.stream, c.groupName, messageID).Err()
}

func (c *StreamConsumer) createConsumerGroup(ctx context.Context) error {
	err := c.redis.XGroupCreateMkStream(ctx, c.stream, c.groupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}
