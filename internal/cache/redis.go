package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 7 * 24 * time.Hour

// RedisCache keeps period scores in Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewRedisCacheFromClient(client), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, ttl: defaultTTL}
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Get returns the cached scores for a period if the fingerprint matches
func (rc *RedisCache) Get(ctx context.Context, leagueID string, period int, fingerprint string) ([]league.PeriodScore, bool, error) {
	raw, err := rc.client.Get(ctx, scoreKey(leagueID, period)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("decoding cached scores: %w", err)
	}
	if e.Fingerprint != fingerprint {
		return nil, false, nil
	}
	return e.Scores, true, nil
}

// Put stores scores with TTL
func (rc *RedisCache) Put(ctx context.Context, leagueID string, period int, fingerprint string, scores []league.PeriodScore) error {
	data, err := json.Marshal(entry{Fingerprint: fingerprint, Scores: scores})
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, scoreKey(leagueID, period), data, rc.ttl).Err()
}

// Invalidate removes the cached periods
func (rc *RedisCache) Invalidate(ctx context.Context, leagueID string, periods ...int) error {
	if len(periods) == 0 {
		return nil
	}
	keys := make([]string, 0, len(periods))
	for _, p := range periods {
		keys = append(keys, scoreKey(leagueID, p))
	}
	return rc.client.Del(ctx, keys...).Err()
}

func scoreKey(leagueID string, period int) string {
	return fmt.Sprintf("gridiron:scores:%s:%d", leagueID, period)
}
