package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds the client used by the recorder. Short
// timeouts keep a slow redis from stalling the monitor loop.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis addr is empty")
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}), nil
}

// RedisRecorder keeps daily counters of scanned lines, matches by
// severity, and deliveries by channel. Recording is best-effort; a
// nil recorder or a down redis never blocks monitoring.
type RedisRecorder struct {
	rdb    *redis.Client
	dayTTL time.Duration
}

type RecorderOption func(*RedisRecorder)

func WithDayTTL(ttl time.Duration) RecorderOption {
	return func(r *RedisRecorder) {
		if ttl > 0 {
			r.dayTTL = ttl
		}
	}
}

func NewRedisRecorder(rdb *redis.Client, opts ...RecorderOption) *RedisRecorder {
	r := &RedisRecorder{
		rdb:    rdb,
		dayTTL: 90 * 24 * time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func linesKey(date string) string { return "logex:lines:" + date }

func matchesKey(sev, date string) string {
	return fmt.Sprintf("logex:matches:%s:%s", sev, date)
}
func deliveriesKey(channel, date string) string {
	return fmt.Sprintf("logex:deliveries:%s:%s", channel, date)
}

func deliveryErrorsKey(date string) string { return "logex:delivery_errors:" + date }

// ObserveLines adds n scanned lines to today's counter.
func (r *RedisRecorder) ObserveLines(ctx context.Context, n int, ts time.Time) {
	if r == nil || r.rdb == nil || n <= 0 {
		return
	}
	date := ts.UTC().Format("2006-01-02")
	pipe := r.rdb.Pipeline()
	key := linesKey(date)
	pipe.IncrBy(ctx, key, int64(n))
	pipe.Expire(ctx, key, r.dayTTL)
	_, _ = pipe.Exec(ctx)
}

// ObserveMatch bumps today's counter for one severity.
func (r *RedisRecorder) ObserveMatch(ctx context.Context, severity string, ts time.Time) {
	if r == nil || r.rdb == nil || severity == "" {
		return
	}
	date := ts.UTC().Format("2006-01-02")
	pipe := r.rdb.Pipeline()
	key := matchesKey(severity, date)
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, r.dayTTL)
	_, _ = pipe.Exec(ctx)
}

// ObserveDelivery bumps today's counter for one channel attempt.
func (r *RedisRecorder) ObserveDelivery(ctx context.Context, channel string, failed bool, ts time.Time) {
	if r == nil || r.rdb == nil || channel == "" {
		return
	}
	date := ts.UTC().Format("2006-01-02")
	pipe := r.rdb.Pipeline()
	key := deliveriesKey(channel, date)
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, r.dayTTL)
	if failed {
		ekey := deliveryErrorsKey(date)
		pipe.Incr(ctx, ekey)
		pipe.Expire(ctx, ekey, r.dayTTL)
	}
	_, _ = pipe.Exec(ctx)
}

// TodaySummary is the aggregate read back for /api/metrics/today.
type TodaySummary struct {
	Date           string           `json:"date"`
	Lines          int64            `json:"lines"`
	Matches        map[string]int64 `json:"matches"`
	Deliveries     map[string]int64 `json:"deliveries"`
	DeliveryErrors int64            `json:"delivery_errors"`
}

// Today reads back today's counters. ok is false when no recorder is
// configured, letting callers distinguish "disabled" from "zero".
func (r *RedisRecorder) Today(ctx context.Context, now time.Time, severities, channels []string) (TodaySummary, bool, error) {
	if r == nil || r.rdb == nil {
		return TodaySummary{}, false, nil
	}
	date := now.UTC().Format("2006-01-02")
	out := TodaySummary{
		Date:       date,
		Matches:    map[string]int64{},
		Deliveries: map[string]int64{},
	}

	pipe := r.rdb.Pipeline()
	linesCmd := pipe.Get(ctx, linesKey(date))
	errsCmd := pipe.Get(ctx, deliveryErrorsKey(date))
	matchCmds := map[string]*redis.StringCmd{}
	for _, sev := range severities {
		matchCmds[sev] = pipe.Get(ctx, matchesKey(sev, date))
	}
	deliveryCmds := map[string]*redis.StringCmd{}
	for _, ch := range channels {
		deliveryCmds[ch] = pipe.Get(ctx, deliveriesKey(ch, date))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return out, true, err
	}

	out.Lines, _ = linesCmd.Int64()
	out.DeliveryErrors, _ = errsCmd.Int64()
	for sev, cmd := range matchCmds {
		out.Matches[sev], _ = cmd.Int64()
	}
	for ch, cmd := range deliveryCmds {
		out.Deliveries[ch], _ = cmd.Int64()
	}
	return out, true, nil
}
