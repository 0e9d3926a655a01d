package facegate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisLedger is the default Ledger: a per-identity failure set scored by
// timestamp for the lockout window, plus a capped global list holding every
// attempt as a JSON line. Both structures are append-only from the engine's
// point of view; aged failure entries are pruned, never rewritten.
type redisLedger struct {
	redis          *redis.Client
	prefix         string
	streamMaxLen   int64
	countCancelled bool
}

func newRedisLedger(redisClient *redis.Client, cfg LedgerConfig, countCancelled bool) *redisLedger {
	return &redisLedger{
		redis:          redisClient,
		prefix:         cfg.RedisPrefix,
		streamMaxLen:   cfg.StreamMaxLen,
		countCancelled: countCancelled,
	}
}

func (l *redisLedger) failKey(identity string) string {
	return l.prefix + ":fail:" + identity
}

func (l *redisLedger) streamKey() string {
	return l.prefix + ":log"
}

func (l *redisLedger) countsTowardLockout(rec AttemptRecord) bool {
	if rec.Identity == "" {
		return false
	}
	switch rec.Outcome {
	case AttemptFailure:
		return true
	case AttemptCancelled:
		return l.countCancelled
	default:
		return false
	}
}

// Record appends the attempt to the global stream and, for lockout-relevant
// outcomes, to the identity's failure set. A success does not erase earlier
// failures; the window does that by aging them out.
func (l *redisLedger) Record(ctx context.Context, rec AttemptRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := l.redis.TxPipeline()
	pipe.LPush(ctx, l.streamKey(), line)
	pipe.LTrim(ctx, l.streamKey(), 0, l.streamMaxLen-1)
	if l.countsTowardLockout(rec) {
		pipe.ZAdd(ctx, l.failKey(rec.Identity), redis.Z{
			Score:  float64(rec.Timestamp.UnixNano()),
			Member: rec.ID,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// RecentFailures prunes entries older than the window and counts what is
// left. The lockout state heals itself as failures age out.
func (l *redisLedger) RecentFailures(ctx context.Context, identity string, window time.Duration) (int, error) {
	key := l.failKey(identity)
	cutoff := time.Now().Add(-window).UnixNano()

	if err := l.redis.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	count, err := l.redis.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return int(count), nil
}

// RecentAttempts returns up to limit most recent records from the global
// stream, newest first.
func (l *redisLedger) RecentAttempts(ctx context.Context, limit int64) ([]AttemptRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	lines, err := l.redis.LRange(ctx, l.streamKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	records := make([]AttemptRecord, 0, len(lines))
	for _, line := range lines {
		var rec AttemptRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
