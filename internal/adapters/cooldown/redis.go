package cooldown

import (
	"context"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"time"

	"github.com/redis/go-redis/v9"
)

// The stored value is "<rank>:<window end, unix ms>". Window ends are compared
// against the caller's clock; the key TTL only garbage-collects old entries.
var admitScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
local rank = tonumber(ARGV[1])
local win = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
if v then
  local sep = string.find(v, ':', 1, true)
  local prev = tonumber(string.sub(v, 1, sep - 1))
  local untilMs = tonumber(string.sub(v, sep + 1))
  if now < untilMs and rank <= prev then
    return 0
  end
end
redis.call('SET', KEYS[1], rank .. ':' .. (now + win), 'PX', win)
return 1
`)

// RedisStore shares cooldown windows across monitor replicas.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Admit(ctx context.Context, key string, severity domain.Severity, w time.Duration, now time.Time) (bool, error) {
	if w <= 0 {
		return true, nil
	}
	res, err := admitScript.Run(ctx, s.rdb, []string{s.prefix + key},
		severity.Rank(), w.Milliseconds(), now.UnixMilli(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("cooldown admit %s: %w", key, err)
	}
	return res == 1, nil
}

func (s *RedisStore) Clear(ctx context.Context, prefix string) error {
	iter := s.rdb.Scan(ctx, 0, s.prefix+prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cooldown clear %s: scan: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cooldown clear %s: %w", prefix, err)
	}
	return nil
}
