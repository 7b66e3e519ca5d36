package availability

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps offers under "<prefix>:<date>:<intent>" for a short TTL.
// A per-date generation counter at "<prefix>:<date>:gen" is bumped on every
// invalidation; writes computed under an older generation are dropped.
type RedisCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	genTTL time.Duration
	prefix string
}

// KEYS[1] generation, KEYS[2] entry. ARGV: expected generation, payload, ttl ms.
var redisCacheSetScript = redis.NewScript(`
local gen = tonumber(redis.call("GET", KEYS[1]) or "0")
if gen ~= tonumber(ARGV[1]) then
  return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// KEYS[1] generation, KEYS[2..] entries. ARGV[1] generation ttl ms.
var redisCacheInvalidateScript = redis.NewScript(`
local gen = redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[1])
for i = 2, #KEYS do
  redis.call("DEL", KEYS[i])
end
return gen
`)

func NewRedisCache(rdb redis.Cmdable, ttl time.Duration, prefix string) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if prefix == "" {
		prefix = "avail"
	}
	return &RedisCache{rdb: rdb, ttl: ttl, genTTL: 24*time.Hour + ttl, prefix: prefix}
}

func (c *RedisCache) key(date time.Time, intent model.Intent) string {
	return c.prefix + ":" + date.Format(time.DateOnly) + ":" + intent.String()
}

func (c *RedisCache) genKey(date time.Time) string {
	return c.prefix + ":" + date.Format(time.DateOnly) + ":gen"
}

func (c *RedisCache) Get(ctx context.Context, date time.Time, intent model.Intent) ([]Offer, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(date, intent)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var offers []Offer
	if err := json.Unmarshal(raw, &offers); err != nil {
		return nil, false, err
	}
	return offers, true, nil
}

func (c *RedisCache) Generation(ctx context.Context, date time.Time) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey(date)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set stores offers only while the date is still at generation gen.
func (c *RedisCache) Set(ctx context.Context, date time.Time, intent model.Intent, gen int64, offers []Offer) error {
	if offers == nil {
		offers = []Offer{}
	}
	raw, err := json.Marshal(offers)
	if err != nil {
		return err
	}
	keys := []string{c.genKey(date), c.key(date, intent)}
	return redisCacheSetScript.Run(ctx, c.rdb, keys, gen, raw, c.ttl.Milliseconds()).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, date time.Time) error {
	keys := []string{
		c.genKey(date),
		c.key(date, model.IntentOrientation),
		c.key(date, model.IntentReadyToInvest),
	}
	return redisCacheInvalidateScript.Run(ctx, c.rdb, keys, c.genTTL.Milliseconds()).Err()
}
