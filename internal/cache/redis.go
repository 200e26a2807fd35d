package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/storefront/internal/models"
)

const DefaultTTL = 15 * time.Minute

// setIfNewer writes the payload and its version unless the stored version
// is greater. Versions are zero padded so they compare as strings.
var setIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current and current > ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[3])
return 1
`)

// evict drops the payload and raises the version to the delete time.
var evict = redis.NewScript(`
redis.call('DEL', KEYS[1])
local current = redis.call('GET', KEYS[2])
if current and current > ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
return 1
`)

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = DefaultTTL
	}
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
		now:     time.Now,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
	now     func() time.Time
}

func (r RedisCache) Get(ctx context.Context, owner models.Owner) (*models.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (r RedisCache) Set(ctx context.Context, cart *models.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// spread expiry so carts cached together do not expire together
	jitter := time.Duration(rand.Int63n(int64(r.baseTTL/4) + 1))
	keys := []string{cacheKey(cart.Owner), versionKey(cart.Owner)}
	ttl := (r.baseTTL + jitter).Milliseconds()
	if err := setIfNewer.Run(ctx, r.client, keys, version(cart.UpdatedAt), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context, owner models.Owner) error {
	keys := []string{cacheKey(owner), versionKey(owner)}
	// the marker outlives any entry written before it
	ttl := (r.baseTTL + r.baseTTL/4).Milliseconds()
	if err := evict.Run(ctx, r.client, keys, version(r.now()), ttl).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(owner models.Owner) string {
	return fmt.Sprintf("cart:%s", owner.Key())
}

func versionKey(owner models.Owner) string {
	return fmt.Sprintf("cart:%s:version", owner.Key())
}

// version keys entries by microsecond, the precision postgres keeps.
func version(t time.Time) string {
	if t.IsZero() || t.UnixMicro() < 0 {
		return fmt.Sprintf("%020d", 0)
	}
	return fmt.Sprintf("%020d", t.UnixMicro())
}
