package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

const (
	articleKeyPrefix = "article:"
	articleCacheTTL  = 10 * time.Minute
)

// Each cached article is a hash {version, body}. A write only lands when it
// carries a newer version than the cached one, so a slow writer cannot
// overwrite a fresher snapshot.
var setIfNewerScript = redis.NewScript(`
local key = KEYS[1]
local version = tonumber(ARGV[1])
local body = ARGV[2]
local ttl = tonumber(ARGV[3])

local current = redis.call('HGET', key, 'version')
if current and tonumber(current) >= version then
	return 0
end

redis.call('HSET', key, 'version', version, 'body', body)
redis.call('PEXPIRE', key, ttl)
return 1
`)

type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client, ttl: articleCacheTTL}
}

func articleKey(sku int64) string {
	return articleKeyPrefix + strconv.FormatInt(sku, 10)
}

func (r *RedisAdapter) GetArticle(ctx context.Context, sku int64) (*domain.Article, error) {
	body, err := r.client.HGet(ctx, articleKey(sku), "body").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var art domain.Article
	if err := json.Unmarshal(body, &art); err != nil {
		return nil, fmt.Errorf("decode cached article %d: %w", sku, err)
	}
	return &art, nil
}

func (r *RedisAdapter) PutArticle(ctx context.Context, art domain.Article) error {
	body, err := json.Marshal(art)
	if err != nil {
		return err
	}
	return setIfNewerScript.Run(ctx, r.client, []string{articleKey(art.Sku)},
		art.Version, body, r.ttl.Milliseconds()).Err()
}

func (r *RedisAdapter) Invalidate(ctx context.Context, sku int64) error {
	return r.client.Del(ctx, articleKey(sku)).Err()
}
