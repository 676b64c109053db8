package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultRedisTimeout = 500 * time.Millisecond

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// Timeout bounds every Redis call. Defaults to 500ms.
	Timeout time.Duration
}

// RedisStore shares cached tokens between broker instances. Each token is a key with a Redis
// TTL; a sorted set indexed by insertion time enforces the entry bound, dropping the oldest
// entries first.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	maxEntries int
	timeout    time.Duration
	nowFunc    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects lazily. An unreachable server is logged, not returned: lookups miss
// until it comes back.
func NewRedisStore(opt RedisOptions, ttl time.Duration, maxEntries int, opts ...Option) (*RedisStore, error) {
	if ttl <= 0 || maxEntries <= 0 {
		return nil, fmt.Errorf("cache ttl and max entries must be positive, got %s and %d", ttl, maxEntries)
	}
	if opt.Timeout <= 0 {
		opt.Timeout = defaultRedisTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opt.Addr,
		Password:     opt.Password,
		DB:           opt.DB,
		DialTimeout:  opt.Timeout,
		ReadTimeout:  opt.Timeout,
		WriteTimeout: opt.Timeout,
		MaxRetries:   -1,
	})
	s := NewRedisStoreWithClient(client, opt.Prefix, ttl, maxEntries, opts...)
	s.timeout = opt.Timeout

	ctx, cancel := context.WithTimeout(context.Background(), opt.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", opt.Addr).Msg("Redis token cache unreachable, lookups will miss")
	}
	return s, nil
}

// NewRedisStoreWithClient uses an existing client. The caller keeps ownership of it.
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration, maxEntries int, opts ...Option) *RedisStore {
	o := buildOptions(opts)
	return &RedisStore{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		maxEntries: maxEntries,
		timeout:    defaultRedisTimeout,
		nowFunc:    o.nowFunc,
	}
}

func (s *RedisStore) key(k Key) string {
	if s.prefix == "" {
		return "token:" + string(k)
	}
	return s.prefix + ":token:" + string(k)
}

func (s *RedisStore) indexKey() string {
	if s.prefix == "" {
		return "token-index"
	}
	return s.prefix + ":token-index"
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *RedisStore) Get(ctx context.Context, key Key) (string, bool) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		log.Debug().Err(err).Msg("Redis token cache lookup failed")
		return "", false
	}
	return val, true
}

func (s *RedisStore) Add(ctx context.Context, key Key, token string) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.nowFunc()
	member := s.key(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, member, token, s.ttl)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(now.UnixNano()), Member: member})
		pipe.ZRemRangeByScore(ctx, s.indexKey(), "-inf", strconv.FormatInt(now.Add(-s.ttl).UnixNano(), 10))
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Msg("Redis token cache write failed")
		return
	}
	s.trim(ctx)
}

// trim drops the oldest entries beyond maxEntries.
func (s *RedisStore) trim(ctx context.Context) {
	size, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil || size <= int64(s.maxEntries) {
		return
	}
	oldest, err := s.client.ZPopMin(ctx, s.indexKey(), size-int64(s.maxEntries)).Result()
	if err != nil || len(oldest) == 0 {
		return
	}
	keys := make([]string, 0, len(oldest))
	for _, z := range oldest {
		if k, ok := z.Member.(string); ok {
			keys = append(keys, k)
		}
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		log.Debug().Err(err).Msg("Redis token cache trim failed")
	}
}

func (s *RedisStore) Remove(ctx context.Context, key Key) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	member := s.key(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, member)
		pipe.ZRem(ctx, s.indexKey(), member)
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Msg("Redis token cache remove failed")
	}
}

// Len counts indexed entries younger than the TTL.
func (s *RedisStore) Len(ctx context.Context) int {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	minScore := strconv.FormatInt(s.nowFunc().Add(-s.ttl).UnixNano(), 10)
	n, err := s.client.ZCount(ctx, s.indexKey(), "("+minScore, "+inf").Result()
	if err != nil {
		return 0
	}
	return int(n)
}

func (s *RedisStore) Purge(ctx context.Context) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	keys, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		log.Debug().Err(err).Msg("Redis token cache purge failed")
		return
	}
	keys = append(keys, s.indexKey())
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		log.Debug().Err(err).Msg("Redis token cache purge failed")
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
