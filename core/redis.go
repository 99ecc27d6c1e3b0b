package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MovieListCacheKey holds the JSON-encoded full catalog.
const MovieListCacheKey = "myflix:movies:all"

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// MovieCache stores the movie list in redis with a TTL.
type MovieCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewMovieCache(client redis.Cmdable, ttl time.Duration) *MovieCache {
	return &MovieCache{client: client, ttl: ttl}
}

// GetList returns the cached list; ok is false on a miss.
func (m *MovieCache) GetList(ctx context.Context) (movies []Movie, ok bool, err error) {
	raw, err := m.client.Get(ctx, MovieListCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(raw, &movies); err != nil {
		return nil, false, err
	}
	return movies, true, nil
}

func (m *MovieCache) SetList(ctx context.Context, movies []Movie) error {
	raw, err := json.Marshal(movies)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, MovieListCacheKey, raw, m.ttl).Err()
}

// Invalidate drops the cached list; called after the catalog changes.
func (m *MovieCache) Invalidate(ctx context.Context) error {
	return m.client.Del(ctx, MovieListCacheKey).Err()
}

// CachedMovieCatalog reads the movie list through a MovieCache. Cache faults
// are logged and fall through to the underlying catalog.
type CachedMovieCatalog struct {
	MovieCatalog
	cache *MovieCache
	log   *zap.Logger
}

func NewCachedMovieCatalog(inner MovieCatalog, cache *MovieCache, log *zap.Logger) *CachedMovieCatalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedMovieCatalog{MovieCatalog: inner, cache: cache, log: log.Named("movie_cache")}
}

func (c *CachedMovieCatalog) List(ctx context.Context) ([]Movie, error) {
	movies, ok, err := c.cache.GetList(ctx)
	if err != nil {
		c.log.Warn("movie cache read failed", zap.Error(err))
	}
	if ok {
		return movies, nil
	}

	movies, err = c.MovieCatalog.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetList(ctx, movies); err != nil {
		c.log.Warn("movie cache write failed", zap.Error(err))
	}
	return movies, nil
}
