package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dfwthrift/contentpipe/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	processedSegment  = "processed:"
	validationSegment = "feedval:"
)

// RedisClient keeps dedupe markers and feed validation results in Redis
type RedisClient struct {
	client        *redis.Client
	prefix        string
	validationTTL time.Duration
}

func NewRedisClient(url, prefix string, validationTTL time.Duration) (*RedisClient, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client:        client,
		prefix:        prefix,
		validationTTL: validationTTL,
	}, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) IsProcessed(ctx context.Context, hash string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.prefix+processedSegment+hash).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists error: %w", err)
	}
	return exists > 0, nil
}

func (r *RedisClient) MarkProcessed(ctx context.Context, hash string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+processedSegment+hash, "1", ttl).Err()
}

// ClearProcessed removes every dedupe marker so the next run sees all items as new
func (r *RedisClient) ClearProcessed(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+processedSegment+"*", 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning keys: %w", err)
	}

	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("error deleting keys: %w", err)
		}
	}

	return nil
}

func (r *RedisClient) GetFeedValidation(ctx context.Context, url string) (*models.FeedValidation, error) {
	data, err := r.client.Get(ctx, r.prefix+validationSegment+url).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var v models.FeedValidation
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode cached validation: %w", err)
	}
	return &v, nil
}

// UpsertFeedValidation stores v. Redis expiry matches the freshness window,
// the validator still checks last_validated itself.
func (r *RedisClient) UpsertFeedValidation(ctx context.Context, v *models.FeedValidation) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode validation: %w", err)
	}
	return r.client.Set(ctx, r.prefix+validationSegment+v.URL, data, r.validationTTL).Err()
}
