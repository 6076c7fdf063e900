package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"naa-posts/models"
)

// PostCache holds single posts keyed by id. A nil post with nil error is a miss.
type PostCache interface {
	GetPost(ctx context.Context, id string) (*models.Post, error)
	SetPost(ctx context.Context, post models.Post) error
	InvalidatePost(ctx context.Context, id string) error
}

func postKey(id string) string {
	return fmt.Sprintf("naa:post:%s", id)
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) GetPost(ctx context.Context, id string) (*models.Post, error) {
	data, err := c.client.Get(ctx, postKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var post models.Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	return &post, nil
}

func (c *RedisCache) SetPost(ctx context.Context, post models.Post) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("failed to marshal post: %w", err)
	}
	if err := c.client.Set(ctx, postKey(post.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (c *RedisCache) InvalidatePost(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, postKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NopCache never stores anything; every read is a miss.
type NopCache struct{}

func (NopCache) GetPost(context.Context, string) (*models.Post, error) { return nil, nil }
func (NopCache) SetPost(context.Context, models.Post) error { return nil }
func (NopCache) InvalidatePost(context.Context, string) error { return nil }
