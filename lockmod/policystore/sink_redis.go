package policystore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var redisSnapshotPrefix = "warden/policy/"

// Stores the snapshot as a single redis string value. Useful when the daemon runs without a persistent local disk.
type RedisSink struct {
	Client *redis.Client
	Key    string
}

var _ Sink = (*RedisSink)(nil)

func NewRedisSink(redisURL, name string) (*RedisSink, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisSink{
		Client: rdb,
		Key:    redisSnapshotPrefix + name,
	}, nil
}

func (s *RedisSink) Load(ctx context.Context) ([]byte, error) {
	raw, err := s.Client.Get(ctx, s.Key).Bytes()
	if err == redis.Nil {
		return nil, ErrNoSnapshot
	} else if err != nil {
		return nil, fmt.Errorf("reading policy snapshot from redis: %w", err)
	}
	return raw, nil
}

func (s *RedisSink) Save(ctx context.Context, raw []byte) error {
	// no expiration: policy lives as long as the deployment
	if err := s.Client.Set(ctx, s.Key, raw, 0).Err(); err != nil {
		return fmt.Errorf("writing policy snapshot to redis: %w", err)
	}
	return nil
}
