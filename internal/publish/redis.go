package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"upgradewatch/internal/config"
	"upgradewatch/internal/interfaces"
	"upgradewatch/internal/upgrade"

	"github.com/go-redis/redis/v8"
)

// RedisCommander is the part of a redis client the publisher uses.
type RedisCommander interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher mirrors the latest wizard state into a redis key and
// announces every change on a channel.
type RedisPublisher struct {
	client  RedisCommander
	key     string
	channel string
	ttl     time.Duration
	logger  interfaces.Logger
}

// NewRedisPublisher creates a publisher writing to key and channel.
func NewRedisPublisher(client RedisCommander, key, channel string, ttl time.Duration, logger interfaces.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		key:     key,
		channel: channel,
		ttl:     ttl,
		logger:  logger.Named("redis-publisher"),
	}
}

// DialRedis connects to redis and checks the connection.
func DialRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	return client, nil
}

// Publish stores state under the key and notifies subscribers of the channel.
func (p *RedisPublisher) Publish(ctx context.Context, state upgrade.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode wizard state: %w", err)
	}

	err = p.client.Set(ctx, p.key, payload, p.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store wizard state in %s: %w", p.key, err)
	}

	err = p.client.Publish(ctx, p.channel, payload).Err()
	if err != nil {
		return fmt.Errorf("failed to publish wizard state on %s: %w", p.channel, err)
	}

	return nil
}

// StateChanged implements upgrade.StateListener.
func (p *RedisPublisher) StateChanged(ctx context.Context, state upgrade.State) {
	err := p.Publish(ctx, state)
	if err != nil {
		p.logger.Warnf("%v", err)
	}
}
