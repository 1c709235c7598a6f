package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix = "stationos"
	alertDedupTTL = 5 * time.Minute
)

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// redisClient 发布者用到的 Redis 命令
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisPublisher 通过 Redis pub/sub 发布事件
type RedisPublisher struct {
	client redisClient
	logger *zap.Logger
}

// NewRedisPublisher 连接 Redis 并创建发布者
func NewRedisPublisher(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return newRedisPublisher(client, logger), nil
}

func newRedisPublisher(client redisClient, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

// Close 关闭连接
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Channel 事件主题对应的频道名
func Channel(topic string) string {
	return fmt.Sprintf("%s:%s", channelPrefix, topic)
}

// Publish 发布事件，可去重事件在 TTL 内只发布一次
func (p *RedisPublisher) Publish(ctx context.Context, topic string, data interface{}) {
	if d, ok := data.(Deduplicated); ok {
		key := fmt.Sprintf("%s:dedup:%s:%s", channelPrefix, topic, d.DedupKey())
		fresh, err := p.client.SetNX(ctx, key, "1", alertDedupTTL).Result()
		if err != nil {
			p.logger.Warn("Redis dedup check failed", zap.String("key", key), zap.Error(err))
		} else if !fresh {
			return
		}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		p.logger.Error("Failed to marshal event", zap.String("topic", topic), zap.Error(err))
		return
	}

	if err := p.client.Publish(ctx, Channel(topic), payload).Err(); err != nil {
		p.logger.Warn("Failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}
