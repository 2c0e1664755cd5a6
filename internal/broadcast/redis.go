package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	// channel Pub/Sub 频道：在线协作方实时消费
	channel = "dispatch:events"
	// stream Redis Stream：离线协作方补读，自动裁剪
	stream       = "dispatch:events:stream"
	streamMaxLen = 10000
)

// RedisGateway 基于 Redis 的广播网关
// 同一事件双写：Pub/Sub 推实时订阅者，Stream 供断线重连后补读
type RedisGateway struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisGateway 创建Redis广播网关
func NewRedisGateway(addr, password string, db int, logger *zap.Logger) (*RedisGateway, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisGateway{client: client, logger: logger}, nil
}

type envelope struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Publish 发布广播事件（尽力而为，失败只记日志）
func (g *RedisGateway) Publish(ctx context.Context, event string, payload interface{}) {
	body, err := json.Marshal(envelope{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		g.logger.Error("failed to marshal broadcast event",
			zap.String("event", event), zap.Error(err))
		return
	}

	if err := g.client.Publish(ctx, channel, body).Err(); err != nil {
		g.logger.Warn("failed to publish broadcast event",
			zap.String("event", event), zap.Error(err))
	}

	err = g.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(body)},
	}).Err()
	if err != nil {
		g.logger.Warn("failed to append broadcast stream",
			zap.String("event", event), zap.Error(err))
	}
}

// Close 关闭Redis连接
func (g *RedisGateway) Close() error {
	return g.client.Close()
}
