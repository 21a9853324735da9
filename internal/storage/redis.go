package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"talent-copilot/internal/config"
	"talent-copilot/internal/tracing"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound key 不存在
var ErrNotFound = errors.New("key not found")

var redisTracer = otel.Tracer("talent-copilot/storage/redis")

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config config.RedisConfig
}

// RedisOption 创建 Redis 客户端时的可选项
type RedisOption func(*redis.Options)

// WithRedisClientName 设置连接名，便于在 CLIENT LIST 中识别
func WithRedisClientName(name string) RedisOption {
	return func(o *redis.Options) {
		o.ClientName = name
	}
}

// NewRedisAdapter 创建 Redis 客户端并检查连接
func NewRedisAdapter(cfg config.RedisConfig, opts ...RedisOption) (*Redis, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}
	for _, o := range opts {
		o(opt)
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// NewRedisFromClient 包装已有客户端
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) startSpan(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return redisTracer.Start(ctx, "redis."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemRedis,
			attribute.String("db.operation", op),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
		),
	)
}

// GetBytes 读取 key，不存在时返回 ErrNotFound
func (r *Redis) GetBytes(ctx context.Context, key string) ([]byte, error) {
	ctx, span := r.startSpan(ctx, "GET", key)
	defer span.End()

	data, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, fmt.Errorf("redis GET %s 失败: %w", key, err)
	}
	return data, nil
}

// SetBytes 写入 key 并设置过期时间，ttl 为 0 表示不过期
func (r *Redis) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := r.startSpan(ctx, "SET", key)
	defer span.End()

	if err := r.Client.Set(ctx, key, value, ttl).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("redis SET %s 失败: %w", key, err)
	}
	return nil
}

// Delete 删除 key，不存在不算错误
func (r *Redis) Delete(ctx context.Context, key string) error {
	ctx, span := r.startSpan(ctx, "DEL", key)
	defer span.End()

	if err := r.Client.Del(ctx, key).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("redis DEL %s 失败: %w", key, err)
	}
	return nil
}
