package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"talent-copilot/internal/constants"
	"talent-copilot/internal/logger"
	"talent-copilot/internal/storage"
)

// Store 会话存储
type Store interface {
	// Get 读取会话，不存在时返回 ErrSessionNotFound
	Get(ctx context.Context, id string) (*Session, error)

	// Save 整体覆盖写入，并发写入时后写者生效
	Save(ctx context.Context, s *Session) error

	// Delete 删除会话，不存在时静默成功
	Delete(ctx context.Context, id string) error
}

// MemoryStore 是 Store 接口的内存实现，进程重启后丢失
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string][]byte
	ttl       time.Duration
	expireAt  map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryStore 创建内存存储，ttl 为 0 表示不过期
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		expireAt: make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get 实现 Store 接口。返回反序列化的副本，调用方修改不会影响存储内容
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	data, ok := m.sessions[id]
	exp, hasExp := m.expireAt[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if hasExp && m.now().After(exp) {
		m.evictIfExpired(id)
		return nil, ErrSessionNotFound
	}
	return decode(id, data)
}

// evictIfExpired 在写锁内重新检查过期时间，释放读锁期间被 Save 刷新的会话保留
func (m *MemoryStore) evictIfExpired(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.expireAt[id]; ok && m.now().After(exp) {
		delete(m.sessions, id)
		delete(m.expireAt, id)
	}
}

// sweepLocked 清理过期会话，每个 ttl 周期最多执行一次。调用方需持有写锁
func (m *MemoryStore) sweepLocked(now time.Time) {
	if m.ttl <= 0 || now.Sub(m.lastSweep) < m.ttl {
		return
	}
	m.lastSweep = now
	for id, exp := range m.expireAt {
		if now.After(exp) {
			delete(m.sessions, id)
			delete(m.expireAt, id)
		}
	}
}

// Save 实现 Store 接口
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("cannot save session without id")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", s.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweepLocked(now)
	m.sessions[s.ID] = data
	if m.ttl > 0 {
		m.expireAt[s.ID] = now.Add(m.ttl)
	}
	return nil
}

// Delete 实现 Store 接口
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.expireAt, id)
	return nil
}

// RedisStore 实现了 Store 接口，会话以 JSON 形式保存在一个 key 中
type RedisStore struct {
	redis     *storage.Redis
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore 创建 Redis 会话存储。
// keyPrefix 为空时使用默认前缀，ttl 为 0 表示不过期
func NewRedisStore(r *storage.Redis, keyPrefix string, ttl time.Duration) (*RedisStore, error) {
	if r == nil || r.Client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if keyPrefix == "" {
		keyPrefix = constants.KeyInterviewSessionPrefix
	}
	return &RedisStore{redis: r, keyPrefix: keyPrefix, ttl: ttl}, nil
}

func (rs *RedisStore) buildKey(id string) string {
	return rs.keyPrefix + id
}

// Get 实现 Store 接口
func (rs *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := rs.redis.GetBytes(ctx, rs.buildKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s from redis: %w", id, err)
	}
	return decode(id, data)
}

// Save 实现 Store 接口，每次写入都会刷新过期时间
func (rs *RedisStore) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("cannot save session without id")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", s.ID, err)
	}
	return rs.redis.SetBytes(ctx, rs.buildKey(s.ID), data, rs.ttl)
}

// Delete 实现 Store 接口
func (rs *RedisStore) Delete(ctx context.Context, id string) error {
	return rs.redis.Delete(ctx, rs.buildKey(id))
}

func decode(id string, data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		// 损坏的数据当作不存在处理，下次保存时覆盖
		logger.Warn().Err(err).Str("session_id", id).Msg("会话数据无法解析，已忽略")
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

// NewStore 有 Redis 时使用 Redis，否则退回内存存储
func NewStore(r *storage.Redis, keyPrefix string, ttl time.Duration) Store {
	if r != nil {
		rs, err := NewRedisStore(r, keyPrefix, ttl)
		if err == nil {
			logger.Info().Str("prefix", rs.keyPrefix).Dur("ttl", ttl).Msg("会话保存在 Redis 中")
			return rs
		}
		logger.Warn().Err(err).Msg("Redis 会话存储不可用，退回内存存储")
	}
	logger.Info().Dur("ttl", ttl).Msg("会话保存在内存中")
	return NewMemoryStore(ttl)
}
