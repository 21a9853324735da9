package storage

import (
	"context"
	"fmt"
	"strings"

	"talent-copilot/internal/config"
	"talent-copilot/internal/logger"
)

// Storage 聚合外部依赖。所有组件都是可选的：
// 没有数据库时 SQL 助手不可用，没有 Redis 时会话保存在内存中
type Storage struct {
	// 关系型数据库
	Database *Database

	// 键值存储
	Redis *Redis
}

// NewStorage 按配置初始化存储组件，单个组件失败只记录警告
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}
	var initErrors []string

	if cfg.DatabaseConfigured() {
		logger.Info().Str("driver", cfg.Database.Driver).Msg("初始化数据库...")
		db, err := NewDatabase(cfg.Database)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化数据库失败")
			initErrors = append(initErrors, fmt.Sprintf("Database: %v", err))
		} else {
			s.Database = db
		}
	} else {
		logger.Warn().Msg("数据库未配置，SQL 助手不可用")
	}

	if cfg.Redis.Address != "" {
		logger.Info().Str("address", cfg.Redis.Address).Msg("初始化Redis...")
		r, err := NewRedisAdapter(cfg.Redis, WithRedisClientName(cfg.Tracing.ServiceName))
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Redis失败，会话将保存在内存中")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		} else {
			s.Redis = r
		}
	} else {
		logger.Info().Msg("Redis未配置，会话将保存在内存中")
	}

	if len(initErrors) > 0 {
		logger.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败")
	}
	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.Database != nil {
		if err := s.Database.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭数据库连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
