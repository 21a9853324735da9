package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"talent-copilot/internal/constants"
	"talent-copilot/internal/logger"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey LLM 的 API Key 未配置。这是唯一会阻断整个页面的配置错误
var ErrMissingAPIKey = errors.New("OpenAI API key not found, check your .env file")

// SQL 执行模式
const (
	// ExecutionModeReadOnly 只允许单条 SELECT/WITH 语句，并在只读事务中执行
	ExecutionModeReadOnly = "read_only"
	// ExecutionModeDirect 原样执行模型生成的 SQL，权限等同于配置的数据库账号
	ExecutionModeDirect = "direct"
)

// PDF 解析引擎
const (
	PDFEngineEino       = "eino"
	PDFEngineLedongthuc = "ledongthuc"
)

// Config 应用程序配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Database  DatabaseConfig  `yaml:"database"`
	SQL       SQLConfig       `yaml:"sql"`
	Redis     RedisConfig     `yaml:"redis"`
	Session   SessionConfig   `yaml:"session"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Logger    logger.Config   `yaml:"logger"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Address string `yaml:"address" validate:"required"`
	// APIToken 非空时 /api/v1 下除健康检查外的接口需要 Bearer Token
	APIToken string `yaml:"api_token"`
	// ShutdownTimeoutSeconds 优雅退出等待时间(秒)
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds" validate:"gte=0"`
}

// LLMConfig 聊天补全模型配置，模型和温度在启动时固定
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model" validate:"required"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
}

// DatabaseConfig 外部关系数据库配置
type DatabaseConfig struct {
	Driver   string `yaml:"driver" validate:"omitempty,oneof=postgres mysql"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	// 连接池设置
	MaxIdleConns           int `yaml:"max_idle_conns"`
	MaxOpenConns           int `yaml:"max_open_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
	// LogLevel gorm 日志级别(1-4)
	LogLevel int `yaml:"log_level" validate:"gte=0,lte=4"`
}

// SQLConfig SQL 助手配置
type SQLConfig struct {
	ExecutionMode string `yaml:"execution_mode" validate:"oneof=read_only direct"`
	// MaxRows 结果集最多返回的行数，0 表示不限制
	MaxRows int `yaml:"max_rows" validate:"gte=0"`
}

// RedisConfig 会话存储使用的 Redis 配置
type RedisConfig struct {
	Address             string `yaml:"address"`
	Password            string `yaml:"password"`
	DB                  int    `yaml:"db"`
	PoolSize            int    `yaml:"pool_size"`
	DialTimeoutSeconds  int    `yaml:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	TTL        string `yaml:"ttl"`
	KeyPrefix  string `yaml:"key_prefix"`
	CookieName string `yaml:"cookie_name" validate:"required"`
}

// ExtractorConfig 文档文本提取配置
type ExtractorConfig struct {
	PDFEngine      string `yaml:"pdf_engine" validate:"oneof=eino ledongthuc"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" validate:"gt=0"`
	// TimeoutSeconds 单个 PDF 的解析超时(秒)，0 表示不限制
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"gte=0"`
}

// TracingConfig OpenTelemetry 配置，Endpoint 为空时不导出
type TracingConfig struct {
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
}

// HasAPIKey LLM 是否可用
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

// DatabaseConfigured 数据库是否配置
func (c *Config) DatabaseConfigured() bool {
	return c.Database.Host != "" && c.Database.Name != ""
}

// SessionTTL 会话过期时间
func (c *Config) SessionTTL() time.Duration {
	return GetDuration(c.Session.TTL, 24*time.Hour)
}

// LoadConfig 从文件加载配置，随后用 .env 和环境变量覆盖。
// configPath 为空时在常见位置查找，找不到则只使用默认值和环境变量
func LoadConfig(configPath string) (*Config, error) {
	// .env 不存在不算错误
	_ = godotenv.Load()

	cfg := Default()

	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置字段
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	return nil
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Address = ":8080"
	cfg.Server.ShutdownTimeoutSeconds = 5

	cfg.LLM.Model = "gpt-4"
	cfg.LLM.Temperature = 0.5

	cfg.Database.Driver = "postgres"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxIdleConns = 2
	cfg.Database.MaxOpenConns = 10
	cfg.Database.ConnMaxLifetimeMinutes = 30
	cfg.Database.LogLevel = 2

	cfg.SQL.ExecutionMode = ExecutionModeReadOnly
	cfg.SQL.MaxRows = 1000

	cfg.Redis.PoolSize = 10
	cfg.Redis.DialTimeoutSeconds = 5
	cfg.Redis.ReadTimeoutSeconds = 3
	cfg.Redis.WriteTimeoutSeconds = 3

	cfg.Session.TTL = "24h"
	cfg.Session.KeyPrefix = constants.KeyInterviewSessionPrefix
	cfg.Session.CookieName = "sid"

	cfg.Extractor.PDFEngine = PDFEngineEino
	cfg.Extractor.MaxUploadBytes = 10 << 20
	cfg.Extractor.TimeoutSeconds = 30

	cfg.Tracing.ServiceName = "talent-copilot"

	cfg.Logger.Level = "info"
	cfg.Logger.Format = "pretty"
	cfg.Logger.TimeFormat = "2006-01-02 15:04:05"
	return cfg
}

// applyEnvOverrides 环境变量优先于配置文件
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		} else {
			logger.Warn().Str("DB_PORT", v).Msg("DB_PORT 不是合法端口，忽略")
		}
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("SQL_EXECUTION_MODE"); v != "" {
		cfg.SQL.ExecutionMode = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
}

// applyDefaults 补齐 YAML 中显式置空的字段
func applyDefaults(cfg *Config) {
	if cfg.Database.Port == 0 {
		switch cfg.Database.Driver {
		case "mysql":
			cfg.Database.Port = 3306
		default:
			cfg.Database.Port = 5432
		}
	}
	if cfg.SQL.ExecutionMode == "" {
		cfg.SQL.ExecutionMode = ExecutionModeReadOnly
	}
	if cfg.Extractor.PDFEngine == "" {
		cfg.Extractor.PDFEngine = PDFEngineEino
	}
	if cfg.Extractor.MaxUploadBytes <= 0 {
		cfg.Extractor.MaxUploadBytes = 10 << 20
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "sid"
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = constants.KeyInterviewSessionPrefix
	}
}

func findConfigFile() string {
	searchPaths := []string{
		"config.yaml",
		filepath.Join("configs", "config.yaml"),
	}
	if execPath, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(filepath.Dir(execPath), "config.yaml"))
	}
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// GetDuration 解析时长字符串，失败时返回默认值
func GetDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultDuration
	}
	return d
}
