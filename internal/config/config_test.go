package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv 清掉会覆盖配置文件的环境变量，避免本机环境影响测试
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
		"DB_DRIVER", "DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME",
		"SQL_EXECUTION_MODE", "REDIS_ADDRESS", "SERVER_ADDRESS",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644), "无法写入临时配置文件")
	return configPath
}

// TestLoadConfigFromFile 验证 YAML 中的字段被正确加载，未出现的字段保留默认值
func TestLoadConfigFromFile(t *testing.T) {
	clearEnv(t)
	configPath := writeConfig(t, `
llm:
  api_key: "sk-file"
  model: "gpt-4o"
database:
  driver: "mysql"
  host: "db.local"
  name: "talent"
sql:
  execution_mode: "direct"
session:
  ttl: "2h"
`)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "sk-file", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 0.5, cfg.LLM.Temperature, "未配置的温度应使用默认值")
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3306, cfg.Database.Port, "mysql 未配置端口时应使用 3306")
	assert.Equal(t, ExecutionModeDirect, cfg.SQL.ExecutionMode)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL())
	assert.True(t, cfg.HasAPIKey())
	assert.True(t, cfg.DatabaseConfigured())
}

// TestLoadConfigEnvOverrides 环境变量优先于配置文件
func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	configPath := writeConfig(t, `
llm:
  api_key: "sk-file"
database:
  host: "file-host"
  port: 5432
`)
	t.Setenv("OPENAI_KEY", "sk-env")
	t.Setenv("DB_HOST", "env-host")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "candidates")
	t.Setenv("SQL_EXECUTION_MODE", "direct")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "candidates", cfg.Database.Name)
	assert.Equal(t, ExecutionModeDirect, cfg.SQL.ExecutionMode)
}

// TestLoadConfigDefaults 没有 API Key 时加载成功，由调用方决定是否阻断
func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	configPath := writeConfig(t, "server:\n  address: \":9090\"\n")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.False(t, cfg.HasAPIKey())
	assert.False(t, cfg.DatabaseConfigured())
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "gpt-4", cfg.LLM.Model)
	assert.Equal(t, ExecutionModeReadOnly, cfg.SQL.ExecutionMode, "默认必须是只读模式")
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, PDFEngineEino, cfg.Extractor.PDFEngine)
	assert.Equal(t, int64(10<<20), cfg.Extractor.MaxUploadBytes)
	assert.Equal(t, 30, cfg.Extractor.TimeoutSeconds)
	assert.Equal(t, "sid", cfg.Session.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
}

// TestLoadConfigInvalidExecutionMode 非法的执行模式应被校验拒绝
func TestLoadConfigInvalidExecutionMode(t *testing.T) {
	clearEnv(t)
	configPath := writeConfig(t, "sql:\n  execution_mode: \"yolo\"\n")

	_, err := LoadConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "配置校验失败")
}

// TestLoadConfigBadYAML 语法错误的 YAML 返回解析错误
func TestLoadConfigBadYAML(t *testing.T) {
	clearEnv(t)
	configPath := writeConfig(t, "llm: [unclosed\n")

	_, err := LoadConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析配置文件失败")
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, GetDuration("3s", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("abc", time.Minute))
}
