package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_MissingFileFallsBackToDefaults 配置文件缺失时走默认值 + 环境变量，不报错
func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such-config.yaml"))
	require.NoError(t, err, "缺失的配置文件不是错误")

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "feature_extraction", cfg.RabbitMQ.Queue)
	assert.GreaterOrEqual(t, cfg.Extraction.Workers, 1)
}

// TestLoad_EnvOverride 环境变量覆盖默认值
func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DB_TYPE", "mysql")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

// TestLoad_FileOverridesDefaults YAML 覆盖默认值，未配置的键保留默认
func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Database.Type)
}
