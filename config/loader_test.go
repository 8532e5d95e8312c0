// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envMap 返回基于 map 的环境变量读取函数，避免测试受宿主环境影响
func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().WithEnvLookup(envMap(nil)).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 9000
  rate_limit_rps: 0
llm:
  provider: deepseek
  api_key: sk-test
  model: deepseek-chat
optimizer:
  timeout: 20s
  temperature: 0.5
  strict_sequence: true
  max_retries: 2
log:
  level: debug
  format: console
`)
	cfg, err := NewLoader().WithConfigPath(path).WithEnvLookup(envMap(nil)).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, float64(0), cfg.Server.RateLimitRPS)
	assert.Equal(t, "deepseek", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, 20*time.Second, cfg.Optimizer.Timeout)
	assert.Equal(t, float32(0.5), cfg.Optimizer.Temperature)
	assert.True(t, cfg.Optimizer.StrictSequence)
	assert.Equal(t, 2, cfg.Optimizer.MaxRetries)
	assert.Equal(t, "debug", cfg.Log.Level)
	// 未出现在文件中的字段保留默认值
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, []string{"stdout"}, cfg.Log.OutputPaths)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	cfg, err := NewLoader().WithEnvLookup(envMap(map[string]string{
		"FORMFLOW_SERVER_HTTP_PORT":            "8181",
		"FORMFLOW_LLM_PROVIDER":                "openai",
		"FORMFLOW_LLM_API_KEY":                 "sk-env",
		"FORMFLOW_LLM_JSON_OBJECT_ONLY":        "true",
		"FORMFLOW_OPTIMIZER_TIMEOUT":           "5s",
		"FORMFLOW_OPTIMIZER_TEMPERATURE":       "1.25",
		"FORMFLOW_OPTIMIZER_BREAKER_THRESHOLD": "3",
		"FORMFLOW_LOG_OUTPUT_PATHS":            "stdout, /tmp/formflow.log",
		"FORMFLOW_TELEMETRY_SAMPLE_RATE":       "0.5",
	})).Load()
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.HTTPPort)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.True(t, cfg.LLM.JSONObjectOnly)
	assert.Equal(t, 5*time.Second, cfg.Optimizer.Timeout)
	assert.Equal(t, float32(1.25), cfg.Optimizer.Temperature)
	assert.Equal(t, 3, cfg.Optimizer.BreakerThreshold)
	assert.Equal(t, []string{"stdout", "/tmp/formflow.log"}, cfg.Log.OutputPaths)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: qwen\n  model: qwen-plus\n")
	cfg, err := NewLoader().
		WithConfigPath(path).
		WithEnvLookup(envMap(map[string]string{"FORMFLOW_LLM_MODEL": "qwen-max"})).
		Load()
	require.NoError(t, err)
	assert.Equal(t, "qwen", cfg.LLM.Provider)
	assert.Equal(t, "qwen-max", cfg.LLM.Model)
}

func TestLoader_SetenvIsRead(t *testing.T) {
	t.Setenv("FORMFLOW_LLM_MODEL", "gemini-2.5-pro")
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	cfg, err := NewLoader().
		WithEnvPrefix("FF").
		WithEnvLookup(envMap(map[string]string{
			"FF_SERVER_HTTP_PORT":       "7000",
			"FORMFLOW_SERVER_HTTP_PORT": "7001",
		})).
		Load()
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.HTTPPort)
}

func TestLoader_BadEnvValue(t *testing.T) {
	_, err := NewLoader().WithEnvLookup(envMap(map[string]string{
		"FORMFLOW_OPTIMIZER_TIMEOUT": "thirty seconds",
	})).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORMFLOW_OPTIMIZER_TIMEOUT")
}

func TestLoader_WithValidator(t *testing.T) {
	_, err := NewLoader().
		WithEnvLookup(envMap(nil)).
		WithValidator(func(c *Config) error {
			if c.LLM.APIKey == "" {
				return assert.AnError
			}
			return nil
		}).
		Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")).
		WithEnvLookup(envMap(nil)).
		Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	_, err := NewLoader().WithConfigPath(path).WithEnvLookup(envMap(nil)).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.HTTPPort = 0 }, "Config.Server.HTTPPort"},
		{"port too large", func(c *Config) { c.Server.HTTPPort = 70000 }, "Config.Server.HTTPPort"},
		{"no provider", func(c *Config) { c.LLM.Provider = "" }, "Config.LLM.Provider"},
		{"bad base url", func(c *Config) { c.LLM.BaseURL = "not a url" }, "Config.LLM.BaseURL"},
		{"zero optimizer timeout", func(c *Config) { c.Optimizer.Timeout = 0 }, "Config.Optimizer.Timeout"},
		{"temperature too high", func(c *Config) { c.Optimizer.Temperature = 2.5 }, "Config.Optimizer.Temperature"},
		{"negative retries", func(c *Config) { c.Optimizer.MaxRetries = -1 }, "Config.Optimizer.MaxRetries"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "Config.Log.Level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "Config.Log.Format"},
		{"telemetry without endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.OTLPEndpoint = ""
		}, "Config.Telemetry.OTLPEndpoint"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "Config.Telemetry.SampleRate"},
		{"optimizer timeout over write timeout", func(c *Config) {
			c.Optimizer.Timeout = 2 * time.Minute
		}, "optimizer.timeout must not exceed server.write_timeout"},
		{"retry delays inverted", func(c *Config) {
			c.Optimizer.RetryInitialDelay = 10 * time.Second
			c.Optimizer.RetryMaxDelay = time.Second
		}, "retry_max_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateReportsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTPPort")
	assert.Contains(t, err.Error(), "Level")
}

// --- 辅助函数测试 ---

func TestMustLoad(t *testing.T) {
	path := writeConfig(t, "server:\n  http_port: 8090\n")
	var cfg *Config
	assert.NotPanics(t, func() { cfg = MustLoad(path) })
	assert.Equal(t, 8090, cfg.Server.HTTPPort)

	bad := writeConfig(t, "server:\n  http_port: -1\n")
	assert.Panics(t, func() { MustLoad(bad) })
}
