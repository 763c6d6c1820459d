package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullYAML = `
server:
  host: "127.0.0.1"
  port: 8081
  shutdown_timeout: 20s
  daemon:
    enabled: true
    pid_file: "/tmp/dcm.pid"
discord:
  token: "yaml-token"
  requests_per_second: 4.5
  burst: 3
  request_timeout: 10s
  breaker:
    max_failures: 7
    timeout: 1m
retrieval:
  display_name_lookup: false
  user_refresh: 15m
purge:
  retain_attached_media: true
  reaction_removal_from: ["111", "222"]
export:
  format: "html"
  messages_per_page: 500
  start_delay: 0s
  max_media_size: "8MiB"
  media:
    videos: false
  archive:
    kind: "s3"
    s3:
      bucket: "exports"
      region: "eu-central-1"
processing:
  task_timeout: 120s
  cache_ttl: 30m
logging:
  level: "debug"
  format: "text"
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func TestLoadFromYAML(t *testing.T) {
	t.Run("success with all sections", func(t *testing.T) {
		cfg := defaultConfig()
		err := loadFromYAML(createTempConfigFile(t, fullYAML), cfg)
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:8081", cfg.Address())
		assert.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)
		assert.True(t, cfg.Server.Daemon.Enabled)
		assert.Equal(t, "/tmp/dcm.pid", cfg.Server.Daemon.PidFile)

		assert.Equal(t, "yaml-token", cfg.Discord.Token)
		assert.Equal(t, 4.5, cfg.Discord.RequestsPerSecond)
		assert.Equal(t, 3, cfg.Discord.Burst)
		assert.Equal(t, 10*time.Second, cfg.Discord.RequestTimeout)
		assert.Equal(t, uint32(7), cfg.Discord.Breaker.MaxFailures)
		assert.Equal(t, time.Minute, cfg.Discord.Breaker.Timeout)

		assert.False(t, cfg.Retrieval.DisplayNameLookup)
		assert.True(t, cfg.Retrieval.ServerNicknameLookup, "значение по умолчанию сохраняется")
		assert.Equal(t, 15*time.Minute, cfg.Retrieval.UserRefresh)

		assert.True(t, cfg.Purge.RetainAttachedMedia)
		assert.Equal(t, []string{"111", "222"}, cfg.Purge.ReactionRemovalFrom)

		assert.Equal(t, "html", cfg.Export.Format)
		assert.Equal(t, 500, cfg.Export.MessagesPerPage)
		assert.Zero(t, cfg.Export.StartDelay)
		assert.False(t, cfg.Export.Media.Videos)
		assert.True(t, cfg.Export.Media.Images)
		assert.Equal(t, "exports", cfg.Export.Archive.S3.Bucket)

		size, err := cfg.MaxMediaSizeBytes()
		require.NoError(t, err)
		assert.Equal(t, int64(8<<20), size)

		assert.Equal(t, 120*time.Second, cfg.Processing.TaskTimeout)
		assert.Equal(t, 30*time.Minute, cfg.Processing.CacheTTL)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("file not found is not an error", func(t *testing.T) {
		cfg := defaultConfig()
		err := loadFromYAML("non_existent_file.yml", cfg)
		assert.NoError(t, err)
		assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		cfg := defaultConfig()
		err := loadFromYAML(createTempConfigFile(t, "invalid yaml: {"), cfg)
		assert.Error(t, err)
	})
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := LoadConfig(createTempConfigFile(t, fullYAML))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Discord.Token)
	assert.Equal(t, 9090, cfg.Server.Port)

	t.Run("invalid port", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "abc")
		_, err := LoadConfig("non_existent_file.yml")
		assert.Error(t, err)
	})
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()
	cfg.Discord.Token = "token"
	require.NoError(t, cfg.Validate())

	size, err := cfg.MaxMediaSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(25_000_000), size)

	cacheSize, err := cfg.CacheMaxBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(256_000_000), cacheSize)
}

func TestValidate(t *testing.T) {
	validConfig := func(t *testing.T) *Config {
		cfg := defaultConfig()
		require.NoError(t, loadFromYAML(createTempConfigFile(t, fullYAML), cfg))
		return cfg
	}

	testCases := []struct {
		name    string
		mutator func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty token", func(c *Config) { c.Discord.Token = "" }, true},
		{"invalid rps", func(c *Config) { c.Discord.RequestsPerSecond = 0 }, true},
		{"invalid burst", func(c *Config) { c.Discord.Burst = 0 }, true},
		{"invalid breaker", func(c *Config) { c.Discord.Breaker.MaxFailures = 0 }, true},
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, true},
		{"invalid shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, true},
		{"daemon without pid file", func(c *Config) { c.Server.Daemon.PidFile = "" }, true},
		{"invalid user refresh", func(c *Config) { c.Retrieval.UserRefresh = 0 }, true},
		{"invalid page size", func(c *Config) { c.Export.MessagesPerPage = 0 }, true},
		{"invalid format", func(c *Config) { c.Export.Format = "pdf" }, true},
		{"invalid media size", func(c *Config) { c.Export.MaxMediaSize = "lots" }, true},
		{"s3 without bucket", func(c *Config) { c.Export.Archive.S3.Bucket = "" }, true},
		{"invalid archive kind", func(c *Config) { c.Export.Archive.Kind = "tar" }, true},
		{"invalid task_timeout", func(c *Config) { c.Processing.TaskTimeout = -1 }, true},
		{"invalid cache_ttl", func(c *Config) { c.Processing.CacheTTL = 0 }, true},
		{"invalid task_ttl", func(c *Config) { c.Processing.TaskTTL = 0 }, true},
		{"invalid logging level", func(c *Config) { c.Logging.Level = "wrong" }, true},
		{"invalid logging format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutator(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
