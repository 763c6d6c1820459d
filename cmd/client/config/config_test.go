package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientConfig(t *testing.T) {
	t.Run("значения из файла", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "client.yml")
		require.NoError(t, os.WriteFile(path, []byte(`
client:
  server_url: "http://10.0.0.5:9090"
  poll_interval: 500ms
  render:
    author: 12
`), 0644))

		cfg, err := LoadClientConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "http://10.0.0.5:9090", cfg.ServerURL)
		assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
		assert.Equal(t, 12, cfg.Render.Author)
		assert.Equal(t, DefaultContentColumnWidth, cfg.Render.Content)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("файл отсутствует", func(t *testing.T) {
		cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.yml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultServerURL, cfg.ServerURL)
		assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	})

	t.Run("битый YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "client.yml")
		require.NoError(t, os.WriteFile(path, []byte("client: {"), 0644))
		_, err := LoadClientConfig(path)
		assert.Error(t, err)
	})

	t.Run("некорректные значения", func(t *testing.T) {
		cfg := &ClientConfig{ServerURL: "http://x", PollInterval: -time.Second, PageSize: 1}
		assert.Error(t, cfg.Validate())
	})
}
