package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// ColumnWidths определяет ширину колонок для текстового вывода.
type ColumnWidths struct {
	Author  int `yaml:"author"`
	Content int `yaml:"content"`
}

// ClientConfig содержит конфигурацию консольного клиента
type ClientConfig struct {
	ServerURL    string        `yaml:"server_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	PageSize     int           `yaml:"page_size"`
	Render       ColumnWidths  `yaml:"render"`
}

// Config является оберткой для соответствия структуре YAML файла.
type Config struct {
	Client ClientConfig `yaml:"client"`
}

// LoadClientConfig загружает конфигурацию клиента. Отсутствующий файл не является
// ошибкой: используются значения по умолчанию.
func LoadClientConfig(filename string) (*ClientConfig, error) {
	var cfg Config

	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read client config file %s: %w", filename, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal client config: %w", err)
		}
	}

	// Устанавливаем значения по умолчанию
	c := &cfg.Client
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Render.Author == 0 {
		c.Render.Author = DefaultAuthorColumnWidth
	}
	if c.Render.Content == 0 {
		c.Render.Content = DefaultContentColumnWidth
	}

	return c, nil
}

// Validate проверяет корректность конфигурации клиента.
func (c *ClientConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("client.server_url cannot be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("client.poll_interval must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("client.page_size must be positive")
	}
	if c.Render.Author < 0 || c.Render.Content < 0 {
		return fmt.Errorf("client.render widths must not be negative")
	}
	return nil
}
