// Package config предоставляет управление конфигурацией приложения
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Daemon содержит параметры запуска в фоне
type Daemon struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	PidFile string `json:"pid_file" yaml:"pid_file"`
	LogFile string `json:"log_file" yaml:"log_file"`
	WorkDir string `json:"work_dir" yaml:"work_dir"`
}

// Server содержит конфигурацию сервера
type Server struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	Daemon          Daemon        `json:"daemon" yaml:"daemon"`
}

// Breaker содержит параметры автомата защиты клиента Discord
type Breaker struct {
	MaxFailures uint32        `json:"max_failures" yaml:"max_failures"`
	Interval    time.Duration `json:"interval" yaml:"interval"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
}

// Discord содержит конфигурацию REST API Discord
type Discord struct {
	Token              string        `json:"token" yaml:"token"`
	BaseURL            string        `json:"base_url" yaml:"base_url"`
	UserAgent          string        `json:"user_agent" yaml:"user_agent"`
	RequestsPerSecond  float64       `json:"requests_per_second" yaml:"requests_per_second"`
	Burst              int           `json:"burst" yaml:"burst"`
	MaxRetries         int           `json:"max_retries" yaml:"max_retries"`
	RequestTimeout     time.Duration `json:"request_timeout" yaml:"request_timeout"`
	SearchIndexRetries int           `json:"search_index_retries" yaml:"search_index_retries"`
	SearchRetryDelay   time.Duration `json:"search_retry_delay" yaml:"search_retry_delay"`
	Breaker            Breaker       `json:"breaker" yaml:"breaker"`
}

// Retrieval содержит конфигурацию получения и обогащения сообщений
type Retrieval struct {
	DisplayNameLookup    bool          `json:"display_name_lookup" yaml:"display_name_lookup"`
	ServerNicknameLookup bool          `json:"server_nickname_lookup" yaml:"server_nickname_lookup"`
	ReactionsEnabled     bool          `json:"reactions_enabled" yaml:"reactions_enabled"`
	UserRefresh          time.Duration `json:"user_refresh" yaml:"user_refresh"`
	OperationTimeout     time.Duration `json:"operation_timeout" yaml:"operation_timeout"`
}

// Purge содержит настройки чистки
type Purge struct {
	RetainAttachedMedia bool     `json:"retain_attached_media" yaml:"retain_attached_media"`
	ReactionRemovalFrom []string `json:"reaction_removal_from" yaml:"reaction_removal_from"`
}

// Media задает виды загружаемых при экспорте медиа
type Media struct {
	Images         bool `json:"images" yaml:"images"`
	Videos         bool `json:"videos" yaml:"videos"`
	Audio          bool `json:"audio" yaml:"audio"`
	Files          bool `json:"files" yaml:"files"`
	EmbeddedImages bool `json:"embedded_images" yaml:"embedded_images"`
	EmbeddedVideos bool `json:"embedded_videos" yaml:"embedded_videos"`
}

// S3 содержит параметры загрузки архивов в бакет
type S3 struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Region string `json:"region" yaml:"region"`
	Prefix string `json:"prefix" yaml:"prefix"`
}

// Archive задает вид архива экспорта: zip, dir или s3
type Archive struct {
	Kind string `json:"kind" yaml:"kind"`
	S3   S3     `json:"s3" yaml:"s3"`
}

// Export содержит конфигурацию экспорта
type Export struct {
	OutputDir             string        `json:"output_dir" yaml:"output_dir"`
	Format                string        `json:"format" yaml:"format"`
	MessagesPerPage       int           `json:"messages_per_page" yaml:"messages_per_page"`
	StartDelay            time.Duration `json:"start_delay" yaml:"start_delay"`
	SeparateThreadExports bool          `json:"separate_thread_exports" yaml:"separate_thread_exports"`
	Media                 Media         `json:"media" yaml:"media"`
	MaxMediaSize          string        `json:"max_media_size" yaml:"max_media_size"` // например, "25MB"
	Archive               Archive       `json:"archive" yaml:"archive"`
}

// Processing содержит конфигурацию обработки задач
type Processing struct {
	TaskTimeout     time.Duration `json:"task_timeout" yaml:"task_timeout"` // 0 - без ограничений
	CacheTTL        time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
	CacheMaxSize    string        `json:"cache_max_size" yaml:"cache_max_size"`
	TaskTTL         time.Duration `json:"task_ttl" yaml:"task_ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// Config содержит конфигурацию приложения
type Config struct {
	Server     Server     `json:"server" yaml:"server"`
	Discord    Discord    `json:"discord" yaml:"discord"`
	Retrieval  Retrieval  `json:"retrieval" yaml:"retrieval"`
	Purge      Purge      `json:"purge" yaml:"purge"`
	Export     Export     `json:"export" yaml:"export"`
	Processing Processing `json:"processing" yaml:"processing"`
	Logging    Logging    `json:"logging" yaml:"logging"`
}

// LoadConfig загружает конфигурацию: значения по умолчанию, затем YAML-файл,
// затем переменные окружения (в том числе из .env).
func LoadConfig(path string) (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	cfg := defaultConfig()
	if err := loadFromYAML(path, cfg); err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию из env: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Host:            DefaultServerHost,
			Port:            DefaultServerPort,
			ShutdownTimeout: DefaultShutdownTimeout,
			Daemon: Daemon{
				PidFile: DefaultPidFile,
				LogFile: DefaultDaemonLogFile,
				WorkDir: ".",
			},
		},
		Discord: Discord{
			BaseURL:            DefaultDiscordBaseURL,
			RequestsPerSecond:  DefaultRequestsPerSecond,
			Burst:              DefaultBurst,
			MaxRetries:         DefaultMaxRetries,
			RequestTimeout:     DefaultRequestTimeout,
			SearchIndexRetries: DefaultSearchIndexRetries,
			SearchRetryDelay:   DefaultSearchRetryDelay,
			Breaker: Breaker{
				MaxFailures: DefaultBreakerMaxFailures,
				Interval:    DefaultBreakerInterval,
				Timeout:     DefaultBreakerTimeout,
			},
		},
		Retrieval: Retrieval{
			DisplayNameLookup:    true,
			ServerNicknameLookup: true,
			ReactionsEnabled:     true,
			UserRefresh:          DefaultUserRefresh,
			OperationTimeout:     DefaultOperationTimeout,
		},
		Export: Export{
			OutputDir:       DefaultExportDir,
			Format:          DefaultExportFormat,
			MessagesPerPage: DefaultMessagesPerPage,
			StartDelay:      DefaultStartDelay,
			Media:           Media{Images: true, Videos: true, Audio: true, Files: true, EmbeddedImages: true, EmbeddedVideos: true},
			MaxMediaSize:    DefaultMaxMediaSize,
			Archive:         Archive{Kind: DefaultArchiveKind},
		},
		Processing: Processing{
			TaskTimeout:     DefaultTaskTimeout,
			CacheTTL:        DefaultCacheTTL,
			CacheMaxSize:    DefaultCacheMaxSize,
			TaskTTL:         DefaultTaskTTL,
			CleanupInterval: DefaultCleanupInterval,
		},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// loadFromYAML накладывает YAML-файл на cfg. Отсутствие файла не является ошибкой.
func loadFromYAML(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}
	return nil
}

// loadFromEnv переопределяет отдельные поля переменными окружения
func loadFromEnv(cfg *Config) error {
	cfg.Discord.Token = getEnv("DISCORD_TOKEN", cfg.Discord.Token)
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Export.OutputDir = getEnv("EXPORT_DIR", cfg.Export.OutputDir)

	if portStr := getEnv("SERVER_PORT", ""); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("недопустимый SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// Address возвращает адрес сервера в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxMediaSizeBytes возвращает лимит размера медиа в байтах
func (c *Config) MaxMediaSizeBytes() (int64, error) {
	return parseSize(c.Export.MaxMediaSize)
}

// CacheMaxBytes возвращает лимит объема кэша ресурсов в байтах
func (c *Config) CacheMaxBytes() (int64, error) {
	return parseSize(c.Processing.CacheMaxSize)
}

func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord.token не может быть пустым (или задайте DISCORD_TOKEN)")
	}
	if c.Discord.RequestsPerSecond <= 0 {
		return fmt.Errorf("discord.requests_per_second должно быть положительным")
	}
	if c.Discord.Burst <= 0 {
		return fmt.Errorf("discord.burst должно быть положительным")
	}
	if c.Discord.MaxRetries <= 0 {
		return fmt.Errorf("discord.max_retries должно быть положительным")
	}
	if c.Discord.Breaker.MaxFailures == 0 {
		return fmt.Errorf("discord.breaker.max_failures должно быть положительным")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port должен быть действительным номером порта (1-65535)")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout должно быть положительным")
	}
	if c.Server.Daemon.Enabled && c.Server.Daemon.PidFile == "" {
		return fmt.Errorf("server.daemon.pid_file обязателен в режиме демона")
	}

	if c.Retrieval.UserRefresh <= 0 {
		return fmt.Errorf("retrieval.user_refresh должно быть положительным")
	}

	if c.Export.MessagesPerPage <= 0 {
		return fmt.Errorf("export.messages_per_page должно быть положительным")
	}
	if c.Export.StartDelay < 0 {
		return fmt.Errorf("export.start_delay должно быть неотрицательным")
	}
	switch c.Export.Format {
	case "json", "html", "csv", "xlsx":
	default:
		return fmt.Errorf("export.format должен быть одним из: json, html, csv, xlsx")
	}
	if _, err := c.MaxMediaSizeBytes(); err != nil {
		return fmt.Errorf("export.max_media_size: %w", err)
	}
	switch c.Export.Archive.Kind {
	case "zip", "dir":
	case "s3":
		if c.Export.Archive.S3.Bucket == "" {
			return fmt.Errorf("export.archive.s3.bucket обязателен для архива s3")
		}
	default:
		return fmt.Errorf("export.archive.kind должен быть одним из: zip, dir, s3")
	}

	if c.Processing.TaskTimeout < 0 {
		return fmt.Errorf("processing.task_timeout должно быть неотрицательным (0 для отсутствия ограничений)")
	}
	if c.Processing.CacheTTL <= 0 {
		return fmt.Errorf("processing.cache_ttl должно быть положительным")
	}
	if _, err := c.CacheMaxBytes(); err != nil {
		return fmt.Errorf("processing.cache_max_size: %w", err)
	}
	if c.Processing.TaskTTL <= 0 || c.Processing.CleanupInterval <= 0 {
		return fmt.Errorf("processing.task_ttl и processing.cleanup_interval должны быть положительными")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format должен быть одним из: json, text")
	}

	return nil
}

// getEnv извлекает значение переменной окружения или возвращает значение по умолчанию, если она не установлена
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
