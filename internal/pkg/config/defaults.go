package config

import "time"

// Default values for configuration.
const (
	// Server defaults
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultPidFile         = "discord-chat-manager.pid"
	DefaultDaemonLogFile   = "discord-chat-manager.log"

	// Discord API defaults
	DefaultDiscordBaseURL     = "https://discord.com/api/v9"
	DefaultRequestsPerSecond  = 2.0
	DefaultBurst              = 1
	DefaultMaxRetries         = 5
	DefaultRequestTimeout     = 30 * time.Second
	DefaultSearchIndexRetries = 5
	DefaultSearchRetryDelay   = 3 * time.Second
	DefaultBreakerMaxFailures = 5
	DefaultBreakerInterval    = 60 * time.Second
	DefaultBreakerTimeout     = 30 * time.Second

	// Retrieval defaults
	DefaultUserRefresh      = 30 * time.Minute
	DefaultOperationTimeout = 60 * time.Second

	// Export defaults
	DefaultExportDir       = "exports"
	DefaultExportFormat    = "json"
	DefaultMessagesPerPage = 1000
	DefaultStartDelay      = 3 * time.Second
	DefaultMaxMediaSize    = "25MB"
	DefaultArchiveKind     = "zip"

	// Processing defaults
	DefaultTaskTimeout     = 0 * time.Second
	DefaultCacheTTL        = 60 * time.Minute
	DefaultCacheMaxSize    = "256MB"
	DefaultTaskTTL         = 24 * time.Hour
	DefaultCleanupInterval = 1 * time.Hour

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
