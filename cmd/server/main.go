package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sevlyar/go-daemon"

	"discord-chat-manager/internal/adapters/archive"
	"discord-chat-manager/internal/adapters/exporter"
	"discord-chat-manager/internal/cache"
	"discord-chat-manager/internal/core/services"
	"discord-chat-manager/internal/discord"
	"discord-chat-manager/internal/log"
	"discord-chat-manager/internal/pkg/config"
	"discord-chat-manager/internal/pkg/term"
	"discord-chat-manager/internal/ports"
	"discord-chat-manager/internal/server"
	"discord-chat-manager/internal/server/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	configPath := flag.String("config", "config.yml", "path to config file")
	flag.Parse()

	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Токен можно ввести интерактивно, если он не задан в конфигурации
	if cfg.Discord.Token == "" {
		token, err := term.NewTerminal().Token()
		if err != nil {
			return fmt.Errorf("failed to read discord token: %w", err)
		}
		cfg.Discord.Token = token
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// 3. Переход в фон. Родительский процесс завершается здесь.
	if cfg.Server.Daemon.Enabled {
		dctx := &daemon.Context{
			PidFileName: cfg.Server.Daemon.PidFile,
			PidFilePerm: 0o644,
			LogFileName: cfg.Server.Daemon.LogFile,
			LogFilePerm: 0o640,
			WorkDir:     cfg.Server.Daemon.WorkDir,
			Umask:       0o027,
			// Токен, введенный интерактивно, передается дочернему процессу через окружение
			Env: append(os.Environ(), "DISCORD_TOKEN="+cfg.Discord.Token),
		}
		child, err := dctx.Reborn()
		if err != nil {
			return fmt.Errorf("failed to daemonize: %w", err)
		}
		if child != nil {
			fmt.Printf("Server started in background, pid %d\n", child.Pid)
			return nil
		}
		defer func() { _ = dctx.Release() }()
	}

	// 4. Инициализация логгера с маскировкой токенов
	logger := newLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// 5. Инициализация зависимостей
	client := discord.NewClient(discord.Config{
		Token:              cfg.Discord.Token,
		BaseURL:            cfg.Discord.BaseURL,
		UserAgent:          cfg.Discord.UserAgent,
		RequestsPerSecond:  cfg.Discord.RequestsPerSecond,
		Burst:              cfg.Discord.Burst,
		MaxRetries:         cfg.Discord.MaxRetries,
		RequestTimeout:     cfg.Discord.RequestTimeout,
		SearchIndexRetries: cfg.Discord.SearchIndexRetries,
		SearchRetryDelay:   cfg.Discord.SearchRetryDelay,
		Breaker: discord.BreakerConfig{
			MaxFailures: cfg.Discord.Breaker.MaxFailures,
			Interval:    cfg.Discord.Breaker.Interval,
			Timeout:     cfg.Discord.Breaker.Timeout,
		},
	},
		discord.WithLogger(logger.With("component", "discord")),
		discord.WithMetrics(discord.NewMetrics(prometheus.DefaultRegisterer)),
	)

	if err := client.Health(appCtx); err != nil {
		return fmt.Errorf("discord token check failed: %w", err)
	}

	cacheMax, err := cfg.CacheMaxBytes()
	if err != nil {
		return err
	}
	cacheStore := cache.NewCacheStore(cacheMax)
	registerCacheMetrics(prometheus.DefaultRegisterer, cacheStore)

	archives, err := newArchiveFactory(appCtx, cfg.Export, logger)
	if err != nil {
		return err
	}

	maxMedia, err := cfg.MaxMediaSizeBytes()
	if err != nil {
		return err
	}

	jobs := usecase.NewJobs(client, client, cacheStore, archives, exporter.Formatters(), usecase.Config{
		Enrichment: services.EnrichmentConfig{
			DisplayNameLookup:    cfg.Retrieval.DisplayNameLookup,
			ServerNicknameLookup: cfg.Retrieval.ServerNicknameLookup,
			ReactionsEnabled:     cfg.Retrieval.ReactionsEnabled,
			RefreshRate:          cfg.Retrieval.UserRefresh,
		},
		Retrieval: services.RetrievalConfig{ReactionsEnabled: cfg.Retrieval.ReactionsEnabled},
		Purge: services.PurgeConfig{
			RetainAttachedMedia: cfg.Purge.RetainAttachedMedia,
			ReactionRemovalFrom: cfg.Purge.ReactionRemovalFrom,
		},
		Export: services.ExportConfig{
			MessagesPerPage:       cfg.Export.MessagesPerPage,
			StartDelay:            cfg.Export.StartDelay,
			SeparateThreadExports: cfg.Export.SeparateThreadExports,
			Media:                 services.MediaSettings(cfg.Export.Media),
			MaxMediaSize:          maxMedia,
			ReactionsEnabled:      cfg.Retrieval.ReactionsEnabled,
			CacheTTL:              cfg.Processing.CacheTTL,
		},
		OperationTimeout: cfg.Retrieval.OperationTimeout,
	}, logger.With("component", "jobs"))

	taskStore := server.NewTaskStore()
	taskStore.StartCleanupTicker(appCtx, cfg.Processing.CleanupInterval)
	cacheStore.StartCleanupTicker(appCtx, cfg.Processing.CleanupInterval)

	// 6. Создание HTTP-сервера
	srv := server.New(cfg, jobs, taskStore, client, logger.With("component", "server"))

	// 7. Запуск сервера и graceful shutdown
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		logger.Info("Starting server", "addr", cfg.Address(), "client_id", client.ID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("Signal received, shutting down...")
	case <-serverDone:
		return errors.New("server stopped unexpectedly")
	}

	// Сначала отменяем контекст приложения, чтобы остановить тикеры очистки
	appCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	<-serverDone
	logger.Info("HTTP server stopped")
	return nil
}

func newLogger(cfg config.Logging, out io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	}
	return log.NewMaskedLogger(handler)
}

func newArchiveFactory(ctx context.Context, cfg config.Export, logger *slog.Logger) (ports.ArchiveFactory, error) {
	switch cfg.Archive.Kind {
	case "dir":
		return archive.NewDirFactory(cfg.OutputDir), nil
	case "s3":
		f, err := archive.NewS3Factory(ctx, cfg.Archive.S3.Region, cfg.Archive.S3.Bucket, cfg.Archive.S3.Prefix, logger.With("component", "s3"))
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 archive factory: %w", err)
		}
		return f, nil
	default:
		return archive.NewZipFactory(cfg.OutputDir), nil
	}
}

func registerCacheMetrics(reg prometheus.Registerer, cs *cache.CacheStore) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "asset_cache_items",
			Help: "Number of cached export assets.",
		}, func() float64 {
			items, _ := cs.Stats()
			return float64(items)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "asset_cache_bytes",
			Help: "Total size of cached export assets in bytes.",
		}, func() float64 {
			_, size := cs.Stats()
			return float64(size)
		}),
	)
}
