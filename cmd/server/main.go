// Package main is the entry point for the roster board server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/rosterboard/internal/auth"
	"github.com/vyrodovalexey/rosterboard/internal/board"
	"github.com/vyrodovalexey/rosterboard/internal/config"
	"github.com/vyrodovalexey/rosterboard/internal/handler"
	"github.com/vyrodovalexey/rosterboard/internal/imagesearch"
	"github.com/vyrodovalexey/rosterboard/internal/server"
	"github.com/vyrodovalexey/rosterboard/internal/sharelink"
	"github.com/vyrodovalexey/rosterboard/internal/store"
)

// redisPingTimeout bounds the startup connectivity check.
const redisPingTimeout = 3 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		// Use a basic logger for startup errors
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to initialize logger", zap.Error(err))
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("public_url", cfg.PublicURL),
		zap.String("storage_backend", cfg.StorageBackend),
		zap.Bool("image_lookup_enabled", cfg.ImageLookupEnabled()),
		zap.String("auth_mode", cfg.AuthMode),
	)

	authenticator, err := createAuthenticator(cfg, logger)
	if err != nil {
		logger.Error("failed to create authenticator", zap.Error(err))
		return 1
	}

	slot, closeSlot, err := openSlot(cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", zap.Error(err))
		return 1
	}
	defer func() {
		if err := closeSlot(); err != nil {
			logger.Warn("failed to close storage", zap.Error(err))
		}
	}()

	hub := handler.NewHub(logger)
	b, err := buildBoard(context.Background(), cfg, slot, hub, logger)
	if err != nil {
		logger.Error("failed to build board", zap.Error(err))
		return 1
	}

	srv, err := server.New(cfg, logger, b, hub, authenticator)
	if err != nil {
		logger.Error("failed to create server", zap.Error(err))
		return 1
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}

// createAuthenticator creates the editor authenticator for the configured
// mode. It returns nil when roster edits are open.
func createAuthenticator(
	cfg *config.Config,
	logger *zap.Logger,
) (auth.Authenticator, error) {
	authenticator, err := auth.New(auth.Config{
		Mode:       auth.AuthMethod(cfg.AuthMode),
		BasicUsers: cfg.BasicAuthUsers,
		APIKeys:    cfg.APIKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s authenticator: %w", cfg.AuthMode, err)
	}

	if authenticator == nil {
		logger.Info("authentication disabled")
	} else {
		fields := []zap.Field{zap.String("mode", string(authenticator.Method()))}
		if multi, ok := authenticator.(*auth.MultiAuthenticator); ok {
			fields = append(fields, zap.Any("methods", multi.Methods()))
		}
		logger.Info("authentication enabled for roster edits", fields...)
	}
	return authenticator, nil
}

// openSlot opens the durable slot for the configured backend. The returned
// close function releases backend connections.
func openSlot(cfg *config.Config, logger *zap.Logger) (store.Slot, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StorageBackend {
	case config.StorageFile:
		logger.Info("using file storage", zap.String("path", cfg.StoragePath))
		return store.NewFileSlot(cfg.StoragePath), noop, nil
	case config.StorageMemory:
		logger.Info("using in-memory storage")
		return store.NewMemorySlot(), noop, nil
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			// An unreachable slot reads as empty; the board still starts.
			logger.Warn("redis unreachable at startup",
				zap.String("addr", cfg.RedisAddr),
				zap.Error(err),
			)
		}

		logger.Info("using redis storage",
			zap.String("addr", cfg.RedisAddr),
			zap.String("key", cfg.RedisKey),
		)
		return store.NewRedisSlot(client, cfg.RedisKey), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidStorageBackend, cfg.StorageBackend)
	}
}

// buildBoard loads the roster from slot and assembles the board with its
// portrait lookup, event hub and clipboard sinks.
func buildBoard(
	ctx context.Context,
	cfg *config.Config,
	slot store.Slot,
	hub *handler.Hub,
	logger *zap.Logger,
) (*board.Board, error) {
	boardURL, err := cfg.BoardURL()
	if err != nil {
		return nil, err
	}

	st := store.NewRosterStore(slot, logger)
	members := st.Load(ctx)
	logger.Info("roster loaded", zap.Int("members", len(members)))

	images := imagesearch.NewClient(imagesearch.Config{
		BaseURL: cfg.PexelsBaseURL,
		APIKey:  cfg.PexelsAPIKey,
		Timeout: cfg.ImageLookupTimeout,
	}, logger)

	return board.New(st, boardURL,
		board.WithImageLookup(images),
		board.WithNotifier(hub),
		board.WithClipboard(sharelink.Tee(sharelink.NewLogSink(logger), hub)),
		board.WithLogger(logger),
	), nil
}
