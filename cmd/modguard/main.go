// Package main provides the modguard CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"modguard/internal/admin"
	"modguard/internal/chat/telegram"
	"modguard/internal/core"
	"modguard/internal/filters"
	"modguard/internal/flood"
	"modguard/internal/groups"
	"modguard/internal/history"
	httpserver "modguard/internal/http"
	"modguard/internal/i18n"
	"modguard/internal/store"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "modguard",
	Short: "modguard - Telegram group moderation bot",
	Long: `modguard is a moderation service for Telegram groups: bans, flood
protection, keyword auto-replies, welcome/goodbye messages, name history
and an audit log channel.`,
	RunE: runModguard,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("telegram-bot-token", "", "Telegram bot token")
	rootCmd.PersistentFlags().String("store-backend", "sqlite", "store backend (memory, sqlite, firebase)")
	rootCmd.PersistentFlags().String("store-sqlite-path", "./modguard.db", "SQLite database path")
	rootCmd.PersistentFlags().String("store-firebase-url", "", "Firebase Realtime Database base URL")
	rootCmd.PersistentFlags().String("store-firebase-auth", "", "Firebase database secret or token")
	rootCmd.PersistentFlags().String("server-host", "0.0.0.0", "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")
	rootCmd.PersistentFlags().String("language", i18n.DefaultLanguage, "Bot language")
	rootCmd.PersistentFlags().Int("seen-capacity", 10000, "Maximum deduplicated message keys kept in memory")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix("MODGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Telegram.BotToken = viper.GetString("telegram-bot-token")

	cfg.Store.Backend = viper.GetString("store-backend")
	cfg.Store.SQLitePath = viper.GetString("store-sqlite-path")
	cfg.Store.FirebaseURL = viper.GetString("store-firebase-url")
	cfg.Store.FirebaseAuth = viper.GetString("store-firebase-auth")

	cfg.Server.Host = viper.GetString("server-host")
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Log.Level = viper.GetString("log-level")

	cfg.App.Language = viper.GetString("language")
	if cfg.App.Language == "" {
		cfg.App.Language = i18n.DefaultLanguage
	}
	if capacity := viper.GetInt("seen-capacity"); capacity > 0 {
		cfg.App.SeenCapacity = capacity
	}

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runModguard(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting modguard",
		zap.String("store_backend", config.Store.Backend),
		zap.String("language", config.App.Language))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	st, closeStore, err := createStore()
	if err != nil {
		return err
	}
	defer closeStore()

	return runServices(ctx, st)
}

func validateConfig() error {
	if config.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required")
	}

	switch config.Store.Backend {
	case "memory", "sqlite":
	case "firebase":
		if config.Store.FirebaseURL == "" {
			return fmt.Errorf("firebase URL is required for the firebase backend")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", config.Store.Backend)
	}

	return nil
}

func createStore() (store.Store, func(), error) {
	switch config.Store.Backend {
	case "memory":
		logger.Warn("Using in-memory store, all moderation state is lost on restart")
		return store.NewMemory(), func() {}, nil
	case "sqlite":
		st, err := store.NewSQLite(config.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		closer := func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Warn("Failed to close sqlite store", zap.Error(closeErr))
			}
		}
		return st, closer, nil
	case "firebase":
		return store.NewFirebase(config.Store.FirebaseURL, config.Store.FirebaseAuth), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", config.Store.Backend)
	}
}

func runServices(ctx context.Context, st store.Store) error {
	loc := i18n.NewLocalizer(config.App.Language)
	seen := store.NewSeenStore(config.App.SeenCapacity, config.App.SeenFalsePositive)

	loader := groups.NewLoader(st, logger.Named("groups"))
	gate := admin.New(st)
	table := filters.New(st)
	recorder := history.New(st)

	floodgate := flood.New()
	defer floodgate.Stop()

	httpServer := httpserver.NewServer(&config.Server, logger.Named("http"))
	httpServer.TrackFloodEntries(floodgate.Size)

	// The frontend is both the transport and the chat.Platform the core
	// acts through.
	frontend := telegram.NewFrontend(config.Telegram.BotToken, seen, logger.Named("telegram"))

	auditor := core.NewAuditor(loader, frontend, logger.Named("audit"))
	greeter := core.NewGreeter(loader, recorder, frontend, auditor, logger.Named("greeter"))
	stages := core.DefaultStages(loader, floodgate, table, loc, time.Now)
	pipeline := core.NewPipeline(stages, frontend, recorder, greeter, auditor,
		httpServer, logger.Named("pipeline"))
	commands := core.NewCommands(gate, loader, table, recorder, st, frontend,
		auditor, loc, logger.Named("commands"))
	frontend.Bind(pipeline, commands)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Start(gCtx)
	})

	g.Go(func() error {
		return frontend.Start(gCtx)
	})

	logger.Info("modguard started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("modguard stopped with error", zap.Error(err))
		return err
	}

	logger.Info("modguard stopped gracefully")
	return nil
}
