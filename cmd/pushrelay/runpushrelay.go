package main

import (
	"context"
	_ "embed"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"gopkg.in/yaml.v3"

	"github.com/xamcat/pushrelay/internal/hub"
	"github.com/xamcat/pushrelay/internal/metrics"
	"github.com/xamcat/pushrelay/internal/platform/apns"
	"github.com/xamcat/pushrelay/internal/platform/fcm"
	"github.com/xamcat/pushrelay/internal/storage/cache"
	fsStore "github.com/xamcat/pushrelay/internal/storage/firestore"
	"github.com/xamcat/pushrelay/internal/storage/memory"
	pubhub "github.com/xamcat/pushrelay/pkg/hub"
	"github.com/xamcat/pushrelay/pkg/push"
	"github.com/xamcat/pushrelay/pushrelay"
	"github.com/xamcat/pushrelay/pushrelay/config"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "push-relay")
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, _ := config.NewConfigFromYaml(&yamlCfg, logger)
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	metrics.Init()

	// --- Installation Store ---
	// Firestore when a project is configured, in-memory otherwise (local dev).
	var store cache.InstallationStore
	if cfg.ProjectID != "" {
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("Firestore client failed", "err", err)
			os.Exit(1)
		}
		defer fsClient.Close()
		store = fsStore.NewStore(fsClient)
		logger.Info("InstallationStore initialized", "type", "firestore")
	} else {
		store = memory.NewStore()
		logger.Warn("No project configured; using non-durable in-memory store")
	}

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		store = cache.NewCachedStore(store, redisClient, time.Duration(cfg.CacheTTL)*time.Second)
		logger.Info("InstallationStore upgraded", "type", "redis_cached")
	}

	// --- Platform Senders ---
	senders := make(map[push.Platform]pubhub.PayloadSender)

	if cfg.APNS.P8KeyPath != "" {
		p8Key, err := os.ReadFile(cfg.APNS.P8KeyPath)
		if err != nil {
			logger.Error("Failed to read APNs P8 key", "path", cfg.APNS.P8KeyPath, "err", err)
			os.Exit(1)
		}
		apnsSender, err := apns.NewSender(apns.Config{
			KeyID:        cfg.APNS.KeyID,
			TeamID:       cfg.APNS.TeamID,
			BundleID:     cfg.APNS.BundleID,
			P8KeyContent: string(p8Key),
		}, logger)
		if err != nil {
			logger.Error("Failed to create APNs sender", "err", err)
			os.Exit(1)
		}
		senders[push.PlatformAPNS] = apnsSender
		logger.Info("APNs sender enabled", "bundle_id", cfg.APNS.BundleID)
	} else {
		logger.Warn("APNs credentials missing; apns installations will be skipped")
	}

	if cfg.ProjectID != "" {
		fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID})
		if err != nil {
			logger.Error("Failed to initialize Firebase App", "err", err)
			os.Exit(1)
		}
		fcmMessaging, err := fbApp.Messaging(ctx)
		if err != nil {
			logger.Error("Failed to create FCM messaging client", "err", err)
			os.Exit(1)
		}
		senders[push.PlatformFCM] = fcm.NewSender(fcmMessaging, logger)
		logger.Info("FCM sender enabled", "project_id", cfg.ProjectID)
	} else {
		logger.Warn("No project configured; fcm installations will be skipped")
	}

	// --- Registry & Dispatcher ---
	registry := hub.NewRegistry(store, senders, logger)
	registry.EnableCleanup(store)
	dispatcher := hub.NewDispatcher(registry, logger)

	// --- Service ---
	service, err := pushrelay.New(cfg, store, dispatcher, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	logger.Info("Starting service...")
	if err := service.Start(ctx); err != nil {
		logger.Error("Service shutdown with error", "err", err)
		os.Exit(1)
	}
}
