package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cache-engine/internal/auth"
	"cache-engine/internal/cache"
	"cache-engine/internal/cache/configstore"
	"cache-engine/internal/cache/memory"
	"cache-engine/internal/cache/persistent"
	"cache-engine/internal/cache/redis"
	"cache-engine/internal/common/logging"
	"cache-engine/internal/config"
	"cache-engine/internal/handlers"
	"cache-engine/internal/metrics"
	"cache-engine/internal/middleware"
	"cache-engine/internal/server"
)

func main() {
	_ = godotenv.Load()
	runtime.GOMAXPROCS(runtime.NumCPU())

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	settings, err := configstore.New(settingsFrom(cfg))
	if err != nil {
		log.Fatalf("Invalid cache settings: %v", err)
	}

	registry := prometheus.NewRegistry()
	engineMetrics := metrics.New(registry)

	stores, err := buildStores(cfg, engineMetrics)
	if err != nil {
		log.Fatalf("Failed to initialize cache tiers: %v", err)
	}

	manager, err := cache.NewManager(cache.Options{
		Stores:        stores,
		Config:        settings,
		Metrics:       engineMetrics,
		Logger:        logger,
		TierOpTimeout: cfg.TierOpTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache manager: %v", err)
	}
	manager.Start()

	authHandler := auth.New(cfg.AuthJWTSecret)
	h := handlers.New(manager, logger)

	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware)

	// Unauthenticated operational endpoints
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")

	// Cache API, bearer token required
	api := router.PathPrefix("/cache").Subrouter()
	api.Use(authHandler.RequireAuth)
	api.HandleFunc("/entries/{key}", h.GetEntry).Methods("GET")
	api.HandleFunc("/entries/{key}", h.PutEntry).Methods("PUT")
	api.HandleFunc("/entries/{key}", h.DeleteEntry).Methods("DELETE")
	api.HandleFunc("/invalidate", h.Invalidate).Methods("POST")
	api.HandleFunc("/warm", h.Warm).Methods("POST")
	api.HandleFunc("/warm/{id}", h.GetWarmJob).Methods("GET")
	api.HandleFunc("/warm/{id}", h.CancelWarmJob).Methods("DELETE")
	api.HandleFunc("/status", h.GetStatus).Methods("GET")
	api.HandleFunc("/config", h.GetConfig).Methods("GET")
	api.HandleFunc("/config", h.UpdateConfig).Methods("PUT")

	srv := server.New(router, cfg.Port, logger)
	srv.Start()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}
	if err := manager.Stop(ctx); err != nil {
		logger.Error("Cache manager shutdown failed", err)
	}

	fmt.Println("Server exited")
}

// buildStores constructs the enabled tier stores, fastest first.
func buildStores(cfg *config.Config, m *metrics.Metrics) ([]cache.Store, error) {
	var stores []cache.Store

	if cfg.L1Enabled {
		stores = append(stores, memory.New(memory.Config{
			MaxCapacity:  cfg.L1MaxCapacity,
			MaxSizeBytes: int64(cfg.L1MaxSizeMB) * 1024 * 1024,
			Shards:       cfg.L1Shards,
			OnEvict: func(entry *cache.Entry) {
				m.Evictions.WithLabelValues(string(cache.LevelL1)).Inc()
			},
		}))
	}

	if cfg.L2Enabled {
		store, err := redis.New(&redis.Config{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			PoolSize:  cfg.RedisPoolSize,
			KeyPrefix: cfg.RedisKeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		stores = append(stores, store)
	}

	if cfg.L3Enabled {
		driver := persistent.Driver(cfg.DatabaseType)
		if cfg.DatabaseType == "postgresql" {
			driver = persistent.DriverPostgres
		}
		store, err := persistent.New(&persistent.Config{
			Driver:   driver,
			Path:     cfg.DatabasePath,
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDB,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		})
		if err != nil {
			return nil, err
		}
		stores = append(stores, store)
	}

	return stores, nil
}

// settingsFrom seeds the live configuration snapshot from the environment.
func settingsFrom(cfg *config.Config) configstore.Settings {
	return configstore.Settings{
		L1: configstore.TierConfig{
			Enabled:        cfg.L1Enabled,
			MaxCapacity:    cfg.L1MaxCapacity,
			MaxSizeMB:      cfg.L1MaxSizeMB,
			DefaultTTL:     cfg.L1DefaultTTL,
			EvictionPolicy: "lru",
		},
		L2: configstore.TierConfig{
			Enabled:    cfg.L2Enabled,
			DefaultTTL: cfg.L2DefaultTTL,
		},
		L3: configstore.TierConfig{
			Enabled:    cfg.L3Enabled,
			DefaultTTL: cfg.L3DefaultTTL,
		},
		CompressionAlgorithm: cfg.CompressionAlgorithm,
		CompressionMinBytes:  cfg.CompressionMinBytes,
		SerializationFormat:  cfg.SerializationFormat,
		MaxEntrySizeMB:       cfg.MaxEntrySizeMB,
		SweepInterval:        cfg.SweepInterval,
		L3CleanupInterval:    cfg.L3CleanupInterval,
		L3CleanupBatch:       cfg.L3CleanupBatch,
		PromoteFromL3:        cfg.PromoteFromL3,
	}
}
