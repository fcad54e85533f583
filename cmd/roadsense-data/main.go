package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roadsense-data/internal/config"
	"roadsense-data/internal/database"
	httpapi "roadsense-data/internal/http"
	"roadsense-data/internal/logger"
	"roadsense-data/internal/mqtt"
	"roadsense-data/internal/registry"
	"roadsense-data/internal/repository"
	"roadsense-data/internal/service"
	"roadsense-data/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "roadsense-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	var kv store.KV
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		// 缓存是旁路：Redis 不可达只损失 latest 查询，不影响入库和推送
		log.Warn("Redis unreachable, latest-reading cache disabled", zap.Error(err))
	} else {
		kv = store.NewRedisKV(redisClient)
	}

	reg := registry.NewRegistry(log)
	repo := repository.NewPostgresReadingsRepo(db)
	svc := service.NewIngestService(repo, reg, kv,
		time.Duration(cfg.LatestTTLSeconds)*time.Second, log)

	router := httpapi.NewRouter(log)
	router.RegisterReadingRoutes(httpapi.NewReadingsHandler(svc, log))
	router.RegisterWSRoutes(httpapi.NewWSHandler(reg, log))
	router.RegisterHealthRoutes(db)

	var broker *mqtt.IngestBroker
	if cfg.MQTT.Enabled {
		broker, err = mqtt.NewIngestBroker(&cfg.MQTT, svc, log)
		if err != nil {
			log.Fatal("failed to connect to MQTT broker", zap.Error(err))
		}
		if err := broker.Start(); err != nil {
			log.Fatal("failed to subscribe to MQTT ingest topic", zap.Error(err))
		}
	}

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("HTTP server exited", zap.Error(err))
	}

	if broker != nil {
		broker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
