package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"myflix-api/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()
	defer logger.Sync()

	if cfg.MigrateOnStart {
		if err := core.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	userRepo := core.NewPgUserRepository(db)
	movieRepo := core.NewPgMovieRepository(db)

	var catalog core.MovieCatalog = movieRepo
	var cachePing core.PingFunc
	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, movie cache disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		catalog = core.NewCachedMovieCatalog(movieRepo, core.NewMovieCache(redisClient, cfg.CatalogCacheTTL), logger)
		cachePing = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	tokens, err := core.NewTokenService([]byte(cfg.JWTSecret), cfg.TokenTTL, userRepo, cfg.StoreTimeout)
	if err != nil {
		logger.Fatal("failed to init token service", zap.Error(err))
	}
	gateway := core.NewAuthGateway(core.NewCredentialVerifier(userRepo, cfg.StoreTimeout), tokens, logger)

	router := core.NewRouter(cfg, core.RouterDeps{
		Logger:   logger,
		Gateway:  gateway,
		Users:    userRepo,
		Movies:   catalog,
		Database: db.Ping,
		Cache:    cachePing,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
