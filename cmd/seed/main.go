package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"myflix-api/core"
)

func main() {
	catalogPath := flag.String("catalog", "", "path to a YAML movie catalog to upsert")
	username := flag.String("user", "", "username to create if it does not exist")
	password := flag.String("password", "", "password for -user; generated when empty")
	email := flag.String("email", "", "email for -user")
	flag.Parse()

	if *catalogPath == "" && *username == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, logCloser, err := core.SetupLogging(cfg, "seed.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()
	defer logger.Sync()

	if err := core.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}
	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if *catalogPath != "" {
		data, err := os.ReadFile(*catalogPath)
		if err != nil {
			logger.Fatal("failed to read catalog", zap.String("path", *catalogPath), zap.Error(err))
		}
		movies, err := core.ParseMovieCatalog(data)
		if err != nil {
			logger.Fatal("invalid catalog", zap.String("path", *catalogPath), zap.Error(err))
		}

		repo := core.NewPgMovieRepository(db)
		for _, m := range movies {
			id, err := repo.Upsert(ctx, m)
			if err != nil {
				logger.Fatal("failed to upsert movie", zap.String("title", m.Title), zap.Error(err))
			}
			logger.Debug("movie upserted", zap.String("id", id), zap.String("title", m.Title))
		}
		logger.Info("catalog imported", zap.Int("movies", len(movies)))

		// Stale lists would otherwise be served until the TTL expires.
		if redisClient, err := core.NewRedisClient(cfg.RedisURL); err != nil {
			logger.Warn("redis unavailable, movie cache not invalidated", zap.Error(err))
		} else {
			if err := core.NewMovieCache(redisClient, cfg.CatalogCacheTTL).Invalidate(ctx); err != nil {
				logger.Warn("movie cache invalidation failed", zap.Error(err))
			}
			redisClient.Close()
		}
	}

	if *username != "" {
		created, used, err := core.EnsureUser(ctx, core.NewPgUserRepository(db), *username, *password, *email, cfg.BcryptCost)
		if err != nil {
			logger.Fatal("failed to ensure user", zap.String("username", *username), zap.Error(err))
		}
		switch {
		case !created:
			logger.Info("user already exists", zap.String("username", *username))
		case *password == "":
			logger.Info("user created", zap.String("username", *username))
			// Printed once so the operator can log in; never written to the log file.
			log.Printf("generated password for %s: %s", *username, used)
		default:
			logger.Info("user created", zap.String("username", *username))
		}
	}
}
