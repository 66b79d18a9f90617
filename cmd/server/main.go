package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/digital-library/internal/auth"
	"github.com/iliyamo/digital-library/internal/config"
	"github.com/iliyamo/digital-library/internal/database"
	"github.com/iliyamo/digital-library/internal/entitlement"
	"github.com/iliyamo/digital-library/internal/handler"
	"github.com/iliyamo/digital-library/internal/middleware"
	"github.com/iliyamo/digital-library/internal/queue"
	"github.com/iliyamo/digital-library/internal/repository"
	"github.com/iliyamo/digital-library/internal/router"
	queuepub "github.com/iliyamo/digital-library/internal/service/queue_publisher"
)

func main() {
	// Load .env if present; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: a nil client disables rate limiting and caching.
	rdb := config.NewRedisClient()

	// Repositories
	users := repository.NewUserRepo(db)
	institutions := repository.NewInstitutionRepo(db)
	admins := repository.NewAdminRepo(db)
	plans := repository.NewPlanRepo(db)
	resources := repository.NewResourceRepo(db)
	tokens := repository.NewTokenRepo(db)
	subs := repository.NewSubscriptionRepo(db, users, institutions, plans)
	directory := repository.NewDirectory(users, institutions, admins)

	// Services
	tokenSvc := auth.NewService(auth.Config{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
	}, tokens, directory)
	publisher := queuepub.New()
	resolver := entitlement.NewResolver(subs, publisher)

	// Handlers
	authH := handler.NewAuthHandler(cfg, tokenSvc, directory, users)
	downloadH := handler.NewDownloadHandler(resources, directory, resolver)
	adminH := handler.NewAdminSubscriptionHandler(subs, plans)

	// Middleware backed by redis
	loginLimiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	planCache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret, loginLimiter)
	router.RegisterResources(e, downloadH, cfg.JWTSecret)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret, planCache)

	// Download events land in a log file via the queue consumer. The
	// consumer reconnects on its own, so a broker outage only delays the
	// audit trail.
	go func() {
		if err := queue.StartDownloadConsumer(); err != nil {
			log.Printf("download consumer stopped: %v", err)
		}
	}()

	// Expired refresh tokens are swept periodically so the ledger does not
	// grow without bound.
	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for range t.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if n, err := tokens.DeleteExpired(ctx); err != nil {
				log.Printf("token sweep: %v", err)
			} else if n > 0 {
				log.Printf("token sweep: removed %d expired tokens", n)
			}
			cancel()
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
