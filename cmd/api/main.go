package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/pointloop/loyalty-api/internal/config"
	"github.com/pointloop/loyalty-api/internal/domain/ledger"
	"github.com/pointloop/loyalty-api/internal/domain/member"
	"github.com/pointloop/loyalty-api/internal/domain/referral"
	"github.com/pointloop/loyalty-api/internal/middleware"
	"github.com/pointloop/loyalty-api/internal/pkg/database"
	"github.com/pointloop/loyalty-api/internal/pkg/jwt"
	"github.com/pointloop/loyalty-api/internal/pkg/logger"
	"github.com/pointloop/loyalty-api/internal/pkg/ratelimit"
	"github.com/pointloop/loyalty-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting loyalty API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(schemaCtx, db); err != nil {
		cancelSchema()
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}
	cancelSchema()

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	memberRepo := member.NewRepository(db)
	memberCache := member.NewCache(redisClient, member.DefaultCacheTTL)
	referralRepo := referral.NewRepository(db, memberRepo, cfg.Rules)
	ledgerRepo := ledger.NewRepository(db, memberRepo, cfg.Rules)

	// ---------- Services ----------
	directory := member.NewDirectory(memberRepo, memberCache, jwtService)
	referralService := referral.NewService(referralRepo, directory, memberCache, cfg.Rules)
	engine := ledger.NewEngine(ledgerRepo, directory, referralService, memberCache, cfg.Rules)

	limiter := ratelimit.New(redisClient, time.Minute, ratelimit.DefaultCeilings(), 60)

	// ---------- Handlers ----------
	memberHandler := member.NewHandler(directory, limiter)
	referralHandler := referral.NewHandler(referralService, limiter)
	ledgerHandler := ledger.NewHandler(engine, limiter)

	authMiddleware := middleware.Auth(jwtService)
	adminMiddleware := func(next http.Handler) http.Handler {
		return authMiddleware(middleware.RequireAdmin()(next))
	}

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/members", memberHandler.Routes(adminMiddleware))
		r.Mount("/referrals", referralHandler.Routes())
		r.Mount("/", ledgerHandler.Routes(adminMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
