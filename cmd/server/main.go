package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/guardianview/monitor-server-go/internal/config"
	"github.com/guardianview/monitor-server-go/internal/database"
	"github.com/guardianview/monitor-server-go/internal/handler"
	"github.com/guardianview/monitor-server-go/internal/jobs"
	"github.com/guardianview/monitor-server-go/internal/live"
	"github.com/guardianview/monitor-server-go/internal/middleware"
	"github.com/guardianview/monitor-server-go/internal/redis"
	"github.com/guardianview/monitor-server-go/internal/repository"
	"github.com/guardianview/monitor-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	profileRepo := repository.NewProfileRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	deviceRepo := repository.NewDeviceRepository(db.DB)
	linkRepo := repository.NewLinkRepository(db.DB)
	linkingCodeRepo := repository.NewLinkingCodeRepository(db.DB)
	telemetryRepo := repository.NewTelemetryRepository(db.DB)

	authService := service.NewAuthService(profileRepo, sessionRepo, cfg.SessionTTL())
	pairingService := service.NewPairingService(db, linkingCodeRepo, linkRepo, cfg.PairingCodeTTL())
	directoryService := service.NewDirectoryService(linkRepo)
	telemetryService := service.NewTelemetryService(deviceRepo, telemetryRepo, cfg.EncryptionKey)
	ingestService := service.NewIngestService(deviceRepo, telemetryRepo, redisClient, cfg.EncryptionKey)

	subscriber := live.NewRedisSubscriber(redisClient)

	authMiddleware := middleware.NewAuthMiddleware(sessionRepo, profileRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	ingestSignatureMiddleware := middleware.NewIngestSignatureMiddleware(cfg.IngestSecret)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	authHandler := handler.NewAuthHandler(authService)
	pairingHandler := handler.NewPairingHandler(pairingService)
	childrenHandler := handler.NewChildrenHandler(directoryService, telemetryService)
	liveHandler := handler.NewLiveHandler(directoryService, telemetryService, subscriber)
	ingestHandler := handler.NewIngestHandler(ingestService)
	debugHandler := handler.NewDebugHandler(telemetryRepo)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1/auth", func(r chi.Router) {
		r.Mount("/", authHandler.Routes())
	})

	r.Route("/v1/pairing", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Use(rateLimitMiddleware.Handler)
			r.Post("/codes", pairingHandler.GenerateCode)
		})
		r.Post("/redeem", pairingHandler.Redeem)
	})

	r.Route("/v1/children", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Get("/", childrenHandler.List)
		r.Delete("/{childID}", childrenHandler.Unlink)
		r.Get("/{childID}/telemetry", childrenHandler.Telemetry)
		r.Get("/{childID}/live", liveHandler.Stream)
	})

	r.Route("/v1/ingest", func(r chi.Router) {
		r.Use(ingestSignatureMiddleware.Handler)
		r.Mount("/", ingestHandler.Routes())
	})

	r.Route("/v1/debug", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Mount("/", debugHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(linkingCodeRepo, sessionRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
