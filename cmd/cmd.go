package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tnepic-backend/internal/config"
	"tnepic-backend/internal/handlers"
	"tnepic-backend/internal/middleware"
	"tnepic-backend/internal/remote"
	"tnepic-backend/internal/repository"
	"tnepic-backend/internal/services"
	"tnepic-backend/internal/syncq"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to create schema")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	tripRepo := repository.NewTripRepository(db)

	// Session-change bus, shared across instances when Redis is configured
	var bus remote.EventBus = remote.NewMemoryBus()
	if cfg.Redis.Addr != "" {
		redisBus, err := remote.NewRedisBus(ctx, cfg.Redis.Addr, cfg.Redis.Channel)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		bus = redisBus
	}
	defer bus.Close()

	backend := remote.NewPostgresBackend(accountRepo, profileRepo, tripRepo, bus, remote.Options{
		JWTSecret:      cfg.JWT.Secret,
		TokenTTL:       cfg.JWT.AccessTTL,
		AllowAnonymous: cfg.Session.AnonymousSignIn(),
	})
	if err := backend.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to session events")
	}

	outbox := syncq.NewOutbox(syncq.Config{
		Interval:    cfg.Sync.Interval,
		MaxInterval: cfg.Sync.MaxInterval,
	})
	go outbox.Run(ctx)

	// Initialize services
	wsHub := services.NewWSHub()
	notifier, err := services.NewNotifier(cfg.APNS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create notifier")
	}
	var memoryService *services.MemoryService
	if cfg.AWS.S3Bucket != "" {
		memoryService, err = services.NewMemoryService(ctx, cfg.AWS)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create memory service")
		}
	} else {
		log.Warn().Msg("aws.s3_bucket not set, memory uploads disabled")
	}

	sessionService := services.NewSessionService(backend, outbox, services.SessionOptions{
		JWTSecret:       cfg.JWT.Secret,
		ForceLogout:     cfg.Session.ForceLogout(),
		IdleTimeout:     cfg.Session.IdleTimeout,
		OnChange:        wsHub.PublishState,
		OnTripCompleted: notifier.TripCompleted,
	})
	if err := sessionService.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe sessions to events")
	}
	go sessionService.RunJanitor(ctx)

	r := newRouter(sessionService, wsHub, memoryService)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	wsHub.Close()

	// Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Last attempt for writes still queued
	outbox.Flush(shutdownCtx)
	cancel()

	log.Info().Msg("Server exited")
}

// newRouter wires the HTTP and WebSocket routes
func newRouter(sessions *services.SessionService, hub *services.WSHub, memoryService *services.MemoryService) http.Handler {
	sessionHandler := handlers.NewSessionHandler(sessions)
	authHandler := handlers.NewAuthHandler()
	tripHandler := handlers.NewTripHandler()
	memoryHandler := handlers.NewMemoryHandler(memoryService)
	wsHandler := handlers.NewWebSocketHandler(hub, sessions)

	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/sessions", sessionHandler.CreateSession)

		// Session routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(sessions))
			r.Get("/state", sessionHandler.GetState)

			r.Post("/auth/email", authHandler.SignInWithEmail)
			r.Post("/auth/google", authHandler.SignInWithGoogle)
			r.Post("/auth/guest", authHandler.SignInAsGuest)
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/signout", authHandler.SignOut)

			r.Put("/screen", authHandler.SetScreen)
			r.Put("/language", authHandler.SetLanguage)
			r.Put("/push-token", authHandler.SetPushToken)

			r.Post("/trips", tripHandler.StartTrip)
			r.Post("/trips/active/cancel", tripHandler.CancelTrip)
			r.Post("/trips/active/complete", tripHandler.CompleteTrip)
			r.Post("/trips/active/resume", tripHandler.ResumeTrip)
			r.Post("/trips/active/levels", tripHandler.CompleteLevel)
			r.Post("/trips/active/memories/upload", memoryHandler.UploadMemory)
			r.Post("/trips/active/memories", memoryHandler.AddMemory)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

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

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
