package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/animator/internal/auth"
	"github.com/snappy-loop/animator/internal/config"
	"github.com/snappy-loop/animator/internal/credentials"
	"github.com/snappy-loop/animator/internal/database"
	"github.com/snappy-loop/animator/internal/handlers"
	"github.com/snappy-loop/animator/internal/kafka"
	"github.com/snappy-loop/animator/internal/media"
	"github.com/snappy-loop/animator/internal/services"
	"github.com/snappy-loop/animator/internal/storage"
	"github.com/snappy-loop/animator/internal/veo"
	"github.com/snappy-loop/animator/migrations"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting Animator API")

	ctx := context.Background()
	httpClient := &http.Client{}

	registry := media.NewRegistry()
	defer registry.ReleaseAll()

	credentialStore := credentials.NewStore(cfg.GeminiAPIKey)
	if !credentialStore.Selected() {
		log.Warn().Msg("GEMINI_API_KEY not set, a key must be selected before animating")
	}

	generator := veo.New(
		veo.Config{
			Model:        cfg.VeoModel,
			Resolution:   cfg.VeoResolution,
			AspectRatio:  cfg.VeoAspectRatio,
			PollInterval: cfg.VeoPollInterval,
			Timeout:      cfg.VeoTimeout,
		},
		credentialStore,
		veo.GenaiRemoteFactory(cfg.GeminiAPIEndpoint, httpClient),
		media.NewDownloader(httpClient, registry, cfg.DownloadTimeout),
	)

	deps := services.SessionDeps{
		Fetcher:     media.NewFetcher(httpClient, cfg.FetchTimeout),
		Generator:   generator,
		Credentials: credentialStore,
		Media:       registry,
	}

	var history *database.AnimationRepository
	var db *database.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := migrations.Run(ctx, db.DB); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		history = database.NewAnimationRepository(db)
		deps.Recorder = history
	} else {
		log.Info().Msg("DATABASE_URL not set, animation history disabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicEvents)
		defer kafkaProducer.Close()
		deps.Publisher = kafkaProducer
	}

	var storageClient *storage.Client
	if cfg.ArchiveEnabled {
		storageClient, err = storage.NewClient(
			cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket,
			cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3PublicURL,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize storage client")
		}
		deps.Archiver = storageClient
	}

	session := services.NewSession(services.SessionConfig{
		ImageURL:      cfg.InitialImageURL,
		Prompt:        cfg.AnimationPrompt,
		Model:         cfg.VeoModel,
		MessagePeriod: cfg.LoadingMessagePeriod,
	}, deps)

	// The page stays usable when the image fails; the error is shown instead.
	loadCtx, cancelLoad := context.WithTimeout(ctx, cfg.FetchTimeout)
	if err := session.LoadImage(loadCtx); err != nil {
		log.Warn().Err(err).Msg("Initial image not available")
	}
	cancelLoad()

	guard, err := auth.NewGuard(cfg.AdminTokenHash)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize admin guard")
	}
	limiter := handlers.NewRateLimiter(cfg.AnimateRatePerMinute, cfg.AnimateRateBurst)

	h := handlers.NewHandler(session, credentialStore, registry)
	if history != nil {
		h.SetHistory(history)
		h.AddHealthCheck("database", db.Health)
	}
	if storageClient != nil {
		h.SetArchive(storageClient, cfg.S3PresignTTL)
	}

	r := mux.NewRouter()
	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.HandleFunc("/media/{id}", h.GetMedia).Methods("GET", "HEAD")

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/state", h.GetState).Methods("GET")
	api.HandleFunc("/image", h.GetImage).Methods("GET", "HEAD")
	api.HandleFunc("/ws", h.StateWS).Methods("GET")
	api.HandleFunc("/animations", h.ListAnimations).Methods("GET")
	api.HandleFunc("/animations/{id}", h.GetAnimation).Methods("GET")
	api.HandleFunc("/animations/{id}/archive", h.GetArchive).Methods("GET")
	api.HandleFunc("/animations/{id}/video", h.GetArchiveVideo).Methods("GET")
	api.Handle("/animations", guard.Middleware(limiter.Middleware(http.HandlerFunc(h.CreateAnimation)))).Methods("POST")
	api.Handle("/credential", guard.Middleware(http.HandlerFunc(h.SelectCredential))).Methods("POST")

	// WriteTimeout stays 0: /v1/ws and archived video streams are long-lived
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	session.Close()
	log.Info().Msg("API exited")
}
