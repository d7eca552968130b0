package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/vnkhanh/audiodeck-backend/config"
	"github.com/vnkhanh/audiodeck-backend/controllers"
	"github.com/vnkhanh/audiodeck-backend/middleware"
	"github.com/vnkhanh/audiodeck-backend/routes"
	"github.com/vnkhanh/audiodeck-backend/services"
	"github.com/vnkhanh/audiodeck-backend/utils"
	"github.com/vnkhanh/audiodeck-backend/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.InitLogger("info", true)
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	utils.InitLogger(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}

	ctx := context.Background()
	synth, closeSynth, err := newSynthesizer(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create synthesizer")
	}
	defer closeSynth()

	store := utils.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.AudioBucket)
	cache := services.NewAudioCache(services.NewGormCacheRepository(db), store, synth.Name(), cfg.StorageTimeout)
	hub := ws.NewHub()

	log.Info().Msg("loading language models")
	detector := services.NewLinguaDetector(cfg.DefaultLanguage)

	pipeline := services.NewPipeline(
		cfg.PipelineConfig(),
		detector,
		cache,
		services.NewRetryingSynthesizer(synth, cfg.RetryConfig()),
		services.NewDeckPackager(),
		hub,
	)
	deck := controllers.NewDeckController(pipeline, cfg.MaxUploadMB<<20)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Auth-Token", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Cards-Created", "X-Cards-Failed", "X-Card-Report", "X-Card-Report-Omitted", middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	r = routes.SetupRouter(r, cfg, db, deck, hub)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("provider", synth.Name()).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server exited")
}

func newSynthesizer(ctx context.Context, cfg *config.Config) (services.Synthesizer, func(), error) {
	switch cfg.TTSProvider {
	case config.ProviderGoogle:
		g, err := services.NewGoogleSynthesizer(ctx, cfg.GoogleCredentials, cfg.GoogleVoice)
		if err != nil {
			return nil, nil, err
		}
		return g, func() { g.Close() }, nil
	default:
		e := services.NewElevenLabsSynthesizer(services.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			VoiceID: cfg.ElevenLabsVoiceID,
			ModelID: cfg.ElevenLabsModelID,
		}, &http.Client{})
		return e, func() {}, nil
	}
}
