package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/babel/internal/adapters/http"
	"github.com/dkeye/babel/internal/adapters/speech"
	"github.com/dkeye/babel/internal/app"
	"github.com/dkeye/babel/internal/app/chat"
	"github.com/dkeye/babel/internal/app/orch"
	"github.com/dkeye/babel/internal/app/pipeline"
	"github.com/dkeye/babel/internal/app/transcribe"
	"github.com/dkeye/babel/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	moderator, err := chat.NewModerator(cfg.CensoredWords, '*')
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build chat moderator")
	}

	stats := &app.Stats{}
	reg := app.NewRegistry()
	outbox := app.NewOutbox(app.PolicyByName(cfg.BackpressurePolicy), stats)
	coordinator := pipeline.NewCoordinator(reg, outbox, speech.TaggingTranslator{}, speech.EchoSynthesizer{}, stats, cfg.PipelineTimeout)
	segmenters := transcribe.NewManager(speech.TextRecognizer{}, coordinator.OnUtterance, transcribe.Options{
		SilenceTimeout:   cfg.SilenceTimeout,
		InterimInterval:  cfg.InterimInterval,
		MaxBufferBytes:   cfg.MaxUtterance,
		RecognizeTimeout: cfg.RecognizeTimeout,
		QueueSize:        cfg.ChunkQueue,
		OnRecognizeError: func(error, bool) {
			stats.CollaboratorErrors.Add(1)
		},
	})

	o := &orch.Orchestrator{
		Registry:      reg,
		Outbox:        outbox,
		Stats:         stats,
		Segmenters:    segmenters,
		Pipeline:      coordinator,
		Moderator:     moderator,
		DefaultName:   cfg.DefaultName,
		MaxChunkBytes: cfg.MaxChunkBytes,
	}

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Babel server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	segmenters.CloseAll()
	coordinator.Close()
	log.Info().Msg("Server exited gracefully")
}
