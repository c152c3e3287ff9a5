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

	router "github.com/Dylan0165/EUsuite-Platform-sub002/internal/adapters/http"
	signaladapter "github.com/Dylan0165/EUsuite-Platform-sub002/internal/adapters/signal"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/app"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/auth"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/config"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/core"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media/memory"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media/pion"
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

	var engine media.Engine
	switch cfg.Engine {
	case "memory":
		engine = memory.New()
	default:
		engine = pion.New(pion.Config{
			AnnouncedIP: cfg.AnnouncedIP,
			MinPort:     cfg.RTCMinPort,
			MaxPort:     cfg.RTCMaxPort,
		})
	}

	// A lost worker invalidates every room routed through it; there is
	// no partial-degradation mode.
	pool, err := media.NewPool(ctx, engine, cfg.Workers, func(err error) {
		log.Fatal().Err(err).Msg("media worker died")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create worker pool")
	}

	registry := core.NewRegistry(pool, media.DefaultRouterCodecs())
	orch := &app.Orchestrator{
		Registry: registry,
		Policy:   core.SimplePolicy{MaxPeers: cfg.MaxRoomPeers},
	}
	verifier := auth.NewVerifier(cfg.Secret)
	ctl := signaladapter.NewController(orch, verifier, cfg)

	r := router.SetupRouter(ctx, cfg, registry, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("engine", cfg.Engine).Msg("call server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	registry.Close()
	pool.Close()
	log.Info().Msg("server exited gracefully")
}
