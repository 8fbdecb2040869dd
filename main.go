package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"uno/internal/config"
	"uno/internal/database"
	"uno/internal/game"
	"uno/internal/server"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogging(cfg)

	store, err := database.Open(cfg.StatsBackend, cfg.StatsPath)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StatsBackend).Msg("Failed to open stats store")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger := database.NewLedger(store, log.With().Str("component", "ledger").Logger())
	if err := ledger.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load stats ledger")
	}

	hub := server.NewHub(log.With().Str("component", "hub").Logger())
	manager := game.NewManager(game.Options{
		Rules: game.Rules{
			HandSize:       cfg.HandSize,
			MaxPlayers:     cfg.MaxPlayers,
			LowHandPenalty: cfg.LowHandPenalty,
		},
		TurnTimeout: cfg.TurnTimeout,
	}, hub, ledger, log.With().Str("component", "rooms").Logger())

	h := server.NewHandler(manager, ledger, hub, cfg.AllowedOrigins, log.With().Str("component", "http").Logger())
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().
		Str("port", cfg.Port).
		Str("stats_backend", cfg.StatsBackend).
		Str("stats_path", cfg.StatsPath).
		Dur("turn_timeout", cfg.TurnTimeout).
		Msg("Starting UNO server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return ledger.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		manager.Shutdown()
		return err
	})

	err = g.Wait()
	// Rooms may have finished rounds after the writer exited.
	if ferr := ledger.Flush(context.Background()); ferr != nil {
		log.Error().Err(ferr).Msg("Final stats write failed")
	}
	if err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}
	log.Info().Msg("Server stopped")
}

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !cfg.Production {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
}
