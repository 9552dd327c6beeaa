package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/chatrelay/internal/adapters/auth"
	"github.com/dkeye/chatrelay/internal/adapters/events"
	router "github.com/dkeye/chatrelay/internal/adapters/http"
	wsgateway "github.com/dkeye/chatrelay/internal/adapters/signal"
	"github.com/dkeye/chatrelay/internal/adapters/store"
	"github.com/dkeye/chatrelay/internal/app"
	"github.com/dkeye/chatrelay/internal/app/orch"
	"github.com/dkeye/chatrelay/internal/config"
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
	setupLogging(cfg)

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogging(cfg *config.Config) {
	if cfg.Mode == "release" {
		// JSON lines for log shippers.
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	if cfg.Store.RoomsFile != "" {
		rooms, err := store.LoadRooms(cfg.Store.RoomsFile)
		if err != nil {
			return err
		}
		if err := store.Seed(ctx, st, rooms); err != nil {
			return fmt.Errorf("seed rooms: %w", err)
		}
	}

	verifier, err := auth.New(cfg.Auth)
	if err != nil {
		return err
	}

	publisher, err := events.New(cfg.Events)
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	reg := app.NewRegistry()
	o := &orch.Orchestrator{
		Registry:   reg,
		Dispatcher: app.NewDispatcher(reg, app.PolicyByName(cfg.WS.Backpressure)),
		Sequencer:  app.NewSequencer(),
		Rooms:      st,
		Messages:   st,
		Events:     publisher,
		Limits: orch.Limits{
			HistoryLimit:  cfg.Chat.HistoryLimit,
			MaxContentLen: cfg.Chat.MaxContentLen,
			StoreTimeout:  cfg.Store.Timeout,
			RateLimit:     cfg.Chat.RateLimit,
			RateBurst:     cfg.Chat.RateBurst,
		},
	}
	gw := wsgateway.NewGateway(o, verifier, cfg.WS, cfg.Auth)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRouter(ctx, cfg, o, gw),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("chat relay started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})
	return g.Wait()
}
