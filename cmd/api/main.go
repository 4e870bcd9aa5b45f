package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"novelstudio/internal/adapter/repo"
	"novelstudio/internal/domain"
	"novelstudio/internal/generation"
	"novelstudio/internal/http/handlers"
	"novelstudio/internal/http/httpapi"
	"novelstudio/internal/infra"
	"novelstudio/internal/infra/geoip"
	"novelstudio/internal/jobclient"
	"novelstudio/internal/middleware"
	"novelstudio/internal/notice"
	"novelstudio/internal/session"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		history  domain.JobHistoryRepository
		recorder jobclient.Recorder
	)
	if cfg.HistoryEnabled() {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: failed to connect database")
		}
		defer pool.Close()
		historyRepo := repo.NewJobHistoryRepository(infra.NewSQLRunner(pool, &logger))
		if err := historyRepo.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("api: failed to prepare job history table")
		}
		history, recorder = historyRepo, historyRepo
		logger.Info().Msg("api: job history enabled")
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver.CountryCode
	}

	client, err := generation.NewClient(generation.Options{
		BaseURL:        cfg.BackendBaseURL,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure generation client")
	}
	notices := notice.NewCatalog()
	poller := jobclient.NewPoller(client, jobclient.PollerOptions{Interval: cfg.PollInterval, Logger: &logger})

	registry, err := session.NewRegistry(session.Options{
		IdleTTL: cfg.SessionIdleTTL,
		Logger:  &logger,
		Factory: func(locale string) (*jobclient.Controller, error) {
			return jobclient.NewController(jobclient.Options{
				Submitter: client,
				Poller:    poller,
				Notices:   notices,
				Locale:    locale,
				Recorder:  recorder,
				Logger:    &logger,
			})
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to create session registry")
	}
	registry.Start()
	defer registry.Close()

	app := handlers.NewApp(cfg, registry, history, &logger)
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Notices:       notices,
		CountryLookup: lookup,
		Logger:        &logger,
	})
	server := infra.NewHTTPServer(cfg, cfg.Port, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("backend", cfg.BackendBaseURL).
			Dur("poll_interval", cfg.PollInterval).
			Msg("api: listening")
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("api: http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	logger.Info().Msg("api: stopped")
}
