package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"novelstudio/internal/backendsim"
	"novelstudio/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := backendsim.New(backendsim.Options{
		StageDuration: cfg.SimulatorStageTime,
		PublicURL:     cfg.SimulatorPublicURL,
		Logger:        &logger,
	})
	server := infra.NewHTTPServer(cfg, cfg.SimulatorPort, sim.Handler())

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Dur("stage", cfg.SimulatorStageTime).
			Msg("backendsim: listening")
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("backendsim: http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("backendsim: failed to shutdown server")
	}
	logger.Info().Msg("backendsim: stopped")
}
