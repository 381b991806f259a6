package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/convert"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/jobstore"
	"server/internal/process"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	store, err := jobstore.New(cfg.ProcessedDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure job store")
	}

	// One facade per background unit: only the requested strategy's model
	// is ever loaded, and strategies are never warm simultaneously.
	factory := func(strategy convert.Strategy) (process.DocumentConverter, error) {
		return convert.NewFacade(string(strategy), convert.Options{
			APIPrefix:    cfg.APIPrefix,
			LayoutBinary: cfg.LayoutBinary,
			Logger:       logger,
		})
	}
	proc := process.New(store, factory, logger)

	if _, err := convert.ParseStrategy(cfg.DefaultConverter); err != nil {
		logger.Fatal().Err(err).Str("converter", cfg.DefaultConverter).Msg("invalid CONVERTER setting")
	}

	app := handlers.NewApp(cfg, logger, store, proc)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("port", cfg.Port).Str("api_prefix", cfg.APIPrefix).Msg("api listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
