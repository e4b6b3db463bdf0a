package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"justapengu.in/pitwall"
	"justapengu.in/pitwall/internal/gemini"
	"justapengu.in/pitwall/internal/racesim"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "c", "./config.yml", "config path")
	flag.Parse()
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	config, err := pitwall.ReadConfig(configPath)

	if err != nil {
		logger.WithError(err).Fatalf("Could not read config at %s", configPath)
	}

	logger.SetLevel(config.LogLevel())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	metrics := racesim.NewMetrics(registry)

	var (
		advisor     racesim.Advisor
		commentator racesim.Commentator
	)

	if gemini.Enabled(config.Gemini.APIKey) {
		client := gemini.NewClient(gemini.Config{
			APIKey:          config.Gemini.APIKey,
			Model:           config.Gemini.Model,
			CommentaryModel: config.Gemini.CommentaryModel,
			BaseURL:         config.Gemini.BaseURL,
		})

		advisor = client
		commentator = client

		logger.Infof("Race engineer using Gemini model %s", config.Gemini.Model)
	} else {
		logger.Warnf("No Gemini API key configured. Race engineer answers will use local fallback rules")
	}

	manager := racesim.NewManager(racesim.SessionOptions{
		Logger:            logger,
		Metrics:           metrics,
		Commentator:       commentator,
		CommentaryTimeout: config.Server.CommentaryTimeout,
	})

	session, err := manager.Create(config.Race)

	if err != nil {
		logger.WithError(err).Fatal("Could not create race session")
	}

	logger.Infof("Default session %s ready. Start it with /control/start", session.ID())

	engineer := racesim.NewEngineer(advisor, config.Server.AdvisorTimeout, logger, metrics)
	server := pitwall.NewHTTP(config, manager, engineer, registry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(server.ListenAndServe)

	g.Go(func() error {
		<-ctx.Done()

		logger.Infof("Shutting down")

		if err := manager.Close(); err != nil {
			logger.WithError(err).Warn("Sessions did not close cleanly")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("HTTP server stopped")
	}

	logger.Infof("Server stopped. Exiting")
}
