package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pvnkmnk/rentFalcon/internal/api/routes"
	"github.com/pvnkmnk/rentFalcon/internal/cache"
	"github.com/pvnkmnk/rentFalcon/internal/config"
	"github.com/pvnkmnk/rentFalcon/internal/coordinator"
	"github.com/pvnkmnk/rentFalcon/internal/sources"
	"github.com/pvnkmnk/rentFalcon/internal/sources/fetch"
	"github.com/pvnkmnk/rentFalcon/internal/sources/kijiji"
	"github.com/pvnkmnk/rentFalcon/internal/sources/realtorca"
	"github.com/pvnkmnk/rentFalcon/internal/sources/rentalsca"
	"github.com/pvnkmnk/rentFalcon/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := utils.GetLogger()
	logger.Info("Starting rentFalcon listing aggregator")

	// Build the adapter registry
	registry := sources.NewRegistry()
	mustRegister(registry,
		kijiji.New(fetchOptions(cfg, kijiji.SourceName)),
		rentalsca.New(fetchOptions(cfg, rentalsca.SourceName), cfg.AdapterFor(rentalsca.SourceName).UseBrowser),
		realtorca.New(fetchOptions(cfg, realtorca.SourceName), cfg.AdapterFor(realtorca.SourceName).UseBrowser),
	)

	// Build the coordinator
	coord, err := coordinator.New(cfg, registry)
	if err != nil {
		logger.WithError(err).Fatal("Invalid search configuration")
	}
	logger.WithField("sources", coord.EnabledSources()).Info("Coordinator ready")

	// Initialize the result cache
	resultCache := cache.New(cfg)
	if err := resultCache.Ping(context.Background()); err != nil {
		logger.WithError(err).Warn("Redis unreachable, searches will not be cached")
	}
	defer resultCache.Close()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Setup routes
	routes.SetupRoutes(e, cfg, coord, resultCache)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error shutting down server")
		}

		if err := resultCache.Close(); err != nil {
			logger.WithError(err).Error("Error closing result cache")
		}

		logger.Info("Server shutdown complete")
	}()

	// Start server
	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.WithField("address", address).Info("Server starting")

	if err := e.Start(address); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}

func fetchOptions(cfg *config.Config, source string) fetch.Options {
	ac := cfg.AdapterFor(source)
	return fetch.Options{
		Timeout:    ac.Timeout,
		Delay:      ac.Delay,
		MaxRetries: ac.MaxRetries,
		UserAgent:  cfg.Scraper.UserAgent,
		Debug:      ac.Debug,
		DebugDir:   cfg.Scraper.DebugDir,
	}
}

func mustRegister(registry *sources.Registry, adapters ...sources.Adapter) {
	for _, a := range adapters {
		if err := registry.Register(a); err != nil {
			log.Fatalf("Failed to register adapter: %v", err)
		}
	}
}
