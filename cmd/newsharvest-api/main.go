package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/newsharvest/api"
	"github.com/pevans/newsharvest/archive"
	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/history"
	"github.com/pevans/newsharvest/logging"
	"go.uber.org/zap"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configFile := flag.String("config", getEnv("NEWSHARVEST_CONFIG", ""), "Path to settings file (NEWSHARVEST_CONFIG)")
	envFile := flag.String("env", ".env", "Path to dotenv file")
	addr := flag.String("addr", "", "Listen address (overrides api_addr)")
	flag.Parse()

	if *configFile == "" {
		path, err := config.DefaultSettingsFile()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		*configFile = path
	}

	settings, err := config.LoadSettings(*configFile, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load settings: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		settings.APIAddr = *addr
	}

	logger, err := logging.New(settings.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	arc, err := archive.New(settings.OutputDir)
	if err != nil {
		logger.Fatal("failed to open archive", zap.Error(err))
	}

	// The sources file is optional here; archive-only sources are still
	// served.
	sources, err := config.LoadSources(settings.SourcesFile)
	if err != nil {
		logger.Warn("serving without configured sources", zap.String("path", settings.SourcesFile), zap.Error(err))
		sources = nil
	}

	var ledger *history.Store
	if settings.HistoryDSN != "" {
		ledger, err = history.New(settings.HistoryDSN)
		if err != nil {
			logger.Fatal("failed to open history", zap.Error(err))
		}
		defer ledger.Close()
	}

	if settings.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := api.NewServer(arc, ledger, sources, logger)
	httpServer := &http.Server{
		Addr:              settings.APIAddr,
		Handler:           server.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("starting archive API", zap.String("addr", settings.APIAddr), zap.String("output_dir", settings.OutputDir))
		errChan <- httpServer.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		logger.Info("shutting down gracefully", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			if ledger != nil {
				ledger.Close()
			}
			os.Exit(1)
		}
	}
}
