package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"modwatch/internal/api"
	"modwatch/internal/config"
	"modwatch/internal/hashing"
	"modwatch/internal/logging"
	"modwatch/internal/metrics"
	"modwatch/internal/resolver"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		settingsPath  = flag.String("settings", "", "path to settings YAML")
		blocklistPath = flag.String("blocklist", "", "path to blocked-mods YAML (required)")
		listenAddr    = flag.String("listen", "", "listen address override")
		logLevel      = flag.String("log-level", "", "log level override (debug|info|warning|error)")
	)
	flag.Parse()

	settings, err := config.LoadSettings(*settingsPath)
	if err != nil {
		fatal("load settings failed", err)
	}
	settings = applyOverrides(settings, *listenAddr, *logLevel)

	level, ok := logging.ParseLevel(settings.LogLevel)
	if !ok {
		level = logging.LevelInfo
	}
	logger := logging.NewLogger(level)

	if *blocklistPath == "" {
		fatal("blocklist is required", errors.New("pass -blocklist"))
	}
	mods, err := config.LoadBlocklist(*blocklistPath)
	if err != nil {
		fatal("load blocklist failed", err)
	}
	logger.Info("blocklist loaded", map[string]string{
		"count": strconv.Itoa(len(mods)),
	})

	algorithm, err := hashing.ParseAlgorithm(settings.HashAlgorithm)
	if err != nil {
		fatal("invalid hash algorithm", err)
	}

	engine, err := resolver.New(resolver.Options{
		Mods:         mods,
		DownloadsDir: settings.DownloadsDir,
		ModsDir:      settings.ModsDir,
		Concurrency:  settings.HashConcurrency,
		Provider:     hashing.Provider(settings.Provider),
		Algorithm:    algorithm,
		Logger:       logger,
		Metrics:      metrics.Default,
	})
	if err != nil {
		fatal("start engine failed", err)
	}
	engine.Start()
	go watchCompletion(engine, logger)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, engine, logger, metrics.Default, settings.AuthToken)

	server := &http.Server{
		Addr:         settings.ListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket streams stay open
	}

	serveErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", map[string]string{
			"addr": settings.ListenAddr,
		})
		serveErrors <- server.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", nil)
	case err := <-serveErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server failed", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	_ = engine.Close()
}

func applyOverrides(settings config.Settings, listenAddr, logLevel string) config.Settings {
	if env := os.Getenv("MODWATCH_LISTEN"); env != "" {
		settings.ListenAddr = env
	}
	if env := os.Getenv("MODWATCH_TOKEN"); env != "" {
		settings.AuthToken = env
	}
	if env := os.Getenv("MODWATCH_DOWNLOADS_DIR"); env != "" {
		settings.DownloadsDir = env
	}
	if env := os.Getenv("MODWATCH_MODS_DIR"); env != "" {
		settings.ModsDir = env
	}
	if env := os.Getenv("MODWATCH_LOG_LEVEL"); env != "" {
		settings.LogLevel = env
	}
	if listenAddr != "" {
		settings.ListenAddr = listenAddr
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}
	return settings
}

// watchCompletion logs the moment every blocked mod has been located,
// and again if a vanished file reopens the search.
func watchCompletion(engine *resolver.Resolver, logger *logging.Logger) {
	snapshots, cancel := engine.Subscribe()
	defer cancel()

	complete := engine.AllMatched()
	for snapshot := range snapshots {
		if snapshot.AllMatched && !complete {
			logger.Info("all blocked mods located", nil)
		}
		if !snapshot.AllMatched && complete {
			logger.Info("blocked mods missing again", nil)
		}
		complete = snapshot.AllMatched
	}
}

func fatal(message string, err error) {
	logger := logging.NewLogger(logging.LevelError)
	logger.Error(message, map[string]string{"error": err.Error()})
	os.Exit(1)
}
