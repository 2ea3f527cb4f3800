package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/spf13/pflag"

	"github.com/mgsv-tools/savedump/internal/api"
	"github.com/mgsv-tools/savedump/internal/config"
	"github.com/mgsv-tools/savedump/internal/parser"
	"github.com/mgsv-tools/savedump/internal/session"
	"github.com/mgsv-tools/savedump/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", "", "path to the XML config (default: savedump.config next to the executable)")
	showVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("savedump-server %s (built %s)\n", Version, BuildTime)
		return nil
	}

	if *configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		*configPath = filepath.Join(filepath.Dir(exePath), "savedump.config")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	level, _ := cfg.LogLevel() // validated by LoadConfig
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	maxUpload, _ := cfg.MaxUploadBytes()
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir(), maxUpload)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	sessionMgr := session.NewManager(session.Config{
		TempDir:              cfg.GetTempDir(),
		MaxSessions:          cfg.Processing.MaxSessions,
		MaxConcurrentDecodes: cfg.Processing.MaxConcurrentDecodes,
		FieldStore: parser.FieldStoreOptions{
			MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
			Threads:     cfg.Advanced.DuckDBThreads,
		},
		Logger: logger,
	})
	defer sessionMgr.Close()
	sessionMgr.OnFinish(api.FileStatusHook(fileStore))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runCleanup(ctx, sessionMgr, cfg, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	gzipLevel := 0
	if cfg.Processing.EnableCompression {
		gzipLevel = cfg.Processing.CompressionLevel
	}
	api.SetupMiddleware(e, api.MiddlewareConfig{
		Logger:           logger,
		RequestLogging:   cfg.Advanced.EnableRequestLogging,
		BodyLimit:        cfg.Server.BodyLimit,
		GzipLevel:        gzipLevel,
		AllowOrigins:     cfg.AllowedOrigins(),
		ShowErrorDetails: cfg.Advanced.ShowErrorDetails,
	})

	handlers := api.NewHandlers(&api.Dependencies{
		Store:                fileStore,
		SessionMgr:           sessionMgr,
		DefaultFormatVersion: cfg.Processing.DefaultFormatVersion,
		Version:              Version,
	})
	api.RegisterRoutes(e, handlers, cfg.Security.AllowFileDeletion)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	logger.Info("savedump server starting",
		"component", "server",
		"version", Version,
		"build_time", BuildTime,
		"config", *configPath,
		"listen", "http://"+cfg.GetServerAddr(),
		"data_dir", cfg.GetDataDir(),
		"max_upload", humanize.IBytes(uint64(maxUpload)),
		"default_format_version", cfg.Processing.DefaultFormatVersion,
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- e.StartServer(s)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "component", "server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// runCleanup drops idle sessions until ctx is cancelled.
func runCleanup(ctx context.Context, mgr *session.Manager, cfg *config.AppConfig, logger *slog.Logger) {
	interval := time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	maxAge := time.Duration(cfg.Processing.SessionTimeoutMinutes) * time.Minute
	if maxAge <= 0 {
		maxAge = session.SessionMaxAge
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := mgr.CleanupOldSessions(maxAge); n > 0 {
				logger.Info("cleaned up idle sessions", "component", "session", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
