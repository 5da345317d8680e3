// Bookmarkd is the bookmark and history cleaning daemon.
//
// It serves the extension message API over HTTP (and optionally NATS),
// runs cleaning passes against the places database, and applies the
// history rules to every recorded visit.
//
// Configuration is loaded from ~/.config/bookmarkd/config.yaml and
// BOOKMARKD_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the daemon
//	BOOKMARKD_EXTENSION_ID=my-extension bookmarkd
//
//	# Use an explicit config file
//	bookmarkd -config /etc/bookmarkd/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fyrsmithlabs/bookmarkd/internal/cleaning"
	"github.com/fyrsmithlabs/bookmarkd/internal/config"
	httpserver "github.com/fyrsmithlabs/bookmarkd/internal/http"
	"github.com/fyrsmithlabs/bookmarkd/internal/logging"
	"github.com/fyrsmithlabs/bookmarkd/internal/messaging"
	"github.com/fyrsmithlabs/bookmarkd/internal/natsbus"
	"github.com/fyrsmithlabs/bookmarkd/internal/places"
	"github.com/fyrsmithlabs/bookmarkd/internal/preferences"
	"github.com/fyrsmithlabs/bookmarkd/internal/rules"
	"github.com/fyrsmithlabs/bookmarkd/internal/settings"
	"github.com/fyrsmithlabs/bookmarkd/internal/telemetry"
	"go.uber.org/zap"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath = flag.String("config", "", "path to the YAML config file")

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  bookmarkd           Start the bookmarkd daemon\n")
			fmt.Fprintf(os.Stderr, "  bookmarkd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("bookmarkd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts bookmarkd and blocks until ctx is cancelled.
//
// Startup order:
//  1. Loads and validates configuration
//  2. Initializes logger and telemetry
//  3. Opens the places database and the settings file
//  4. Creates the cleaning coordinator and the preference tracker
//  5. Starts the NATS bus when enabled
//  6. Starts the HTTP server
//
// On cancellation the server is shut down, running passes are awaited and
// telemetry is flushed. A clean shutdown returns nil.
func run(ctx context.Context, path string) error {
	cfg, err := config.LoadWithFile(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "Starting bookmarkd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("places", cfg.Places.Path),
		zap.String("settings", cfg.Settings.Path),
		zap.Bool("nats", cfg.NATS.Enabled))

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	store, err := places.Open(cfg.Places.Path, places.WithLogger(logger), places.WithMkdirAll())
	if err != nil {
		return fmt.Errorf("failed to open places database: %w", err)
	}
	defer store.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.Settings.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	settingsStore := settings.NewFileStore(cfg.Settings.Path, logger)
	loader := rules.NewLoader(settingsStore)

	var bus *natsbus.Bus
	coordCfg := cleaning.Config{
		DeleteRate:        cfg.Cleaning.DeleteRate,
		DeleteBurst:       cfg.Cleaning.DeleteBurst,
		HistoryMaxResults: cfg.Cleaning.HistoryMaxResults,
		Tracer:            tel.Tracer("github.com/fyrsmithlabs/bookmarkd/internal/cleaning"),
		OnFinish: func(ctx context.Context, res cleaning.Result) {
			if bus != nil {
				bus.PublishResult(ctx, res)
			}
		},
	}
	coordinator := cleaning.NewCoordinator(loader, store, store.History(), logger, coordCfg)
	go coordinator.Subscribe(ctx, store)

	if err := watchRules(ctx, settingsStore, logger); err != nil {
		logger.Warn(ctx, "rule watch unavailable", zap.Error(err))
	}

	prefs, err := preferences.NewTracker(ctx, settingsStore, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize preferences: %w", err)
	}

	handler := messaging.NewHandler(cfg.Extension.ID, coordinator, logger)

	if cfg.NATS.Enabled {
		nc, err := natsbus.Connect(cfg.NATS, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()

		b := natsbus.New(nc, cfg.NATS.SubjectPrefix, handler, store, logger)
		if err := b.Start(ctx); err != nil {
			return fmt.Errorf("failed to start NATS bus: %w", err)
		}
		defer func() { _ = b.Close() }()
		bus = b
	}

	var metrics *httpserver.HTTPMetrics
	if tel.IsEnabled() {
		// nil provider resolves to the global one installed by telemetry.New
		metrics = httpserver.NewHTTPMetrics(nil, logger.Underlying())
	}

	srv, err := httpserver.NewServer(httpserver.Dependencies{
		Messages:    handler,
		Cleaning:    coordinator,
		Bookmarks:   store,
		Rules:       loader,
		Preferences: prefs,
		Visits:      store,
		Metrics:     metrics,
	}, logger.Underlying(), &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	// stop taking requests from both transports before draining passes;
	// results of passes that finish during the drain are still published
	if bus != nil {
		if err := bus.Close(); err != nil {
			logger.Warn(shutdownCtx, "nats unsubscribe failed", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "http shutdown failed", zap.Error(err))
	}
	if err := coordinator.Wait(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "cleaning passes still running at shutdown", zap.Error(err))
	}
	return nil
}

// initLogger builds the structured logger from the logging section.
func initLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	lc.Level = level
	lc.Format = cfg.Format
	if version != "" {
		lc.Fields["version"] = version
	}
	return logging.NewLogger(lc, nil)
}

// watchRules logs cleaning rule edits made through the settings file.
func watchRules(ctx context.Context, store settings.Store, logger *logging.Logger) error {
	changes, err := store.Watch(ctx, rules.KeyCleaningRules)
	if err != nil {
		return err
	}
	go func() {
		for change := range changes {
			rs := rules.NewRuleSet()
			if change.New != nil {
				if err := rs.UnmarshalJSON(change.New); err != nil {
					logger.Warn(ctx, "ignoring malformed cleaning rules", zap.Error(err))
					continue
				}
			}
			logger.Info(ctx, "cleaning rules changed", zap.Int("rules", rs.Len()))
		}
	}()
	return nil
}
