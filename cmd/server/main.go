/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the academic calendar and declaration server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load config (YAML + .env + PLATA_* env)
  2. Build the zap logger
  3. Initialize SQLite store (runs migrations)
  4. Wire holiday sources, calendar and declaration services
  5. Start the ICS holiday refresher when a feed is configured
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config path (default: platacuora.yaml, created on first run)
  -port    HTTP server port, overrides "listen"
  -db      SQLite database path, overrides "database_path"
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the holiday refresher
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -config=/etc/platacuora.yaml
  ./server -db=":memory:" -port=3000
  PLATA_LOG_LEVEL=debug ./server

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
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
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
	"github.com/ULBS/platacuora-timetech-sub000/api"
	"github.com/ULBS/platacuora-timetech-sub000/calendar"
	"github.com/ULBS/platacuora-timetech-sub000/config"
	"github.com/ULBS/platacuora-timetech-sub000/declaration"
	"github.com/ULBS/platacuora-timetech-sub000/factory"
	"github.com/ULBS/platacuora-timetech-sub000/holiday"
	"github.com/ULBS/platacuora-timetech-sub000/logger"
	"github.com/ULBS/platacuora-timetech-sub000/store/sqlite"
)

func main() {
	configPath := flag.String("config", "platacuora.yaml", "YAML config path")
	port := flag.Int("port", 0, "HTTP server port (overrides listen)")
	dbPath := flag.String("db", "", "SQLite database path (overrides database_path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Listen = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	coefficients, err := factory.ParseCoefficients(factory.StandardCoefficientsJSON())
	if err != nil {
		return err
	}
	if len(cfg.Coefficients) > 0 {
		if coefficients, err = factory.BuildCoefficients(1, cfg.Coefficients); err != nil {
			return fmt.Errorf("coefficients: %w", err)
		}
	}

	// Stored holidays (manual + imported feed) win over computed ones.
	var holidays academic.HolidaySource = store
	if cfg.Holidays.RomanianDefaults {
		holidays = holiday.Merge(store, holiday.Romanian{})
	}

	handler := api.NewHandler(
		calendar.NewService(store, holidays, zl.Named("calendar"), cfg.ExtendedWeeks),
		declaration.NewService(store, coefficients, zl.Named("declaration"), cfg.MaxPeriodDays),
		store,
		zl.Named("api"),
	)

	if cfg.Holidays.ICSURL != "" {
		refresher, err := api.NewHolidayRefresher(store, holiday.NewICSSource(cfg.Holidays.ICSURL), cfg.Holidays.Refresh, zl.Named("holidays"))
		if err != nil {
			return err
		}
		if err := refresher.Start(); err != nil {
			return err
		}
		defer refresher.Stop()
		handler.Refresher = refresher
	}

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      api.NewRouter(handler, nil),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server starting", zap.String("listen", cfg.Listen), zap.String("db", cfg.DatabasePath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	zl.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	zl.Info("server stopped")
	return nil
}
