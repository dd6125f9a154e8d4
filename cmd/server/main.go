/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (best effort) and the YAML config
  2. Build the zap logger
  3. Open the configured store (sqlite, postgres or memory)
  4. Build notifiers, the API handler and the award scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a YAML config file (optional)
  -seed    Load a demo scenario before serving (e.g. small-office)

ENVIRONMENT:
  Every key can be overridden with LEAVE_<SECTION>_<KEY>, for example
  LEAVE_SERVER_PORT=3000 or LEAVE_DATABASE_DRIVER=memory.
  DATABASE_URL and SMTP_PASSWORD are accepted for the secrets.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the award scheduler
  2. Stop accepting new connections
  3. Wait for active requests (server.shutdown_timeout)
  4. Close the store

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - api/scheduler.go: Automatic award
*/
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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/logging"
	"github.com/warp/leave-engine/notify"
	"github.com/warp/leave-engine/store/backends"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	seed := flag.String("seed", "", "demo scenario to load before serving")
	flag.Parse()

	if err := run(*configPath, *seed); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(configPath, seed string) error {
	// Missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := backends.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	clock := generic.SystemClock{}
	handler := api.NewHandler(api.Deps{
		Store:    st,
		Notifier: notify.FromConfig(cfg.SMTP, logger),
		Clock:    clock,
		Logger:   logger,
		Award: leave.AwardConfig{
			EntitlementDays:   cfg.Award.EntitlementDays,
			AnnualLeaveTypeID: cfg.Award.AnnualLeaveTypeID,
		},
	})

	if seed != "" {
		fy := handler.Registry.CurrentFinancialYear()
		if err := api.LoadScenario(ctx, st, seed, fy); err != nil {
			return fmt.Errorf("load scenario %s: %w", seed, err)
		}
		logger.Info("scenario loaded", zap.String("scenario", seed), zap.String("year", fy.String()))
	}

	scheduler := api.NewAwardScheduler(handler.Awards, handler.Registry, clock, logger)
	scheduler.Enabled = cfg.Award.AutoAward
	scheduler.CheckInterval = cfg.Award.CheckInterval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewRouter(handler, api.RouterOptions{
			CORSOrigins: cfg.Server.CORSOrigins,
			Logger:      logger,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
