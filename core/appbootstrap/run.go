// Package appbootstrap composes the application runtime: storage, services,
// HTTP server and background workers, with graceful shutdown.
package appbootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"missionctl/api"
	"missionctl/config"
	"missionctl/core/store"
	"missionctl/core/utils"
)

const shutdownTimeout = 10 * time.Second

// Run starts the application and blocks until SIGINT/SIGTERM.
func Run(cfg *config.AppConfig, logger *utils.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return err
	}
	if err := EnsureDefaultAdmin(ctx, store.NewUsersStore(db), cfg, logger); err != nil {
		return err
	}

	comp, err := composeRuntime(cfg, db, logger)
	if err != nil {
		return err
	}
	server := api.NewServer(cfg, comp.serverDeps, logger)

	for _, w := range comp.workers {
		w.StartWithContext(ctx)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	for _, w := range comp.workers {
		if err := w.StopWithContext(shutdownCtx); err != nil {
			logger.Errorf("worker shutdown: %v", err)
		}
	}
	comp.hub.Close()
	return nil
}
