package daemon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tbman/internal/logging"
)

type Daemon struct {
	addr    string
	token   string
	version string
	server  *http.Server
	manager *Manager
	logger  logging.Logger
}

func New(addr, token, version string, manager *Manager, logger logging.Logger) *Daemon {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Daemon{
		addr:    addr,
		token:   token,
		version: version,
		manager: manager,
		logger:  logger,
	}
}

// Run reconciles persisted sessions, serves the control API until ctx is
// cancelled, then stops every child process and releases the store.
func (d *Daemon) Run(ctx context.Context) error {
	api := &API{
		Version: d.version,
		Manager: d.manager,
		Logger:  d.logger,
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	handler := LoggingMiddleware(d.logger, TokenAuthMiddleware(d.token, mux))
	d.server = &http.Server{
		Addr:    d.addr,
		Handler: handler,
	}
	api.Shutdown = d.server.Shutdown

	// Re-spawn persisted sessions without delaying the listener; each
	// failure is isolated and reported per session. The sweep runs on the
	// daemon's ctx so a shutdown cancels it; closing the manager makes any
	// in-flight start fail, and Run waits for the sweep before returning.
	reconcileDone := make(chan struct{})
	go func() {
		defer close(reconcileDone)
		for _, outcome := range d.manager.Reconcile(ctx) {
			if outcome.OK() {
				d.logger.Info("session_reconciled",
					logging.F("session_id", outcome.SessionID),
					logging.F("port", outcome.Port),
				)
				continue
			}
			d.logger.Error("session_reconcile_failed",
				logging.F("session_id", outcome.SessionID),
				logging.F("error", outcome.Err),
			)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("daemon_listening", logging.F("addr", "http://"+d.addr))
		errCh <- d.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			break
		}
		d.stopChildren()
		<-reconcileDone
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := d.server.Shutdown(shutdownCtx)
	d.stopChildren()
	<-reconcileDone
	if err != nil {
		return err
	}
	return nil
}

func (d *Daemon) stopChildren() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.manager.Close(ctx); err != nil {
		d.logger.Warn("manager_close_failed", logging.F("error", err))
	}
}
