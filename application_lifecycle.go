package kick

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
)

// Run serves the application on the configured address until ctx is done,
// then shuts down gracefully within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.Server.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.config.Server.Address, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		_ = ln.Close()
		return ErrAppAlreadyStarted
	}
	srv := &http.Server{
		Handler:      a,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}
	a.server = srv
	a.addr = ln.Addr()
	a.started = true
	a.done = make(chan struct{})
	a.mu.Unlock()

	if err := a.janitor.Start(ctx); err != nil {
		_ = ln.Close()
		a.markStopped()
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	a.logger.Info("Server listening", "address", ln.Addr().String())
	a.events.emit(ctx, EventTypeAppStarted, map[string]any{"address": ln.Addr().String()})

	select {
	case err := <-errCh:
		a.janitor.Stop()
		a.markStopped()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.Server.ShutdownTimeout)
	defer cancel()
	err := a.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	return err
}

// Shutdown stops a running server, waiting for in-flight requests.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	srv, started := a.server, a.started
	a.mu.Unlock()
	if !started {
		return ErrAppNotStarted
	}
	a.logger.Info("Shutting down server")
	err := srv.Shutdown(ctx)
	a.janitor.Stop()
	a.markStopped()
	return err
}

func (a *App) markStopped() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return
	}
	a.started = false
	close(a.done)
	a.logger.Info("HTTP server closed")
	a.events.emit(context.Background(), EventTypeAppStopped, map[string]any{})
}

// Addr is the address the server listens on, nil before Run.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Done is closed when a running server stops. It is nil before Run.
func (a *App) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// Bootstrap creates the application and runs it until ctx is done or the
// process receives SIGINT or SIGTERM.
func Bootstrap(ctx context.Context, opts Options) error {
	app, err := CreateApp(opts)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}
