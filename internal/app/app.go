package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds how long Serve waits for open requests on exit.
const ShutdownTimeout = 10 * time.Second

// Restore brings back the session persisted by a previous run. A session
// that can no longer be re-established is logged out; that is not an error
// for the caller, who simply starts logged out.
func (w *Wire) Restore(ctx context.Context) {
	err := w.Auth.RestoreFromStorage(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("could not restore session")
		return
	}

	sess := w.Auth.Session()
	if sess.IsAuthenticated() {
		w.log.Info().
			Str("username", sess.Username.String()).
			Str("method", sess.AuthMethod.String()).
			Msg("session restored")
	}
}

// Serve runs the HTTP bridge on ln until ctx is cancelled or the server fails.
func (w *Wire) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           w.API().Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		w.log.Info().Str("address", ln.Addr().String()).Msg("bridge listening")
		err := server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		w.log.Info().Msg("bridge stopping")

		shutdown, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdown)
	})

	return eg.Wait()
}
