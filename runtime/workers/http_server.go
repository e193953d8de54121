package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServerWorker serves REST and websocket traffic until its context ends,
// then drains in-flight requests for at most shutdownTimeout.
type HTTPServerWorker struct {
	server          *http.Server
	listener        net.Listener
	shutdownTimeout time.Duration
	log             *slog.Logger
}

func NewHTTPServerWorker(server *http.Server, shutdownTimeout time.Duration, log *slog.Logger) *HTTPServerWorker {
	return &HTTPServerWorker{server: server, shutdownTimeout: shutdownTimeout, log: log}
}

// WithListener serves on an already bound listener instead of server.Addr.
func (w *HTTPServerWorker) WithListener(listener net.Listener) *HTTPServerWorker {
	w.listener = listener
	return w
}

func (w *HTTPServerWorker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if w.listener != nil {
			w.log.Info("HTTP server listening", "addr", w.listener.Addr().String())
			err = w.server.Serve(w.listener)
		} else {
			w.log.Info("HTTP server listening", "addr", w.server.Addr)
			err = w.server.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer cancel()
	if err := w.server.Shutdown(shutdownCtx); err != nil {
		w.log.Warn("HTTP server shutdown incomplete", "error", err)
		_ = w.server.Close()
	}
	<-errCh
	w.log.Info("HTTP server stopped")
	return nil
}
