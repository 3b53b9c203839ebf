// Package health implements the Health server (spec SPEC_FULL.md §4.14):
// a tiny net/http server exposing /healthz and /readyz, started and
// stopped the way the teacher starts its metrics server
// (metrics/geth.go) — a background goroutine, context-driven shutdown.
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cosmossdk.io/log"
)

// ReadyFunc reports whether the scheduler has completed its first tick.
type ReadyFunc func() bool

// Server serves /healthz (always ok once running) and /readyz (ok once
// ready reports true).
type Server struct {
	logger log.Logger
	addr   string
	ready  ReadyFunc
	srv    *http.Server
}

// New constructs a Server bound to addr; ready is polled on every /readyz
// request.
func New(logger log.Logger, addr string, ready ReadyFunc) *Server {
	mux := http.NewServeMux()
	s := &Server{logger: logger, addr: addr, ready: ready}

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if s.ready == nil || !s.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Run starts the server and blocks until ctx is cancelled or the server
// fails to start, gracefully shutting it down on cancellation.
func (s *Server) Run(ctx context.Context) error {
	errC := make(chan error, 1)

	go func() {
		s.logger.Info("starting health server", "address", s.addr)
		errC <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("stopping health server", "address", s.addr)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("health server shutdown error", "error", err.Error())
			return err
		}
		return nil

	case err := <-errC:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("failed to start health server", "error", err.Error())
			return err
		}
		return nil
	}
}
