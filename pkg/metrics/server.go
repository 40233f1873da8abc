package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sanyaade-teachings/ganeti/pkg/log"
)

// StatusServer serves the health, readiness and metrics endpoints
type StatusServer struct {
	router *mux.Router
	server *http.Server
}

// NewStatusServer creates a status server bound to addr
func NewStatusServer(addr string) *StatusServer {
	r := mux.NewRouter()
	r.HandleFunc("/health", HealthHandler()).Methods(http.MethodGet)
	r.HandleFunc("/ready", ReadyHandler()).Methods(http.MethodGet)
	r.HandleFunc("/live", LivenessHandler()).Methods(http.MethodGet)
	r.Handle("/metrics", Handler()).Methods(http.MethodGet)

	return &StatusServer{
		router: r,
		server: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Handler returns the router, mainly for tests
func (s *StatusServer) Handler() http.Handler {
	return s.router
}

// Serve serves on l until Shutdown is called
func (s *StatusServer) Serve(l net.Listener) error {
	logger := log.WithComponent("status")
	logger.Info().Str("addr", l.Addr().String()).Msg("Status server listening")
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens on the configured address and serves in the background
func (s *StatusServer) Start() error {
	l, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.Serve(l); err != nil {
			logger := log.WithComponent("status")
			logger.Error().Err(err).Msg("Status server failed")
		}
	}()
	return nil
}

// Shutdown stops the server gracefully
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
