// Package api exposes the repository configuration and publication over
// HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"apt-archive/internal/types"
)

const maxRequestBytes = 1 << 20

// Backend is what the gateway serves. app.Service implements it.
type Backend interface {
	Configuration() types.Configuration
	Repositories() []types.RepositoryDefinition
	Repository(name string) (types.RepositoryDefinition, error)
	PublishBatch(ctx context.Context, requested []types.RepositoryDefinition, mode types.ValidationMode) ([]types.PublishOutcome, error)
}

type Server struct {
	backend Backend
	logger  zerolog.Logger
}

func NewServer(backend Backend, logger zerolog.Logger) *Server {
	return &Server{backend: backend, logger: logger}
}

// Handler returns the routed handler with request logging attached.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(
		hlog.NewHandler(s.logger),
		hlog.RequestIDHandler("request_id", "X-Request-Id"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
	)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/config", s.getConfig).Methods(http.MethodGet)
	v1.HandleFunc("/repositories", s.listRepositories).Methods(http.MethodGet)
	v1.HandleFunc("/repositories", s.publishRepositories).Methods(http.MethodPost)
	v1.HandleFunc("/repositories/{name}", s.getRepository).Methods(http.MethodGet)
	return router
}

// Serve listens on addr until ctx is done, then drains in-flight requests
// for at most shutdownTimeout.
func (s *Server) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	// Requests outlive ctx so Shutdown can drain them; only a client
	// disconnect cancels a request.
	baseCtx := context.WithoutCancel(ctx)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return baseCtx },
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Ctx(ctx).Info().Str("address", addr).Msg("listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("http server failed").
			WithCause(err)
	case <-ctx.Done():
	}

	log.Ctx(ctx).Info().Dur("timeout", shutdownTimeout).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("http server shutdown failed").
			WithCause(err)
	}
	return nil
}
