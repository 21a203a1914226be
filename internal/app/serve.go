package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"apt-archive/internal/api"
)

// Serve runs the HTTP gateway until ctx is done, then closes the worker
// pool.
func (r *Runtime) Serve(ctx context.Context, req ServeRequest) error {
	server := api.NewServer(r, *log.Ctx(ctx))
	serveErr := server.Serve(ctx, r.ListenAddress(req.Listen), req.ShutdownTimeout)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), req.ShutdownTimeout)
	defer cancel()
	if err := r.Close(closeCtx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("worker pool did not drain before shutdown timeout")
	}
	return serveErr
}

var _ api.Backend = (*Runtime)(nil)
