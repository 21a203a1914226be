package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"apt-archive/internal/app"
)

type serveOptions struct {
	runtimeOptions
	Listen             string
	ShutdownTimeoutSec int
}

func newServeCommand() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the repository API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}
	addRuntimeFlags(cmd, &opts.runtimeOptions)
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "Listen address (overrides listenAddress from the configuration)")
	cmd.Flags().IntVar(&opts.ShutdownTimeoutSec, "shutdown-timeout", 15, "Seconds to wait for in-flight requests on shutdown")
	_ = viper.BindPFlag("listen", cmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("shutdown_timeout_sec", cmd.Flags().Lookup("shutdown-timeout"))
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	req, err := openRequest(cmd, opts.runtimeOptions)
	if err != nil {
		return err
	}
	runtime, err := newAppService().Open(ctx, req)
	if err != nil {
		return err
	}
	timeout := resolveInt(cmd, opts.ShutdownTimeoutSec, "shutdown_timeout_sec", "shutdown-timeout")
	if timeout <= 0 {
		timeout = 15
	}
	return runtime.Serve(ctx, app.ServeRequest{
		Listen:          resolveString(cmd, opts.Listen, "listen", "listen"),
		ShutdownTimeout: time.Duration(timeout) * time.Second,
	})
}
