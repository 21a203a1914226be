package cli

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"apt-archive/internal/app"
	"apt-archive/internal/core"
	"apt-archive/internal/types"
)

// runtimeOptions are shared by every command that publishes.
type runtimeOptions struct {
	Workers            int
	BuilderParallelism int
	CompressionLevel   int
	SigningKey         string
	GPGHomedir         string
	Validation         string
}

func addRuntimeFlags(cmd *cobra.Command, opts *runtimeOptions) {
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Concurrent publish workers (0 = number of CPUs)")
	cmd.Flags().IntVar(&opts.BuilderParallelism, "builder-parallelism", 4, "Concurrent index generations inside one publish")
	cmd.Flags().IntVar(&opts.CompressionLevel, "compression-level", 1, "gzip level for Packages.gz")
	cmd.Flags().StringVar(&opts.SigningKey, "signing-key", "", "GPG key ID used to sign Release files (unsigned when empty)")
	cmd.Flags().StringVar(&opts.GPGHomedir, "gpg-homedir", "", "GPG home directory")
	cmd.Flags().StringVar(&opts.Validation, "validation", string(types.ValidationModeFailFast), "Batch validation mode (fail-fast or fail-complete)")
	_ = viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("builder_parallelism", cmd.Flags().Lookup("builder-parallelism"))
	_ = viper.BindPFlag("compression_level", cmd.Flags().Lookup("compression-level"))
	_ = viper.BindPFlag("signing_key", cmd.Flags().Lookup("signing-key"))
	_ = viper.BindPFlag("gpg_homedir", cmd.Flags().Lookup("gpg-homedir"))
	_ = viper.BindPFlag("validation", cmd.Flags().Lookup("validation"))
}

func openRequest(cmd *cobra.Command, opts runtimeOptions) (app.OpenRequest, error) {
	rawMode := resolveString(cmd, opts.Validation, "validation", "validation")
	mode, ok := core.ParseValidationMode(rawMode, types.ValidationModeFailFast)
	if !ok {
		return app.OpenRequest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown validation mode %q", rawMode))
	}
	return app.OpenRequest{
		ConfigPath:         configPath(cmd),
		Workers:            resolveInt(cmd, opts.Workers, "workers", "workers"),
		BuilderParallelism: resolveInt(cmd, opts.BuilderParallelism, "builder_parallelism", "builder-parallelism"),
		CompressionLevel:   resolveInt(cmd, opts.CompressionLevel, "compression_level", "compression-level"),
		SigningKey:         resolveString(cmd, opts.SigningKey, "signing_key", "signing-key"),
		GPGHomedir:         resolveString(cmd, opts.GPGHomedir, "gpg_homedir", "gpg-homedir"),
		Validation:         mode,
	}, nil
}

func configPath(cmd *cobra.Command) string {
	path := viper.GetString("config")
	if cmd != nil {
		if flag := cmd.Flag("config"); flag != nil && flag.Changed {
			path = flag.Value.String()
		}
	}
	if path == "" {
		return "config.toml"
	}
	return path
}

// openRuntime loads the configuration and builds the orchestrator without
// publish settings, for read-only commands.
func openRuntime(ctx context.Context, cmd *cobra.Command) (*app.Runtime, error) {
	return newAppService().Open(ctx, app.OpenRequest{ConfigPath: configPath(cmd), Workers: 1})
}
