package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"apt-archive/internal/adapters"
)

func newRepositoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repositories",
		Short: "List configured repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepositories(cmd.Context(), cmd)
		},
	}
}

func runRepositories(ctx context.Context, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runtime, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = runtime.Close(ctx) }()

	for _, repo := range runtime.Repositories() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tsuite=%s\tcodename=%s\tarchitectures=%s\tcomponents=%s\n",
			repo.Name,
			repo.Suite,
			repo.Codename,
			strings.Join(repo.Architectures, ","),
			strings.Join(repo.Components, ","),
		)
	}
	return nil
}

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective repository configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfig(cmd.Context(), cmd)
		},
	}
}

func runConfig(ctx context.Context, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runtime, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = runtime.Close(ctx) }()

	data, err := adapters.EncodeConfiguration("config.toml", runtime.Configuration())
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
