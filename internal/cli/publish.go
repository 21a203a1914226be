package cli

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"apt-archive/internal/app"
	"apt-archive/internal/shared"
	"apt-archive/internal/types"
)

type publishOptions struct {
	runtimeOptions
}

func newPublishCommand() *cobra.Command {
	opts := publishOptions{}
	cmd := &cobra.Command{
		Use:   "publish [repository...]",
		Short: "Publish repository indexes once, without starting the server",
		Long:  "Publish the named repositories, or every configured repository when none is named.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), cmd, args, opts)
		},
	}
	addRuntimeFlags(cmd, &opts.runtimeOptions)
	return cmd
}

func runPublish(ctx context.Context, cmd *cobra.Command, names []string, opts publishOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = log.Logger.WithContext(ctx)

	req, err := openRequest(cmd, opts.runtimeOptions)
	if err != nil {
		return err
	}
	runtime, err := newAppService().Open(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = runtime.Close(context.WithoutCancel(ctx)) }()

	result, err := runtime.Publish(ctx, app.PublishRequest{
		Names:      shared.CleanNames(names),
		Validation: req.Validation,
	})
	if err != nil {
		return err
	}
	for _, outcome := range result.Outcomes {
		fmt.Fprintln(cmd.OutOrStdout(), formatOutcome(outcome))
	}
	if result.Failed > 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("%d of %d repositories failed to publish", result.Failed, len(result.Outcomes)))
	}
	return nil
}

func formatOutcome(outcome types.PublishOutcome) string {
	if outcome.Error != nil {
		return fmt.Sprintf("%s\t%s\t%s: %s", outcome.Repository, outcome.State, outcome.Error.Kind, outcome.Error.Message)
	}
	return fmt.Sprintf("%s\t%s\t%s", outcome.Repository, outcome.State, outcome.DistributionPath)
}
