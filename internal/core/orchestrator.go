package core

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"apt-archive/internal/ports"
	"apt-archive/internal/types"
)

// PublishRequestItem tracks one repository through a batch.
type PublishRequestItem struct {
	Definition       types.RepositoryDefinition
	DistributionDir  string
	DistributionPath string
	State            types.PublishState
	Err              error
	StartedAt        time.Time
	FinishedAt       time.Time
}

func (i *PublishRequestItem) start(now time.Time) {
	i.State = types.PublishStateRunning
	i.StartedAt = now
}

func (i *PublishRequestItem) finish(now time.Time, err error) {
	i.FinishedAt = now
	if i.StartedAt.IsZero() {
		i.StartedAt = now
	}
	if err != nil {
		i.State = types.PublishStateFailed
		i.Err = err
		return
	}
	i.State = types.PublishStateSucceeded
}

func (i *PublishRequestItem) Outcome() types.PublishOutcome {
	outcome := types.PublishOutcome{
		Repository:       i.Definition.Name,
		DistributionPath: i.DistributionPath,
		State:            i.State,
		StartedAt:        i.StartedAt,
		FinishedAt:       i.FinishedAt,
	}
	if i.Err != nil {
		outcome.Error = &types.OutcomeError{Kind: ErrorKindOf(i.Err), Message: i.Err.Error()}
	}
	return outcome
}

// DistributionDir is the archive-relative directory a repository's indexes
// are written to.
func DistributionDir(name string) string {
	return path.Join("dists", name)
}

type Orchestrator struct {
	Registry    *Registry
	Builder     ports.ArchiveBuilderPort
	Archive     ports.ArchivePort
	ArchiveRoot string
	Locks       *RepositoryLocks
	Pool        *BlockingPool
	Options     ports.PublishOptions
	Mode        types.ValidationMode
	Clock       func() time.Time
}

func NewOrchestrator(registry *Registry, builder ports.ArchiveBuilderPort, archive ports.ArchivePort, archiveRoot string, locks *RepositoryLocks, pool *BlockingPool, options ports.PublishOptions) *Orchestrator {
	return &Orchestrator{
		Registry:    registry,
		Builder:     builder,
		Archive:     archive,
		ArchiveRoot: archiveRoot,
		Locks:       locks,
		Pool:        pool,
		Options:     options,
		Mode:        types.ValidationModeFailFast,
		Clock:       time.Now,
	}
}

// PublishBatch validates and publishes requested with the orchestrator's
// default validation mode.
func (o *Orchestrator) PublishBatch(ctx context.Context, requested []types.RepositoryDefinition) ([]types.PublishOutcome, error) {
	return o.PublishBatchWithMode(ctx, requested, "")
}

// PublishBatchWithMode rejects the whole batch with a *ValidationError if any
// item is invalid. Otherwise every item is published independently and the
// outcomes are returned in request order; item failures are reported in the
// outcomes, never as the returned error.
func (o *Orchestrator) PublishBatchWithMode(ctx context.Context, requested []types.RepositoryDefinition, mode types.ValidationMode) ([]types.PublishOutcome, error) {
	if mode == "" {
		mode = o.mode()
	}
	if err := ValidateBatch(o.Registry, requested, mode); err != nil {
		return nil, err
	}
	if o.Pool.Closed() {
		return nil, &InternalError{Cause: ErrPoolClosed}
	}

	items := make([]*PublishRequestItem, 0, len(requested))
	for _, req := range requested {
		definition, _ := o.Registry.Lookup(req.Name)
		items = append(items, &PublishRequestItem{
			Definition:       definition,
			DistributionDir:  DistributionDir(definition.Name),
			DistributionPath: filepath.Join(o.ArchiveRoot, "dists", definition.Name),
			State:            types.PublishStatePending,
		})
	}

	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.execute(ctx, item)
		}()
	}
	wg.Wait()

	outcomes := make([]types.PublishOutcome, 0, len(items))
	for _, item := range items {
		outcomes = append(outcomes, item.Outcome())
	}
	return outcomes, nil
}

func (o *Orchestrator) execute(ctx context.Context, item *PublishRequestItem) {
	name := item.Definition.Name
	logger := log.Ctx(ctx).With().Str("repository", name).Logger()

	logger.Debug().Msg("waiting for repository lock")
	release, err := o.Locks.Acquire(ctx, name)
	if err != nil {
		item.finish(o.now(), err)
		logger.Warn().Err(err).Msg("publish cancelled while waiting for repository lock")
		return
	}
	defer release()

	item.start(o.now())
	logger.Info().Str("distribution", item.DistributionPath).Msg("publishing repository")

	writer := o.Archive.WriterFor(item.DistributionDir)
	err = o.Pool.Run(ctx, func(taskCtx context.Context) error {
		if err := o.Builder.Publish(taskCtx, item.Definition, item.DistributionDir, writer, o.Archive, o.Options); err != nil {
			return &BuildError{Repository: name, Cause: err}
		}
		return nil
	})
	item.finish(o.now(), err)

	if err != nil {
		logger.Error().Err(err).Str("kind", string(ErrorKindOf(err))).Msg("publish failed")
		return
	}
	logger.Info().Dur("took", item.FinishedAt.Sub(item.StartedAt)).Msg("publish succeeded")
}

func (o *Orchestrator) mode() types.ValidationMode {
	if o.Mode == "" {
		return types.ValidationModeFailFast
	}
	return o.Mode
}

func (o *Orchestrator) now() time.Time {
	if o.Clock == nil {
		return time.Now().UTC()
	}
	return o.Clock().UTC()
}

// ErrorKindOf classifies an item failure.
func ErrorKindOf(err error) types.ErrorKind {
	var validationErr *ValidationError
	var buildErr *BuildError
	var panicErr *PanicError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return validationErr.Kind
	case errors.As(err, &buildErr):
		return types.ErrorKindBuild
	case errors.As(err, &panicErr), errors.Is(err, ErrPoolClosed):
		return types.ErrorKindInternal
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.ErrorKindCancelled
	default:
		return types.ErrorKindInternal
	}
}
