package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"apt-archive/internal/core"
	"apt-archive/internal/ports"
	"apt-archive/internal/types"
)

// Runtime is an opened service: the loaded configuration and the
// orchestrator built from it. Close releases the worker pool.
type Runtime struct {
	config       types.Configuration
	registry     *core.Registry
	orchestrator *core.Orchestrator
}

func (s Service) Open(ctx context.Context, req OpenRequest) (*Runtime, error) {
	configPath := strings.TrimSpace(req.ConfigPath)
	if configPath == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("config path is required")
	}
	cfg, err := s.ConfigStore.LoadOrCreate(configPath)
	if err != nil {
		return nil, err
	}
	registry, err := core.NewRegistry(cfg)
	if err != nil {
		return nil, err
	}

	archiveRoot := cfg.ArchiveRootPath
	if !filepath.IsAbs(archiveRoot) {
		archiveRoot = filepath.Join(filepath.Dir(configPath), archiveRoot)
	}

	var signer ports.SignerPort
	if strings.TrimSpace(req.SigningKey) != "" {
		signer = s.NewSigner(req.GPGHomedir)
	}
	pool := core.NewBlockingPool(req.Workers)
	orchestrator := core.NewOrchestrator(
		registry,
		s.NewBuilder(signer, req.BuilderParallelism),
		s.NewArchive(archiveRoot),
		archiveRoot,
		core.NewRepositoryLocks(),
		pool,
		ports.PublishOptions{
			CompressionLevel: req.CompressionLevel,
			SigningKey:       strings.TrimSpace(req.SigningKey),
		},
	)
	if req.Validation != "" {
		orchestrator.Mode = req.Validation
	}
	if s.Clock != nil {
		orchestrator.Clock = s.Clock
	}

	log.Ctx(ctx).Debug().
		Str("config", configPath).
		Str("archive_root", archiveRoot).
		Int("repositories", registry.Len()).
		Int("workers", pool.Size()).
		Msg("service opened")

	return &Runtime{config: cfg, registry: registry, orchestrator: orchestrator}, nil
}

func (r *Runtime) Configuration() types.Configuration {
	cfg := r.config
	cfg.Repositories = r.registry.All()
	return cfg
}

func (r *Runtime) Repositories() []types.RepositoryDefinition {
	return r.registry.All()
}

func (r *Runtime) Repository(name string) (types.RepositoryDefinition, error) {
	repo, ok := r.registry.Lookup(name)
	if !ok {
		return types.RepositoryDefinition{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("repository %q is not configured", name))
	}
	return repo, nil
}

func (r *Runtime) PublishBatch(ctx context.Context, requested []types.RepositoryDefinition, mode types.ValidationMode) ([]types.PublishOutcome, error) {
	return r.orchestrator.PublishBatchWithMode(ctx, requested, mode)
}

// Publish publishes the named repositories, or all of them when no name is
// given. Unknown names are rejected before anything runs.
func (r *Runtime) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	requested, err := r.definitionsFor(req.Names, req.Validation)
	if err != nil {
		return PublishResult{}, err
	}
	outcomes, err := r.orchestrator.PublishBatchWithMode(ctx, requested, req.Validation)
	if err != nil {
		return PublishResult{}, err
	}
	result := PublishResult{Outcomes: outcomes}
	for _, outcome := range outcomes {
		if !outcome.Succeeded() {
			result.Failed++
		}
	}
	return result, nil
}

func (r *Runtime) definitionsFor(names []string, mode types.ValidationMode) ([]types.RepositoryDefinition, error) {
	if len(names) == 0 {
		return r.registry.All(), nil
	}
	requested := make([]types.RepositoryDefinition, 0, len(names))
	var violations []core.ValidationViolation
	for _, name := range names {
		repo, ok := r.registry.Lookup(name)
		if !ok {
			violations = append(violations, core.ValidationViolation{Kind: types.ErrorKindUnknownRepository, Repository: name})
			if mode != types.ValidationModeFailComplete {
				break
			}
			continue
		}
		requested = append(requested, repo)
	}
	if len(violations) > 0 {
		return nil, &core.ValidationError{
			Kind:       violations[0].Kind,
			Repository: violations[0].Repository,
			Violations: violations,
		}
	}
	return requested, nil
}

func (r *Runtime) ListenAddress(override string) string {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override)
	}
	return r.config.ListenAddress.String()
}

func (r *Runtime) Close(ctx context.Context) error {
	return r.orchestrator.Pool.Close(ctx)
}
