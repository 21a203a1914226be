package core

import (
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"apt-archive/internal/types"
)

// Registry is a read-only snapshot of the configured repositories. It is
// built once at startup; there are no mutation methods.
type Registry struct {
	byName  map[string]types.RepositoryDefinition
	ordered []string
}

func NewRegistry(cfg types.Configuration) (*Registry, error) {
	registry := &Registry{
		byName:  make(map[string]types.RepositoryDefinition, len(cfg.Repositories)),
		ordered: make([]string, 0, len(cfg.Repositories)),
	}
	for _, repo := range cfg.Repositories {
		if _, ok := registry.byName[repo.Name]; ok {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("repository %q is defined more than once", repo.Name))
		}
		registry.byName[repo.Name] = repo.Clone()
		registry.ordered = append(registry.ordered, repo.Name)
	}
	return registry, nil
}

func (r *Registry) Lookup(name string) (types.RepositoryDefinition, bool) {
	repo, ok := r.byName[name]
	if !ok {
		return types.RepositoryDefinition{}, false
	}
	return repo.Clone(), true
}

// All returns the definitions in configuration order.
func (r *Registry) All() []types.RepositoryDefinition {
	out := make([]types.RepositoryDefinition, 0, len(r.ordered))
	for _, name := range r.ordered {
		out = append(out, r.byName[name].Clone())
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.ordered)
}
