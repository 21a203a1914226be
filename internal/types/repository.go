package types

import "slices"

// RepositoryDefinition describes one named package repository: which
// architectures and components get index files, and the suite/codename
// written into its Release file.
type RepositoryDefinition struct {
	Name          string   `json:"name" toml:"name" yaml:"name"`
	Architectures []string `json:"architectures" toml:"architectures" yaml:"architectures"`
	Components    []string `json:"components" toml:"components" yaml:"components"`
	Suite         string   `json:"suite" toml:"suite" yaml:"suite"`
	Codename      string   `json:"codename" toml:"codename" yaml:"codename"`
}

func (r RepositoryDefinition) Equal(other RepositoryDefinition) bool {
	return r.Name == other.Name &&
		r.Suite == other.Suite &&
		r.Codename == other.Codename &&
		slices.Equal(r.Architectures, other.Architectures) &&
		slices.Equal(r.Components, other.Components)
}

// Clone returns a copy that shares no slices with r.
func (r RepositoryDefinition) Clone() RepositoryDefinition {
	r.Architectures = slices.Clone(r.Architectures)
	r.Components = slices.Clone(r.Components)
	return r
}

func DefaultRepository() RepositoryDefinition {
	return RepositoryDefinition{
		Name:          "stable",
		Architectures: []string{"amd64", "arm64"},
		Components:    []string{"main", "contrib"},
		Suite:         "stable",
		Codename:      "buster",
	}
}
