package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

type ListenAddress struct {
	Host string `json:"host" toml:"host" yaml:"host"`
	Port uint16 `json:"port" toml:"port" yaml:"port"`
}

func (a ListenAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// Configuration is loaded once at startup and never mutated afterwards.
type Configuration struct {
	Repositories    []RepositoryDefinition `json:"repositories" toml:"repositories" yaml:"repositories"`
	ArchiveRootPath string                 `json:"archiveRootPath" toml:"archiveRootPath" yaml:"archiveRootPath"`
	ListenAddress   ListenAddress          `json:"listenAddress" toml:"listenAddress" yaml:"listenAddress"`
}

const (
	DefaultArchiveRootPath = "archive"
	DefaultListenHost      = "0.0.0.0"
	DefaultListenPort      = 3000
)

// configurationField pairs the default of one Configuration field with the
// rule any loaded or synthesized value must satisfy.
type configurationField struct {
	Name     string
	Default  func(*Configuration)
	Validate func(Configuration) error
}

var configurationFields = []configurationField{
	{
		Name: "repositories",
		Default: func(c *Configuration) {
			c.Repositories = []RepositoryDefinition{DefaultRepository()}
		},
		Validate: validateRepositories,
	},
	{
		Name: "archiveRootPath",
		Default: func(c *Configuration) {
			c.ArchiveRootPath = DefaultArchiveRootPath
		},
		Validate: func(c Configuration) error {
			if strings.TrimSpace(c.ArchiveRootPath) == "" {
				return invalidConfiguration("archiveRootPath must not be empty")
			}
			return nil
		},
	},
	{
		Name: "listenAddress",
		Default: func(c *Configuration) {
			c.ListenAddress = ListenAddress{Host: DefaultListenHost, Port: DefaultListenPort}
		},
		Validate: func(c Configuration) error {
			if c.ListenAddress.Port == 0 {
				return invalidConfiguration("listenAddress.port must not be zero")
			}
			return nil
		},
	},
}

// DefaultConfiguration builds the configuration used when none has been
// persisted yet. The result is validated with the same rules as a loaded one.
func DefaultConfiguration() (Configuration, error) {
	cfg := Configuration{}
	for _, field := range configurationFields {
		field.Default(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

func (c Configuration) Validate() error {
	for _, field := range configurationFields {
		if err := field.Validate(c); err != nil {
			return err
		}
	}
	return nil
}

func validateRepositories(c Configuration) error {
	if len(c.Repositories) == 0 {
		return invalidConfiguration("repositories must not be empty")
	}
	seen := map[string]struct{}{}
	for i, repo := range c.Repositories {
		name := strings.TrimSpace(repo.Name)
		if name == "" {
			return invalidConfiguration(fmt.Sprintf("repositories[%d].name must not be empty", i))
		}
		if name != repo.Name || !validRepositoryName(name) {
			return invalidConfiguration(fmt.Sprintf("repository %q has an invalid name", repo.Name))
		}
		if _, ok := seen[name]; ok {
			return invalidConfiguration(fmt.Sprintf("repository %q is defined more than once", name))
		}
		seen[name] = struct{}{}
		if len(repo.Architectures) == 0 {
			return invalidConfiguration(fmt.Sprintf("repository %q has no architectures", name))
		}
		if len(repo.Components) == 0 {
			return invalidConfiguration(fmt.Sprintf("repository %q has no components", name))
		}
	}
	return nil
}

// Names become path elements under dists/, so separators and dot entries are
// rejected.
func validRepositoryName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

func invalidConfiguration(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(msg)
}
