package adapters

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/fluxcd/pkg/lockedfile"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"apt-archive/internal/ports"
	"apt-archive/internal/types"
)

type configFormat string

const (
	configFormatTOML configFormat = "toml"
	configFormatYAML configFormat = "yaml"
	configFormatJSON configFormat = "json"
)

// ConfigFileAdapter persists the Configuration as TOML, YAML or JSON,
// picked by file extension. Unknown extensions are treated as TOML.
type ConfigFileAdapter struct{}

func NewConfigFileAdapter() ConfigFileAdapter {
	return ConfigFileAdapter{}
}

// LoadOrCreate reads the configuration at path. When the file does not exist
// the default configuration is written there and returned. Concurrent
// callers, including other processes, are serialized through a lock file.
func (a ConfigFileAdapter) LoadOrCreate(path string) (types.Configuration, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return types.Configuration{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("config path is required")
	}
	format := configFormatFor(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return types.Configuration{}, configIOError("failed to create config directory", err)
	}
	unlock, err := lockedfile.MutexAt(path + ".lock").Lock()
	if err != nil {
		return types.Configuration{}, configIOError("failed to lock config file", err)
	}
	defer unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return a.create(path, format)
	}
	if err != nil {
		return types.Configuration{}, configIOError("failed to read config file", err)
	}
	cfg, err := decodeConfiguration(format, data)
	if err != nil {
		return types.Configuration{}, configParseError("failed to parse config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return types.Configuration{}, configParseError("config file does not conform to schema", err)
	}
	return cfg, nil
}

func (a ConfigFileAdapter) create(path string, format configFormat) (types.Configuration, error) {
	cfg, err := types.DefaultConfiguration()
	if err != nil {
		return types.Configuration{}, err
	}
	data, err := encodeConfiguration(format, cfg)
	if err != nil {
		return types.Configuration{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode default config").
			WithCause(err)
	}
	if err := atomicWriteFile(path, bytes.NewReader(data), 0644); err != nil {
		return types.Configuration{}, configIOError("failed to write default config file", err)
	}
	return cfg, nil
}

// EncodeConfiguration renders cfg in the format implied by path's extension.
func EncodeConfiguration(path string, cfg types.Configuration) ([]byte, error) {
	return encodeConfiguration(configFormatFor(path), cfg)
}

func configFormatFor(path string) configFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return configFormatYAML
	case ".json":
		return configFormatJSON
	default:
		return configFormatTOML
	}
}

func decodeConfiguration(format configFormat, data []byte) (types.Configuration, error) {
	var cfg types.Configuration
	switch format {
	case configFormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return types.Configuration{}, err
		}
	case configFormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return types.Configuration{}, err
		}
	case configFormatTOML:
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return types.Configuration{}, err
		}
	default:
		return types.Configuration{}, fmt.Errorf("unsupported config format %q", format)
	}
	return cfg, nil
}

func encodeConfiguration(format configFormat, cfg types.Configuration) ([]byte, error) {
	switch format {
	case configFormatYAML:
		return yaml.Marshal(cfg)
	case configFormatJSON:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case configFormatTOML:
		return toml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
}

func configIOError(msg string, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(msg).
		WithCause(cause)
}

func configParseError(msg string, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(msg).
		WithCause(cause)
}

var _ ports.ConfigStorePort = ConfigFileAdapter{}
