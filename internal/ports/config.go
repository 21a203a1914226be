package ports

import "apt-archive/internal/types"

type ConfigStorePort interface {
	LoadOrCreate(path string) (types.Configuration, error)
}
