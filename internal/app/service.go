package app

import (
	"time"

	"apt-archive/internal/adapters"
	"apt-archive/internal/ports"
)

type Service struct {
	ConfigStore ports.ConfigStorePort
	NewArchive  func(root string) ports.ArchivePort
	NewBuilder  func(signer ports.SignerPort, parallelism int) ports.ArchiveBuilderPort
	NewSigner   func(homedir string) ports.SignerPort
	Clock       func() time.Time
}

func NewService() Service {
	return Service{
		ConfigStore: adapters.NewConfigFileAdapter(),
		NewArchive: func(root string) ports.ArchivePort {
			return adapters.NewFilesystemArchive(root)
		},
		NewBuilder: func(signer ports.SignerPort, parallelism int) ports.ArchiveBuilderPort {
			return adapters.NewDebianArchiveBuilder(signer, parallelism)
		},
		NewSigner: func(homedir string) ports.SignerPort {
			return adapters.NewGPGSignerAdapter(homedir)
		},
		Clock: time.Now,
	}
}
