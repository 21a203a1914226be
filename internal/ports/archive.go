package ports

import (
	"context"
	"io"

	"apt-archive/internal/types"
)

// ArchiveReaderPort reads files relative to an archive root.
type ArchiveReaderPort interface {
	// List returns the regular files below dir, relative to the archive
	// root and sorted. A missing dir yields an empty list.
	List(ctx context.Context, dir string) ([]string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ArchiveWriterPort writes files relative to an archive root. Writes replace
// the target atomically.
type ArchiveWriterPort interface {
	Write(ctx context.Context, path string, content io.Reader) error
}

type PublishOptions struct {
	CompressionLevel int
	SigningKey       string
}

// ArchiveBuilderPort generates, signs and writes the index files of one
// repository below distributionDir. Implementations block until done.
type ArchiveBuilderPort interface {
	Publish(ctx context.Context, definition types.RepositoryDefinition, distributionDir string, writer ArchiveWriterPort, reader ArchiveReaderPort, options PublishOptions) error
}

type SignerPort interface {
	ClearSign(ctx context.Context, key string, content []byte) ([]byte, error)
	DetachSign(ctx context.Context, key string, content []byte) ([]byte, error)
}

// ArchivePort is an archive root that can be read anywhere and hands out
// writers restricted to one subtree.
type ArchivePort interface {
	ArchiveReaderPort
	WriterFor(scope string) ArchiveWriterPort
}
