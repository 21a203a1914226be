package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	securejoin "github.com/cyphar/filepath-securejoin"

	"apt-archive/internal/ports"
)

// FilesystemArchive reads and writes archive files below Root. Paths are
// always relative to Root and resolved with securejoin, so neither ".." nor
// symlinks can escape it. A non-empty Scope further restricts writes to that
// subtree.
type FilesystemArchive struct {
	Root  string
	Scope string
}

func NewFilesystemArchive(root string) FilesystemArchive {
	return FilesystemArchive{Root: root}
}

// Scoped returns a copy of a that only accepts writes below scope.
func (a FilesystemArchive) Scoped(scope string) FilesystemArchive {
	a.Scope = path.Clean(filepath.ToSlash(scope))
	return a
}

func (a FilesystemArchive) WriterFor(scope string) ports.ArchiveWriterPort {
	return a.Scoped(scope)
}

func (a FilesystemArchive) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := cleanRelative(dir); err != nil {
		return nil, err
	}
	full, err := a.localPath(dir)
	if err != nil {
		return nil, err
	}
	root := filepath.Clean(a.Root)
	var files []string
	err = filepath.WalkDir(full, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to list archive directory").
			WithCause(err)
	}
	return files, nil
}

func (a FilesystemArchive) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := cleanRelative(name); err != nil {
		return nil, err
	}
	full, err := a.localPath(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("archive file %s not found", name))
	}
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open archive file").
			WithCause(err)
	}
	return file, nil
}

func (a FilesystemArchive) Write(ctx context.Context, name string, content io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanRelative(name)
	if err != nil {
		return err
	}
	if a.Scope != "" && a.Scope != "." && clean != a.Scope && !strings.HasPrefix(clean, a.Scope+"/") {
		return errbuilder.New().
			WithCode(errbuilder.CodePermissionDenied).
			WithMsg(fmt.Sprintf("archive path %s is outside %s", clean, a.Scope))
	}
	full, err := a.localPath(clean)
	if err != nil {
		return err
	}
	if err := atomicWriteFile(full, content, 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write archive file").
			WithCause(err)
	}
	return nil
}

func (a FilesystemArchive) localPath(name string) (string, error) {
	if strings.TrimSpace(a.Root) == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("archive root is empty")
	}
	full, err := securejoin.SecureJoin(a.Root, name)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid archive path").
			WithCause(err)
	}
	return full, nil
}

func cleanRelative(name string) (string, error) {
	slashed := filepath.ToSlash(strings.TrimSpace(name))
	clean := path.Clean(slashed)
	if slashed == "" || path.IsAbs(slashed) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("archive path %q must be relative to the archive root", name))
	}
	return clean, nil
}

var (
	_ ports.ArchivePort       = FilesystemArchive{}
	_ ports.ArchiveWriterPort = FilesystemArchive{}
)
