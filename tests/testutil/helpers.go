// Package testutil provides shared test helpers used across integration,
// e2e, and unit test packages.
package testutil

import (
	"archive/tar"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blakesmith/ar"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// RepoRoot returns the absolute path to the repository root by walking
// up from the current working directory. It fails the test if the
// working directory cannot be determined.
func RepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(dir, "..", ".."))
}

// WriteFile writes content below dir, creating parent directories.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

// BuildDeb returns a minimal binary package with the given control stanza
// and an empty data member.
func BuildDeb(t *testing.T, control string) []byte {
	t.Helper()
	controlTar := gzipTar(t, map[string]string{"./control": control})
	dataTar := gzipTar(t, map[string]string{})

	var buf bytes.Buffer
	writer := ar.NewWriter(&buf)
	require.NoError(t, writer.WriteGlobalHeader())
	for _, member := range []struct {
		name string
		data []byte
	}{
		{name: "debian-binary", data: []byte("2.0\n")},
		{name: "control.tar.gz", data: controlTar},
		{name: "data.tar.gz", data: dataTar},
	} {
		require.NoError(t, writer.WriteHeader(&ar.Header{
			Name:    member.name,
			ModTime: time.Unix(0, 0),
			Mode:    0o644,
			Size:    int64(len(member.data)),
		}))
		_, err := writer.Write(member.data)
		require.NoError(t, err)
	}
	return buf.Bytes()
}

// Control renders a control stanza for a package with no dependencies.
func Control(pkg, version, arch string) string {
	return fmt.Sprintf("Package: %s\nVersion: %s\nArchitecture: %s\nMaintainer: Archive Team <archive@example.com>\nDescription: %s test package\n", pkg, version, arch, pkg)
}

func gzipTar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(content))}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
