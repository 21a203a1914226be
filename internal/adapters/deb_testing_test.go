package adapters

import (
	"archive/tar"
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/blakesmith/ar"
	"github.com/stretchr/testify/require"
)

type arMember struct {
	name string
	data []byte
}

func buildAr(t *testing.T, members ...arMember) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := ar.NewWriter(&buf)
	require.NoError(t, writer.WriteGlobalHeader())
	for _, member := range members {
		require.NoError(t, writer.WriteHeader(&ar.Header{
			Name:    member.name + "/",
			ModTime: time.Unix(0, 0),
			Mode:    0o644,
			Size:    int64(len(member.data)),
		}))
		_, err := writer.Write(member.data)
		require.NoError(t, err)
	}
	return buf.Bytes()
}

func buildTar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "./", Typeflag: tar.TypeDir, Mode: 0o755}))
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(content))}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

// buildTestDeb assembles a minimal binary package whose control member is
// compressed with compression.
func buildTestDeb(t *testing.T, control string, compression Compression) []byte {
	t.Helper()
	controlTar, err := compression.Compress(buildTar(t, map[string]string{"./control": control, "./md5sums": ""}), 6)
	require.NoError(t, err)
	dataTar, err := CompressionXZ.Compress(buildTar(t, map[string]string{"./usr/share/doc/x/copyright": "free"}), 6)
	require.NoError(t, err)
	return buildAr(t,
		arMember{name: "debian-binary", data: []byte("2.0\n")},
		arMember{name: "control.tar" + compression.Extension(), data: controlTar},
		arMember{name: "data.tar.xz", data: dataTar},
	)
}

func controlFor(pkg, version, arch string) string {
	return fmt.Sprintf("Package: %s\nVersion: %s\nArchitecture: %s\nMaintainer: Archive Team <archive@example.com>\nDescription: test package\n  with a long description\n .\n  second paragraph\n", pkg, version, arch)
}
