package adapters

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/blakesmith/ar"

	"apt-archive/internal/types"
)

// readDebControl extracts the control stanza of a binary package. A .deb is
// an ar archive whose control.tar[.gz|.xz|.zst] member holds ./control. r is
// read past the control member; callers hashing the package drain it after.
func readDebControl(r io.Reader) ([]types.ControlField, error) {
	buffered := bufio.NewReader(r)
	magic, err := buffered.Peek(len(ar.GLOBAL_HEADER))
	if err != nil || string(magic) != ar.GLOBAL_HEADER {
		return nil, invalidDeb("missing ar signature", err)
	}
	members := ar.NewReader(buffered)
	for {
		header, err := members.Next()
		if errors.Is(err, io.EOF) {
			return nil, invalidDeb("control member not found", nil)
		}
		if err != nil {
			return nil, invalidDeb("corrupt ar archive", err)
		}
		name := strings.TrimSuffix(strings.TrimSpace(header.Name), "/")
		if !strings.HasPrefix(name, "control.tar") {
			continue
		}
		compression, ok := compressionForExtension(strings.TrimPrefix(name, "control.tar"))
		if !ok {
			return nil, invalidDeb(fmt.Sprintf("unsupported control member %s", name), nil)
		}
		return readControlTar(members, compression)
	}
}

func readControlTar(r io.Reader, compression Compression) ([]types.ControlField, error) {
	decoded, closeDecoder, err := compression.Decompress(r)
	if err != nil {
		return nil, invalidDeb("failed to decompress control member", err)
	}
	defer closeDecoder()
	archive := tar.NewReader(decoded)
	for {
		hdr, err := archive.Next()
		if errors.Is(err, io.EOF) {
			return nil, invalidDeb("control file missing from control member", nil)
		}
		if err != nil {
			return nil, invalidDeb("corrupt control member", err)
		}
		if hdr.Typeflag != tar.TypeReg || path.Clean(hdr.Name) != "control" {
			continue
		}
		return parseControlStanza(archive)
	}
}

// parseControlStanza parses the first stanza of a deb822 document.
// Continuation lines are kept verbatim, including their leading whitespace.
func parseControlStanza(r io.Reader) ([]types.ControlField, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var fields []types.ControlField
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if len(fields) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if len(fields) == 0 {
				return nil, invalidDeb("continuation line before first field", nil)
			}
			fields[len(fields)-1].Value += "\n" + line
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, invalidDeb(fmt.Sprintf("malformed control line %q", line), nil)
		}
		fields = append(fields, types.ControlField{
			Key:   strings.TrimSpace(key),
			Value: strings.TrimSpace(value),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, invalidDeb("failed to read control file", err)
	}
	if len(fields) == 0 {
		return nil, invalidDeb("control file is empty", nil)
	}
	return fields, nil
}

func invalidDeb(msg string, cause error) error {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(msg)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return builder
}
