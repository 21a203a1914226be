package adapters

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"apt-archive/internal/ports"
	"apt-archive/internal/shared"
)

// GPGSignerAdapter signs Release files with the gpg binary. Homedir is
// optional and defaults to gpg's own lookup.
type GPGSignerAdapter struct {
	Binary  string
	Homedir string
}

func NewGPGSignerAdapter(homedir string) GPGSignerAdapter {
	return GPGSignerAdapter{Binary: "gpg", Homedir: homedir}
}

func (a GPGSignerAdapter) ClearSign(ctx context.Context, key string, content []byte) ([]byte, error) {
	return a.run(ctx, key, content, "--clearsign")
}

func (a GPGSignerAdapter) DetachSign(ctx context.Context, key string, content []byte) ([]byte, error) {
	return a.run(ctx, key, content, "--detach-sign", "--armor")
}

func (a GPGSignerAdapter) run(ctx context.Context, key string, content []byte, mode ...string) ([]byte, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("signing key is empty")
	}
	binary := a.Binary
	if binary == "" {
		binary = "gpg"
	}
	args := []string{"--batch", "--yes", "--no-tty", "--digest-algo", "SHA512", "--local-user", key}
	if strings.TrimSpace(a.Homedir) != "" {
		args = append(args, "--homedir", a.Homedir)
	}
	args = append(args, mode...)
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = bytes.NewReader(content)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("gpg signing failed").
			WithCause(shared.CommandError(stderr.Bytes(), err))
	}
	return stdout.Bytes(), nil
}

var _ ports.SignerPort = GPGSignerAdapter{}
