// Package programs exposes the trusted program library to HTTP callers.
package programs

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"agentbridge/internal/app/ports"
)

var ErrInvalidRequest = errors.New("invalid program request")

type UseCase struct {
	Library ports.ProgramLibrary
}

func (u UseCase) Index(ctx context.Context) ([]byte, error) {
	if u.Library == nil {
		return nil, ports.ErrNotFound
	}
	return u.Library.Index(ctx)
}

func (u UseCase) File(ctx context.Context, path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrInvalidRequest
	}
	if u.Library == nil {
		return nil, ports.ErrNotFound
	}
	b, err := u.Library.File(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ports.ErrNotFound
	}
	return b, err
}
