package ports

import "context"

// ProgramLibrary serves trusted program files that submissions may load.
type ProgramLibrary interface {
	Index(ctx context.Context) ([]byte, error)
	File(ctx context.Context, path string) ([]byte, error)
	// Resolve returns the absolute path and source of a library file.
	Resolve(ctx context.Context, path string) (string, []byte, error)
}
