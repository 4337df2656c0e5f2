// Package staticlibrary serves program files from a directory on disk.
package staticlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"agentbridge/internal/app/ports"
)

const sourceExt = ".js"

type Provider struct {
	Root string
}

// Index returns index.json from the root, or a generated listing of the
// program files when the root has none.
func (p Provider) Index(_ context.Context) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(p.Root, "index.json"))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	names, err := p.list()
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"programs": names})
}

func (p Provider) File(_ context.Context, path string) ([]byte, error) {
	safePath, err := secureJoin(p.Root, path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(safePath)
}

// Resolve maps a program name to its absolute path and source. The .js
// extension is optional.
func (p Provider) Resolve(_ context.Context, name string) (string, []byte, error) {
	name = strings.TrimSpace(name)
	if name != "" && filepath.Ext(name) == "" {
		name += sourceExt
	}
	safePath, err := secureJoin(p.Root, name)
	if err != nil {
		return "", nil, err
	}
	src, err := os.ReadFile(safePath)
	if err != nil {
		return "", nil, err
	}
	return safePath, src, nil
}

func (p Provider) list() ([]string, error) {
	rootAbs, err := filepath.Abs(p.Root)
	if err != nil {
		return nil, err
	}
	names := []string{}
	err = filepath.WalkDir(rootAbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != sourceExt {
			return nil
		}
		rel, err := filepath.Rel(rootAbs, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(strings.TrimSuffix(rel, sourceExt)))
		return nil
	})
	sort.Strings(names)
	return names, err
}

var ErrInvalidProgramPath = fmt.Errorf("%w: program filepath", ports.ErrInvalidPath)

func secureJoin(root, rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", ErrInvalidProgramPath
	}
	if filepath.IsAbs(rel) {
		return "", ErrInvalidProgramPath
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	target := filepath.Clean(filepath.Join(rootAbs, rel))
	if target == rootAbs || !strings.HasPrefix(target, rootAbs+string(filepath.Separator)) {
		return "", ErrInvalidProgramPath
	}
	return target, nil
}
