// Package projectfs provides root-confined filesystem access for a project.
//
// All paths are root-relative URL paths ("/src/app.ts"); they are mapped
// onto the project directory and may never escape it.
package projectfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProjectFS reads files under a single project root.
type ProjectFS struct {
	root string
}

// New creates a ProjectFS rooted at dir.
func New(dir string) *ProjectFS {
	return &ProjectFS{root: dir}
}

// Root returns the project root directory.
func (p *ProjectFS) Root() string {
	return p.root
}

// Access reports whether path exists under the project root.
// A miss is an expected probe signal, so no error is surfaced.
func (p *ProjectFS) Access(ctx context.Context, path string) bool {
	if ctx.Err() != nil {
		return false
	}
	full, err := p.abs(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// ReadFile reads the contents of path under the project root.
//
// Parameters:
//   - ctx: Context for cancellation
//   - path: Root-relative URL path of the file
//
// Returns:
//   - []byte: The file contents
//   - error: os.ErrNotExist-wrapping error when the file is absent
func (p *ProjectFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := p.abs(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// abs maps a root-relative URL path onto the project directory, rejecting
// any path that would escape the root after cleaning.
func (p *ProjectFS) abs(path string) (string, error) {
	cleaned := filepath.Clean("/" + strings.TrimPrefix(path, "/"))
	full := filepath.Join(p.root, filepath.FromSlash(cleaned))
	if full != p.root && !strings.HasPrefix(full, p.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes project root", path)
	}
	return full, nil
}
