// Package resolve maps request paths to files under a served root directory.
package resolve

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/text/unicode/norm"
)

// IndexFile is served for the root path.
const IndexFile = "index.html"

var (
	// ErrOutsideRoot is returned when a path would resolve above the root directory.
	ErrOutsideRoot = errors.New("path escapes root directory")
	// ErrInvalidPath is returned for paths that can never name a file.
	ErrInvalidPath = errors.New("invalid path")
)

// Resolver turns request paths into filesystem paths confined to Root.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	root string
}

// New creates a Resolver for dir. The directory must exist; it is made
// absolute and its symlinks are evaluated so containment checks compare
// canonical paths.
func New(dir string) (*Resolver, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", dir, err)
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("resolve root %q: not a directory", dir)
	}
	return &Resolver{root: abs}, nil
}

// Root returns the canonical root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the filesystem path for the decoded request path p.
// "/" maps to IndexFile. The result is always root itself or a descendant of
// it; the file is not required to exist. When p names nothing on disk, its
// NFC form is tried before giving up.
func (r *Resolver) Resolve(p string) (string, error) {
	if strings.IndexByte(p, 0) >= 0 {
		return "", fmt.Errorf("%w: contains NUL byte", ErrInvalidPath)
	}
	if p == "/" {
		p = "/" + IndexFile
	}

	full, found, err := r.lookup(p)
	if err != nil || found {
		return full, err
	}
	if nfc := norm.NFC.String(p); nfc != p {
		alt, found, err := r.lookup(nfc)
		if err != nil {
			return "", err
		}
		if found {
			return alt, nil
		}
	}
	return full, nil
}

// lookup joins p under root and evaluates its symlinks. A path that does not
// exist is returned unevaluated with found set to false.
func (r *Resolver) lookup(p string) (path string, found bool, err error) {
	// Join the unrooted form so ".." is caught by the containment check
	// rather than clamped at "/".
	rel := strings.TrimLeft(p, "/")
	full := filepath.Join(r.root, filepath.FromSlash(rel))
	if !r.contains(full) {
		return "", false, fmt.Errorf("%w: %q", ErrOutsideRoot, p)
	}

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return full, false, nil
		}
		return "", false, fmt.Errorf("resolve %q: %w", p, err)
	}
	if !r.contains(resolved) {
		return "", false, fmt.Errorf("%w: %q links to %q", ErrOutsideRoot, p, resolved)
	}
	return resolved, true, nil
}

// File returns the path of a named file directly under root, such as an
// error page.
func (r *Resolver) File(name string) string {
	return filepath.Join(r.root, name)
}

func (r *Resolver) contains(p string) bool {
	rel, err := filepath.Rel(r.root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
