package imagesource

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type FileStrategy struct {
	// baseDir is the root directory under which file URLs are allowed.
	baseDir string
	// unrestricted allows any path. The zero value rejects everything.
	unrestricted bool
}

// NewFileStrategy constructs a strategy for file:// URLs and bare paths.
// An empty baseDir allows any readable path.
func NewFileStrategy(baseDir string) *FileStrategy {
	if strings.TrimSpace(baseDir) == "" {
		return &FileStrategy{unrestricted: true}
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		// fail closed
		return &FileStrategy{}
	}
	return &FileStrategy{baseDir: filepath.Clean(absBase)}
}

func (s *FileStrategy) Name() string {
	return "file"
}

func (s *FileStrategy) Match(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, "file")
}

func (s *FileStrategy) Fetch(_ context.Context, u *url.URL) ([]byte, error) {
	if host := strings.TrimSpace(u.Host); host != "" && !strings.EqualFold(host, "localhost") {
		return nil, fmt.Errorf("unsupported file URL host %q", host)
	}
	if u.Path == "" {
		return nil, fmt.Errorf("file URL path is empty")
	}

	path := filepath.Clean(filepath.FromSlash(u.Path))
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("file URL path must be absolute")
	}

	if s.unrestricted {
		return readFile(path)
	}
	if s.baseDir == "" {
		return nil, fmt.Errorf("file strategy has no base directory configured")
	}

	// Symlinks are resolved on both sides so a link inside baseDir cannot
	// point outside it.
	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve symlinks for file path %q: %w", path, err)
	}
	realBase, err := filepath.EvalSymlinks(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve symlinks for base directory %q: %w", s.baseDir, err)
	}

	relPath, err := filepath.Rel(filepath.Clean(realBase), filepath.Clean(realPath))
	if err != nil {
		return nil, fmt.Errorf("cannot compute relative path from %q to %q: %w", realBase, realPath, err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(os.PathSeparator)) || filepath.IsAbs(relPath) {
		return nil, fmt.Errorf("file path %q is outside the allowed directory", path)
	}

	return readFile(filepath.Join(realBase, relPath))
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %q: %w", path, err)
	}
	return data, nil
}
