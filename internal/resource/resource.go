// Package resource makes sure auxiliary data files (tokenizer models and
// the like) are present on disk before the parsers that need them start.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Resource is one data package. Path is relative to the Ensurer's
// directory; the package counts as present when Path or Path+".zip" exists.
type Resource struct {
	Path string
	Name string
}

var (
	Punkt   = Resource{Path: "tokenizers/punkt", Name: "punkt"}
	Wordnet = Resource{Path: "corpora/wordnet", Name: "wordnet"}
)

func (r Resource) archive() string {
	return r.Path + ".zip"
}

// Fetcher downloads the archive of a resource.
type Fetcher interface {
	Fetch(ctx context.Context, res Resource) (io.ReadCloser, error)
}

// Ensurer downloads missing resources into Dir, at most once per resource
// name for its lifetime. A failed download is not retried. It is safe for
// concurrent use.
type Ensurer struct {
	Dir     string
	Fetcher Fetcher

	mu        sync.Mutex
	attempted map[string]bool
}

func NewEnsurer(dir string, fetcher Fetcher) *Ensurer {
	return &Ensurer{Dir: dir, Fetcher: fetcher}
}

// Ensure reports whether res is available, downloading it if needed.
func (e *Ensurer) Ensure(ctx context.Context, res Resource) error {
	if e.present(res) {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.present(res) {
		return nil
	}
	if e.attempted[res.Name] {
		return fmt.Errorf("resource %s: download already attempted", res.Name)
	}
	if e.attempted == nil {
		e.attempted = make(map[string]bool)
	}
	e.attempted[res.Name] = true

	slog.Info("downloading resource", "name", res.Name, "dir", e.Dir)
	if err := e.download(ctx, res); err != nil {
		slog.Warn("failed to download resource", "name", res.Name, "error", err)
		return fmt.Errorf("resource %s: %w", res.Name, err)
	}
	return nil
}

// EnsureAll ensures every resource and reports all missing download names
// in one error.
func (e *Ensurer) EnsureAll(ctx context.Context, resources ...Resource) error {
	var missing []string
	var errs []error
	for _, res := range resources {
		if err := e.Ensure(ctx, res); err != nil {
			missing = append(missing, res.Name)
			errs = append(errs, err)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingError{Names: missing, Err: errors.Join(errs...)}
}

type MissingError struct {
	Names []string
	Err   error
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("failed to download required resources: %s", strings.Join(e.Names, ", "))
}

func (e *MissingError) Unwrap() error {
	return e.Err
}

func (e *Ensurer) present(res Resource) bool {
	for _, p := range []string{res.Path, res.archive()} {
		if _, err := os.Stat(filepath.Join(e.Dir, filepath.FromSlash(p))); err == nil {
			return true
		}
	}
	return false
}

func (e *Ensurer) download(ctx context.Context, res Resource) error {
	if e.Fetcher == nil {
		return errors.New("no fetcher configured")
	}
	body, err := e.Fetcher.Fetch(ctx, res)
	if err != nil {
		return err
	}
	defer body.Close()

	dst := filepath.Join(e.Dir, filepath.FromSlash(res.archive()))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
