// Package imagesource turns user input (a path, file://, s3://, http(s)://
// or data: URL) into image bytes.
package imagesource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned when no strategy accepts the input.
var ErrUnsupported = errors.New("unsupported image source")

type Strategy interface {
	// Name returns a short source identifier (for example "s3" or "file").
	Name() string
	// Match reports whether this strategy can resolve a given URL.
	Match(u *url.URL) bool
	// Fetch returns the image bytes the URL points at.
	Fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// Resolver picks a matching strategy for each input.
type Resolver struct {
	strategies []Strategy
}

// NewResolver builds a Resolver with the provided strategies in order.
func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// NewDefaultResolver returns every built-in strategy. Local files are
// confined to baseDir unless it is empty.
func NewDefaultResolver(baseDir string) *Resolver {
	return NewResolver(
		NewFileStrategy(baseDir),
		NewS3Strategy(nil),
		NewHTTPStrategy(nil),
		DataURLStrategy{},
	)
}

// Resolve fetches the image named by input. Inputs without a scheme are
// treated as local paths.
func (r *Resolver) Resolve(ctx context.Context, input string) ([]byte, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, fmt.Errorf("image input is empty")
	}

	u, err := parseInput(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid image input %q: %w", trimmed, err)
	}

	for _, strategy := range r.strategies {
		if !strategy.Match(u) {
			continue
		}
		data, err := strategy.Fetch(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("%s strategy failed: %w", strategy.Name(), err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%s strategy returned an empty image", strategy.Name())
		}
		return data, nil
	}

	return nil, fmt.Errorf("%w: scheme %q", ErrUnsupported, u.Scheme)
}

func parseInput(raw string) (*url.URL, error) {
	if !strings.Contains(raw, ":") || filepath.VolumeName(raw) != "" {
		return pathURL(raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		return pathURL(raw)
	}
	return u, nil
}

func pathURL(path string) (*url.URL, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
}
