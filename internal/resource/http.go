package resource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultHTTPBaseURL serves resource archives under <path>.zip.
const DefaultHTTPBaseURL = "https://raw.githubusercontent.com/nltk/nltk_data/gh-pages/packages"

type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, res Resource) (io.ReadCloser, error) {
	base := f.BaseURL
	if base == "" {
		base = DefaultHTTPBaseURL
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	url := strings.TrimRight(base, "/") + "/" + res.archive()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp.Body, nil
}
