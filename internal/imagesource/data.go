package imagesource

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// DataURLStrategy decodes base64 data: URLs.
type DataURLStrategy struct{}

func (DataURLStrategy) Name() string {
	return "data"
}

func (DataURLStrategy) Match(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, "data")
}

func (DataURLStrategy) Fetch(_ context.Context, u *url.URL) ([]byte, error) {
	meta, payload, ok := strings.Cut(u.Opaque, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data URL must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	return data, nil
}
