package imagesource

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/ansg191/deepdoc-vision/internal/resource"
)

type S3Strategy struct {
	client func() (resource.S3API, error)
}

// NewS3Strategy reads s3:// URLs with client, or with a client built from
// the default AWS config on first use when client is nil.
func NewS3Strategy(client resource.S3API) *S3Strategy {
	if client != nil {
		return &S3Strategy{client: func() (resource.S3API, error) { return client, nil }}
	}
	return &S3Strategy{client: sync.OnceValues(func() (resource.S3API, error) {
		return resource.NewS3Client(context.Background())
	})}
}

func (s *S3Strategy) Name() string {
	return "s3"
}

func (s *S3Strategy) Match(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, "s3")
}

func (s *S3Strategy) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	client, err := s.client()
	if err != nil {
		return nil, err
	}
	return resource.ReadS3Object(ctx, client, u.String())
}
