package resource

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type countingFetcher struct {
	calls atomic.Int32
	fail  map[string]bool
}

func (f *countingFetcher) Fetch(_ context.Context, res Resource) (io.ReadCloser, error) {
	f.calls.Add(1)
	if f.fail[res.Name] {
		return nil, errors.New("network unreachable")
	}
	return io.NopCloser(strings.NewReader("zip:" + res.Name)), nil
}

func TestEnsure_DownloadsOnceUnderConcurrency(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{}
	e := NewEnsurer(t.TempDir(), fetcher)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.Ensure(context.Background(), Punkt); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}()
	}
	wg.Wait()

	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected 1 download, got %d", got)
	}
	data, err := os.ReadFile(filepath.Join(e.Dir, "tokenizers", "punkt.zip"))
	if err != nil {
		t.Fatalf("expected archive on disk, got %v", err)
	}
	if string(data) != "zip:punkt" {
		t.Fatalf("unexpected archive content %q", data)
	}
}

func TestEnsure_PresentResourceSkipsFetch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "corpora", "wordnet"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	fetcher := &countingFetcher{}
	if err := NewEnsurer(dir, fetcher).Ensure(context.Background(), Wordnet); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fetcher.calls.Load() != 0 {
		t.Fatalf("expected no download")
	}
}

func TestEnsure_FailedDownloadIsNotRetried(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{fail: map[string]bool{"punkt": true}}
	e := NewEnsurer(t.TempDir(), fetcher)

	if err := e.Ensure(context.Background(), Punkt); err == nil {
		t.Fatalf("expected error")
	}
	if err := e.Ensure(context.Background(), Punkt); err == nil {
		t.Fatalf("expected error on second attempt")
	}
	if fetcher.calls.Load() != 1 {
		t.Fatalf("expected 1 download attempt, got %d", fetcher.calls.Load())
	}
}

func TestEnsureAll_ListsEveryMissingName(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{fail: map[string]bool{"punkt": true, "stopwords": true}}
	e := NewEnsurer(t.TempDir(), fetcher)
	stopwords := Resource{Path: "corpora/stopwords", Name: "stopwords"}

	err := e.EnsureAll(context.Background(), Punkt, Wordnet, stopwords)
	var missing *MissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingError, got %v", err)
	}
	if strings.Join(missing.Names, ",") != "punkt,stopwords" {
		t.Fatalf("unexpected missing names %v", missing.Names)
	}
	if !strings.Contains(err.Error(), "punkt, stopwords") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/packages/tokenizers/punkt.zip" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "archive")
	}))
	t.Cleanup(srv.Close)

	e := NewEnsurer(t.TempDir(), &HTTPFetcher{BaseURL: srv.URL + "/packages/"})
	if err := e.Ensure(context.Background(), Punkt); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := e.Ensure(context.Background(), Wordnet); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[*params.Bucket+"/"+*params.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Fetcher(t *testing.T) {
	t.Parallel()

	client := &fakeS3{objects: map[string]string{"models/nltk/tokenizers/punkt.zip": "archive"}}
	e := NewEnsurer(t.TempDir(), &S3Fetcher{Client: client, Bucket: "models", Prefix: "nltk"})
	if err := e.Ensure(context.Background(), Punkt); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestParseS3URL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url    string
		bucket string
		key    string
		ok     bool
	}{
		{url: "s3://bucket/a/b.png", bucket: "bucket", key: "a/b.png", ok: true},
		{url: "s3://bucket/a/../b.png", bucket: "bucket", key: "b.png", ok: true},
		{url: "s3://bucket/", ok: false},
		{url: "https://bucket/a.png", ok: false},
	}
	for _, tc := range tests {
		bucket, key, err := ParseS3URL(tc.url)
		if (err == nil) != tc.ok {
			t.Fatalf("%s: unexpected error state %v", tc.url, err)
		}
		if tc.ok && (bucket != tc.bucket || key != tc.key) {
			t.Fatalf("%s: expected %s/%s, got %s/%s", tc.url, tc.bucket, tc.key, bucket, key)
		}
	}
}

func TestReadS3Object(t *testing.T) {
	t.Parallel()

	client := &fakeS3{objects: map[string]string{"docs/page1.png": "png-bytes"}}
	data, err := ReadS3Object(context.Background(), client, "s3://docs/page1.png")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected data %q", data)
	}
	if IsS3URL("page1.png") || !IsS3URL("s3://docs/page1.png") {
		t.Fatalf("unexpected IsS3URL result")
	}
}
