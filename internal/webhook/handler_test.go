package webhook

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"go.temporal.io/sdk/client"

	"github.com/ansg191/deepdoc-vision/internal/workflows"
)

type recordingStarter struct {
	options []client.StartWorkflowOptions
	reqs    []workflows.DescribeImagesRequest
	err     error
}

func (s *recordingStarter) ExecuteWorkflow(_ context.Context, options client.StartWorkflowOptions, _ any, args ...any) (client.WorkflowRun, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.options = append(s.options, options)
	s.reqs = append(s.reqs, args[0].(workflows.DescribeImagesRequest))
	return nil, nil
}

const testSecret = "s3cret"

const createdEvent = `{"Records":[
 {"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"scans"},"object":{"key":"2024/page+1.png","size":10,"eTag":"a","sequencer":"01"}}},
 {"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"scans"},"object":{"key":"2024/notes.txt","size":10,"eTag":"b","sequencer":"02"}}},
 {"eventName":"s3:ObjectRemoved:Delete","s3":{"bucket":{"name":"scans"},"object":{"key":"2024/old.png","sequencer":"03"}}},
 {"eventName":"ObjectCreated:Copy","s3":{"bucket":{"name":"scans"},"object":{"key":"fig%2F2.JPG","size":10,"eTag":"c","sequencer":"04"}}}
]}`

func signedRequest(t *testing.T, secret, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, "sha256="+hex.EncodeToString(signPayload([]byte(secret), []byte(body))))
	return req
}

func TestServeHTTPStartsWorkflowForNewImages(t *testing.T) {
	t.Parallel()

	starter := &recordingStarter{}
	h := NewHandler(starter, testSecret, workflows.DescribeImagesRequest{Model: "ollama", Images: []string{"ignored"}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, signedRequest(t, testSecret, createdEvent))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rr.Code)
	}
	if len(starter.reqs) != 1 {
		t.Fatalf("expected one workflow start, got %d", len(starter.reqs))
	}
	want := []string{"s3://scans/2024/page 1.png", "s3://scans/fig/2.JPG"}
	if !slices.Equal(starter.reqs[0].Images, want) {
		t.Fatalf("expected images %v, got %v", want, starter.reqs[0].Images)
	}
	if starter.reqs[0].Model != "ollama" {
		t.Fatalf("expected template model, got %q", starter.reqs[0].Model)
	}
	if starter.options[0].TaskQueue != workflows.TaskQueue {
		t.Fatalf("expected task queue %q, got %q", workflows.TaskQueue, starter.options[0].TaskQueue)
	}
	if !strings.HasPrefix(starter.options[0].ID, "describe-") {
		t.Fatalf("unexpected workflow id %q", starter.options[0].ID)
	}
}

func TestServeHTTPRedeliveryReusesWorkflowID(t *testing.T) {
	t.Parallel()

	starter := &recordingStarter{}
	h := NewHandler(starter, testSecret, workflows.DescribeImagesRequest{})

	for range 2 {
		h.ServeHTTP(httptest.NewRecorder(), signedRequest(t, testSecret, createdEvent))
	}
	if len(starter.options) != 2 || starter.options[0].ID != starter.options[1].ID {
		t.Fatalf("expected identical workflow ids, got %+v", starter.options)
	}
}

func TestServeHTTPRejectsBadSignature(t *testing.T) {
	t.Parallel()

	starter := &recordingStarter{}
	h := NewHandler(starter, testSecret, workflows.DescribeImagesRequest{})

	tests := []struct {
		name string
		req  *http.Request
	}{
		{name: "wrong secret", req: signedRequest(t, "other", createdEvent)},
		{name: "missing header", req: httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(createdEvent))},
	}
	for _, tc := range tests {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, tc.req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected status %d, got %d", tc.name, http.StatusUnauthorized, rr.Code)
		}
	}
	if len(starter.reqs) != 0 {
		t.Fatalf("expected no workflow starts")
	}
}

func TestServeHTTPIgnoresEventsWithoutImages(t *testing.T) {
	t.Parallel()

	starter := &recordingStarter{}
	h := NewHandler(starter, testSecret, workflows.DescribeImagesRequest{})

	body := `{"Records":[{"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"scans"},"object":{"key":"readme.md"}}}]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, signedRequest(t, testSecret, body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if len(starter.reqs) != 0 {
		t.Fatalf("expected no workflow starts")
	}
}

func TestServeHTTPStartFailure(t *testing.T) {
	t.Parallel()

	h := NewHandler(&recordingStarter{err: errors.New("temporal unavailable")}, testSecret, workflows.DescribeImagesRequest{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, signedRequest(t, testSecret, createdEvent))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}

func TestServeHTTPMethodNotAllowed(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	NewHandler(&recordingStarter{}, testSecret, workflows.DescribeImagesRequest{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
}
