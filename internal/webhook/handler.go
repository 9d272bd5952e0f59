package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/ansg191/deepdoc-vision/internal/workflows"
)

const maxPayloadBytes = 1 << 20

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// Handler receives bucket notifications and starts a DescribeImagesWorkflow
// for the new images they announce.
type Handler struct {
	starter       WorkflowStarter
	webhookSecret []byte
	template      workflows.DescribeImagesRequest
}

// NewHandler creates a new webhook handler. Model, Prompt and Language of
// template are copied into every workflow request.
func NewHandler(starter WorkflowStarter, webhookSecret string, template workflows.DescribeImagesRequest) *Handler {
	return &Handler{
		starter:       starter,
		webhookSecret: []byte(webhookSecret),
		template:      template,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := h.validateAndReadPayload(r)
	if err != nil {
		slog.Error("failed to validate payload", "error", err)
		http.Error(w, "invalid payload", http.StatusUnauthorized)
		return
	}

	var event BucketEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		slog.Error("failed to parse webhook", "error", err)
		http.Error(w, "failed to parse webhook", http.StatusBadRequest)
		return
	}

	req, err := h.processEvent(&event)
	if err != nil {
		slog.Info("skipping event", "reason", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	id, err := h.startWorkflow(r.Context(), req, &event)
	if err != nil {
		slog.Error("failed to start workflow", "error", err)
		http.Error(w, "failed to start workflow", http.StatusInternalServerError)
		return
	}

	slog.Info("workflow started", "workflow_id", id, "images", len(req.Images))
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) validateAndReadPayload(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		return nil, err
	}

	sig, ok := strings.CutPrefix(r.Header.Get(SignatureHeader), "sha256=")
	if !ok {
		return nil, errors.New("missing signature")
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("malformed signature: %w", err)
	}
	if !hmac.Equal(got, signPayload(h.webhookSecret, payload)) {
		return nil, errors.New("payload signature check failed")
	}
	return payload, nil
}

func signPayload(secret, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

func (h *Handler) processEvent(e *BucketEvent) (*workflows.DescribeImagesRequest, error) {
	req := h.template
	req.Images = nil
	for _, rec := range e.Records {
		if !strings.Contains(rec.EventName, "ObjectCreated:") {
			continue
		}
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			slog.Warn("ignoring object with malformed key", "key", rec.S3.Object.Key, "error", err)
			continue
		}
		if !imageExtensions[strings.ToLower(path.Ext(key))] {
			continue
		}
		if rec.S3.Bucket.Name == "" || key == "" {
			continue
		}
		req.Images = append(req.Images, "s3://"+rec.S3.Bucket.Name+"/"+key)
	}
	if len(req.Images) == 0 {
		return nil, errors.New("no new images in event")
	}
	return &req, nil
}

func (h *Handler) startWorkflow(ctx context.Context, req *workflows.DescribeImagesRequest, e *BucketEvent) (string, error) {
	opts := client.StartWorkflowOptions{
		ID:        workflowID(e),
		TaskQueue: workflows.TaskQueue,
	}
	if _, err := h.starter.ExecuteWorkflow(ctx, opts, workflows.DescribeImagesWorkflow, *req); err != nil {
		return "", err
	}
	return opts.ID, nil
}

// workflowID is stable for redelivered notifications of the same objects.
func workflowID(e *BucketEvent) string {
	sum := sha256.New()
	for _, rec := range e.Records {
		_, _ = io.WriteString(sum, rec.S3.Bucket.Name+"\x00"+rec.S3.Object.Key+"\x00"+rec.S3.Object.Sequencer+rec.S3.Object.ETag+"\n")
	}
	if len(e.Records) == 0 {
		return "describe-" + uuid.NewString()
	}
	return "describe-" + hex.EncodeToString(sum.Sum(nil))[:24]
}
