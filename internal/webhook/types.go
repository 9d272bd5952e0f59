package webhook

import (
	"context"

	"go.temporal.io/sdk/client"
)

// SignatureHeader carries "sha256=<hex hmac of body>".
const SignatureHeader = "X-Signature-256"

// BucketEvent is an S3-style bucket notification, as sent by MinIO, R2
// and S3 via SNS/EventBridge HTTP targets.
type BucketEvent struct {
	Records []BucketEventRecord `json:"Records"`
}

type BucketEventRecord struct {
	EventName string `json:"eventName"` // "s3:ObjectCreated:Put", "ObjectCreated:Put", ...
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key       string `json:"key"` // URL-encoded
			Size      int64  `json:"size"`
			ETag      string `json:"eTag"`
			Sequencer string `json:"sequencer"`
		} `json:"object"`
	} `json:"s3"`
}

// WorkflowStarter is the subset of client.Client used by the handler.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow any, args ...any) (client.WorkflowRun, error)
}
