package activities

import (
	"context"

	"go.temporal.io/sdk/temporal"

	"github.com/ansg191/deepdoc-vision/internal/usage"
)

type ListUsageRecordsRequest struct {
	Limit int `json:"limit,omitempty"`
}

// ListUsageRecords returns the most recent ledger entries, newest first.
func (a *Activities) ListUsageRecords(ctx context.Context, req ListUsageRecordsRequest) ([]usage.Record, error) {
	if a.Usage == nil {
		return nil, temporal.NewNonRetryableApplicationError("usage ledger disabled on this worker", ErrTypeVisionConfigError, nil)
	}
	return a.Usage.ListRecords(ctx, req.Limit)
}
