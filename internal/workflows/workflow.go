package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ansg191/deepdoc-vision/internal/activities"
)

const TaskQueue = "vision-task-queue"

type DescribeImagesRequest struct {
	// Model is passed to every DescribeImage activity unchanged.
	Model    string `json:"model,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Language string `json:"language,omitempty"`
	// Images are s3:// URLs.
	Images []string `json:"images"`
}

type DescribeImagesResult struct {
	Descriptions []activities.DescribeImageResult `json:"descriptions"`
	TotalUsage   int                              `json:"total_usage"`
}

func describeActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{activities.ErrTypeVisionConfigError},
		},
	}
}

// DescribeImagesWorkflow describes every image in parallel and returns the
// descriptions in input order.
func DescribeImagesWorkflow(ctx workflow.Context, req DescribeImagesRequest) (*DescribeImagesResult, error) {
	ctx = workflow.WithActivityOptions(ctx, describeActivityOptions())

	var acts *activities.Activities
	futs := make([]workflow.Future, len(req.Images))
	for i, img := range req.Images {
		futs[i] = workflow.ExecuteActivity(ctx, acts.DescribeImage, activities.DescribeImageRequest{
			Model:    req.Model,
			ImageURL: img,
			Prompt:   req.Prompt,
			Language: req.Language,
		})
	}

	result := &DescribeImagesResult{Descriptions: make([]activities.DescribeImageResult, len(futs))}
	for i, fut := range futs {
		if err := fut.Get(ctx, &result.Descriptions[i]); err != nil {
			return nil, err
		}
		result.TotalUsage += result.Descriptions[i].Usage
	}

	workflow.GetLogger(ctx).Info("Workflow completed.", "images", len(req.Images), "usage", result.TotalUsage)

	return result, nil
}
