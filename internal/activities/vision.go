package activities

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/ansg191/deepdoc-vision/internal/config"
	"github.com/ansg191/deepdoc-vision/internal/imagesource"
	"github.com/ansg191/deepdoc-vision/internal/llm"
	"github.com/ansg191/deepdoc-vision/internal/usage"
)

const (
	ErrTypeVisionCallFailed  = "VisionCallFailed"
	ErrTypeVisionConfigError = "VisionConfigError"
)

type DescribeImageRequest struct {
	// Model is a provider id, "<provider>/<model>" or a config file path.
	// Empty means the worker's DEEPDOC_VISION_* environment.
	Model string `json:"model,omitempty"`
	// Image holds the raw bytes; ImageURL (s3://, http(s):// or data:) is
	// used when Image is empty.
	Image    []byte `json:"image,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Language string `json:"language,omitempty"`
}

type DescribeImageResult struct {
	Text     string `json:"text"`
	Usage    int    `json:"usage"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Activities holds what the activities share across runs on one worker.
type Activities struct {
	// Usage receives one record per model call. Nil disables the ledger.
	Usage usage.Recorder
}

// DescribeImage runs one describe call. A sentinel result becomes a
// retryable VisionCallFailed error; configuration problems are
// non-retryable.
func (a *Activities) DescribeImage(ctx context.Context, req DescribeImageRequest) (*DescribeImageResult, error) {
	model, err := newVisionModel(req)
	if err != nil {
		return nil, err
	}
	if a.Usage != nil {
		model = usage.Wrap(model, a.Usage)
	}

	data, err := loadImage(ctx, req)
	if err != nil {
		return nil, err
	}

	var res llm.Result
	err = withActivityHeartbeat(
		ctx,
		describeHeartbeatInterval,
		func() any {
			return map[string]any{
				"provider": string(model.Provider()),
				"model":    model.ModelName(),
				"phase":    "describe",
			}
		},
		func() error {
			res = model.DescribeWithPrompt(ctx, llm.ImageBytes(data), req.Prompt)
			if res.Failed() {
				return temporal.NewApplicationError(res.Text, ErrTypeVisionCallFailed, string(model.Provider()), model.ModelName())
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	return &DescribeImageResult{
		Text:     res.Text,
		Usage:    res.Usage,
		Provider: string(model.Provider()),
		Model:    model.ModelName(),
	}, nil
}

func newVisionModel(req DescribeImageRequest) (llm.Model, error) {
	var input any
	if req.Model != "" {
		input = req.Model
	}
	cfg, err := config.Resolve(input)
	if err != nil {
		return nil, classifyVisionError(err)
	}
	if req.Language != "" {
		cfg.Language = llm.ParseLanguage(req.Language)
	}
	model, err := llm.New(cfg)
	if err != nil {
		return nil, classifyVisionError(err)
	}
	return model, nil
}

// Workers never read their own filesystem on behalf of a request.
var remoteImages = imagesource.NewResolver(
	imagesource.NewS3Strategy(nil),
	imagesource.NewHTTPStrategy(nil),
	imagesource.DataURLStrategy{},
)

func loadImage(ctx context.Context, req DescribeImageRequest) ([]byte, error) {
	if len(req.Image) > 0 {
		return req.Image, nil
	}
	if req.ImageURL == "" {
		return nil, temporal.NewNonRetryableApplicationError("no image provided", ErrTypeVisionConfigError, nil)
	}
	data, err := remoteImages.Resolve(ctx, req.ImageURL)
	if errors.Is(err, imagesource.ErrUnsupported) {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeVisionConfigError, err)
	}
	return data, err
}

func classifyVisionError(err error) error {
	if llm.IsConfigError(err) || llm.IsUnavailable(err) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeVisionConfigError, err)
	}
	return err
}
