// Package mcpserver exposes the vision backends as MCP tools.
package mcpserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ansg191/deepdoc-vision/internal/config"
	"github.com/ansg191/deepdoc-vision/internal/imagesource"
	"github.com/ansg191/deepdoc-vision/internal/llm"
)

const (
	ToolDescribeImage = "describe_image"
	ToolListProviders = "list_providers"
)

// ModelFactory builds a model from a provider id, "<provider>/<model>", a
// config file path, or the empty string for the environment defaults.
type ModelFactory func(ref string) (llm.Model, error)

// DefaultModelFactory resolves ref with the config package.
func DefaultModelFactory(ref string) (llm.Model, error) {
	if ref == "" {
		return config.NewModel(nil)
	}
	return config.NewModel(ref)
}

type DescribeImageInput struct {
	Model       string `json:"model,omitempty"`
	Image       string `json:"image,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
}

type DescribeImageOutput struct {
	Text     string `json:"text"`
	Usage    int    `json:"usage"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type ListProvidersOutput struct {
	Providers []string `json:"providers"`
}

// New builds the server. Nil arguments select DefaultModelFactory and a
// resolver that reads any local path.
func New(version string, newModel ModelFactory, images *imagesource.Resolver) (*mcp.Server, error) {
	if newModel == nil {
		newModel = DefaultModelFactory
	}
	if images == nil {
		images = imagesource.NewDefaultResolver("")
	}
	server := mcp.NewServer(&mcp.Implementation{Name: "deepdoc-vision", Version: version}, nil)

	schema, err := describeImageSchema()
	if err != nil {
		return nil, err
	}
	h := &handler{newModel: newModel, images: images}
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolDescribeImage,
		Description: "Describe the content of an image (figures, charts, scanned pages) as text.",
		InputSchema: schema,
	}, h.describeImage)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolListProviders,
		Description: "List the vision providers this server can use.",
	}, h.listProviders)

	return server, nil
}

func describeImageSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[DescribeImageInput](nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build describe_image schema: %w", err)
	}
	descriptions := map[string]string{
		"model":        "Provider id, provider/model, or a config file path. Defaults to the server environment.",
		"image":        "Image path on the server, or a file://, s3://, http(s):// or data: URL.",
		"image_base64": "Base64 encoded image bytes.",
		"prompt":       "Custom instruction replacing the default description prompt.",
	}
	for name, desc := range descriptions {
		if prop, ok := schema.Properties[name]; ok {
			prop.Description = desc
		}
	}
	return schema, nil
}

type handler struct {
	newModel ModelFactory
	images   *imagesource.Resolver
}

func (h *handler) describeImage(ctx context.Context, _ *mcp.CallToolRequest, in DescribeImageInput) (*mcp.CallToolResult, DescribeImageOutput, error) {
	model, err := h.newModel(in.Model)
	if err != nil {
		return nil, DescribeImageOutput{}, err
	}
	data, err := h.loadImage(ctx, in)
	if err != nil {
		return nil, DescribeImageOutput{}, err
	}

	res := model.DescribeWithPrompt(ctx, llm.ImageBytes(data), in.Prompt)
	if res.Failed() {
		slog.Warn("describe_image failed", "provider", model.Provider(), "model", model.ModelName())
		return nil, DescribeImageOutput{}, errors.New(res.Text)
	}

	out := DescribeImageOutput{
		Text:     res.Text,
		Usage:    res.Usage,
		Provider: string(model.Provider()),
		Model:    model.ModelName(),
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: res.Text}},
	}, out, nil
}

func (h *handler) listProviders(context.Context, *mcp.CallToolRequest, any) (*mcp.CallToolResult, ListProvidersOutput, error) {
	var out ListProvidersOutput
	for _, p := range llm.Providers() {
		out.Providers = append(out.Providers, string(p))
	}
	return nil, out, nil
}

func (h *handler) loadImage(ctx context.Context, in DescribeImageInput) ([]byte, error) {
	switch {
	case in.ImageBase64 != "":
		data, err := base64.StdEncoding.DecodeString(in.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("invalid image_base64: %w", err)
		}
		return data, nil
	case in.Image != "":
		return h.images.Resolve(ctx, in.Image)
	default:
		return nil, errors.New("one of image or image_base64 is required")
	}
}
