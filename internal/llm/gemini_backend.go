package llm

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// geminiDriver creates its client on first use. genai.NewClient refuses a
// Gemini API config without a key, and construction must not fail on that.
type geminiDriver struct {
	model  string
	client func() (*genai.Client, error)
}

func newGeminiDriver(cfg Config) (driver, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	return &geminiDriver{
		model: cfg.ModelName,
		client: sync.OnceValues(func() (*genai.Client, error) {
			c, err := genai.NewClient(context.Background(), clientCfg)
			if err != nil {
				return nil, fmt.Errorf("create gemini client: %w", err)
			}
			return c, nil
		}),
	}, nil
}

func (d *geminiDriver) describe(ctx context.Context, img Image, prompt string) (Result, error) {
	part, err := geminiImagePart(img)
	if err != nil {
		return Result{}, err
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{part, genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	return d.generate(ctx, contents, &genai.GenerateContentConfig{MaxOutputTokens: describeMaxTokens})
}

func (d *geminiDriver) chat(ctx context.Context, history []Turn, opts GenerationOptions) (Result, error) {
	contents, config, err := geminiRequest(history, opts)
	if err != nil {
		return Result{}, err
	}
	return d.generate(ctx, contents, config)
}

func (d *geminiDriver) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (Result, error) {
	client, err := d.client()
	if err != nil {
		return Result{}, err
	}
	resp, err := client.Models.GenerateContent(ctx, d.model, contents, config)
	if err != nil {
		return Result{}, ClassifyGeminiError(err)
	}
	res := Result{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		res.Usage = int(resp.UsageMetadata.PromptTokenCount + resp.UsageMetadata.CandidatesTokenCount)
	}
	return res, nil
}

// chatStream holds back one response so the final one can be marked Done
// with the usage it carries.
func (d *geminiDriver) chatStream(ctx context.Context, history []Turn, opts GenerationOptions) ChunkSource {
	return func(yield func(Chunk) bool) error {
		contents, config, err := geminiRequest(history, opts)
		if err != nil {
			return err
		}
		client, err := d.client()
		if err != nil {
			return err
		}

		var pending *genai.GenerateContentResponse
		for resp, err := range client.Models.GenerateContentStream(ctx, d.model, contents, config) {
			if err != nil {
				if pending != nil && !yield(Chunk{Text: pending.Text()}) {
					return nil
				}
				return ClassifyGeminiError(err)
			}
			if pending != nil && !yield(Chunk{Text: pending.Text()}) {
				return nil
			}
			pending = resp
		}
		if pending == nil {
			return nil
		}
		last := Chunk{Text: pending.Text(), Done: true}
		if pending.UsageMetadata != nil {
			last.PromptTokens = int(pending.UsageMetadata.PromptTokenCount)
			last.CompletionTokens = int(pending.UsageMetadata.CandidatesTokenCount)
		}
		yield(last)
		return nil
	}
}

func geminiRequest(history []Turn, opts GenerationOptions) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      float32Ptr(opts.Temperature),
		TopP:             float32Ptr(opts.TopP),
		PresencePenalty:  float32Ptr(opts.PresencePenalty),
		FrequencyPenalty: float32Ptr(opts.FrequencyPenalty),
	}
	contents := make([]*genai.Content, 0, len(history))
	var system []*genai.Part
	for _, turn := range history {
		switch turn.Role {
		case RoleSystem:
			system = append(system, genai.NewPartFromText(turn.Content))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(turn.Content)}, genai.RoleModel))
		case RoleUser:
			parts := make([]*genai.Part, 0, 2)
			if !turn.Image.IsZero() {
				part, err := geminiImagePart(turn.Image)
				if err != nil {
					return nil, nil, err
				}
				parts = append(parts, part)
			}
			parts = append(parts, genai.NewPartFromText(turn.Content))
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
		default:
			return nil, nil, fmt.Errorf("unsupported gemini message role %q", turn.Role)
		}
	}
	if len(contents) == 0 {
		return nil, nil, fmt.Errorf("conversation is empty")
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromParts(system, genai.RoleUser)
	}
	return contents, config, nil
}

func geminiImagePart(img Image) (*genai.Part, error) {
	data, err := img.Bytes()
	if err != nil {
		return nil, err
	}
	return genai.NewPartFromBytes(data, mediaType(data)), nil
}

func float32Ptr(v *float64) *float32 {
	if v == nil {
		return nil
	}
	f := float32(*v)
	return &f
}
