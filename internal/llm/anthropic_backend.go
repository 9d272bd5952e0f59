package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicChatMaxTokens int64 = 4096

type anthropicDriver struct {
	model  string
	client anthropic.Client
}

func newAnthropicDriver(cfg Config) (driver, error) {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicDriver{
		model:  cfg.ModelName,
		client: anthropic.NewClient(opts...),
	}, nil
}

func (d *anthropicDriver) describe(ctx context.Context, img Image, prompt string) (Result, error) {
	block, err := anthropicImageBlock(img)
	if err != nil {
		return Result{}, err
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(d.model),
		MaxTokens: describeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(block, anthropic.NewTextBlock(prompt)),
		},
	}
	return d.complete(ctx, params)
}

func (d *anthropicDriver) chat(ctx context.Context, history []Turn, opts GenerationOptions) (Result, error) {
	params, err := d.chatParams(history, opts)
	if err != nil {
		return Result{}, err
	}
	return d.complete(ctx, params)
}

func (d *anthropicDriver) complete(ctx context.Context, params anthropic.MessageNewParams) (Result, error) {
	message, err := d.client.Messages.New(ctx, params)
	if err != nil {
		return Result{}, ClassifyAnthropicError(err)
	}
	if message == nil {
		return Result{}, errors.New("anthropic returned nil message")
	}
	var output strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			output.WriteString(text.Text)
		}
	}
	return Result{
		Text:  output.String(),
		Usage: int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}, nil
}

func (d *anthropicDriver) chatStream(ctx context.Context, history []Turn, opts GenerationOptions) ChunkSource {
	return func(yield func(Chunk) bool) error {
		params, err := d.chatParams(history, opts)
		if err != nil {
			return err
		}

		stream := d.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		var inputTokens, outputTokens int64
		for stream.Next() {
			event := stream.Current()
			switch variant := event.AsAny().(type) {
			case anthropic.MessageStartEvent:
				inputTokens = variant.Message.Usage.InputTokens
				outputTokens = variant.Message.Usage.OutputTokens
			case anthropic.ContentBlockDeltaEvent:
				delta, ok := variant.Delta.AsAny().(anthropic.TextDelta)
				if !ok || delta.Text == "" {
					continue
				}
				if !yield(Chunk{Text: delta.Text}) {
					return nil
				}
			case anthropic.MessageDeltaEvent:
				// message_delta usage is cumulative.
				if variant.Usage.InputTokens > 0 {
					inputTokens = variant.Usage.InputTokens
				}
				outputTokens = variant.Usage.OutputTokens
			case anthropic.MessageStopEvent:
				if !yield(Chunk{Done: true, PromptTokens: int(inputTokens), CompletionTokens: int(outputTokens)}) {
					return nil
				}
			}
		}
		if err := stream.Err(); err != nil {
			return ClassifyAnthropicError(err)
		}
		return nil
	}
}

// chatParams maps history onto the messages API. System turns become
// system blocks; the penalties have no anthropic equivalent and are dropped.
func (d *anthropicDriver) chatParams(history []Turn, opts GenerationOptions) (anthropic.MessageNewParams, error) {
	messages := make([]anthropic.MessageParam, 0, len(history))
	systemBlocks := make([]anthropic.TextBlockParam, 0)
	for _, turn := range history {
		switch turn.Role {
		case RoleSystem:
			text := strings.TrimSpace(turn.Content)
			if text != "" {
				systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: text})
			}
		case RoleUser:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 2)
			if !turn.Image.IsZero() {
				block, err := anthropicImageBlock(turn.Image)
				if err != nil {
					return anthropic.MessageNewParams{}, err
				}
				blocks = append(blocks, block)
			}
			blocks = append(blocks, anthropic.NewTextBlock(turn.Content))
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		case RoleAssistant:
			if turn.Content == "" {
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		default:
			return anthropic.MessageNewParams{}, fmt.Errorf("unsupported anthropic message role %q", turn.Role)
		}
	}
	if len(messages) == 0 {
		return anthropic.MessageNewParams{}, errors.New("conversation is empty")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(d.model),
		MaxTokens: anthropicChatMaxTokens,
		Messages:  messages,
		System:    systemBlocks,
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}
	if opts.TopP != nil {
		params.TopP = anthropic.Float(*opts.TopP)
	}
	return params, nil
}

func anthropicImageBlock(img Image) (anthropic.ContentBlockParamUnion, error) {
	data, err := img.Bytes()
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}
	return anthropic.NewImageBlockBase64(mediaType(data), base64.StdEncoding.EncodeToString(data)), nil
}
