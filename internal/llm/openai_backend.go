package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// describeMaxTokens caps single-shot descriptions on backends that require
// or accept an explicit limit.
const describeMaxTokens = 1000

// openAIDriver speaks the OpenAI chat-completions wire format. qwen and
// zhipu reuse it against their compatible endpoints.
type openAIDriver struct {
	provider Provider
	model    string
	client   openai.Client
}

func openAICompatible(provider Provider, defaultBaseURL string) func(Config) (driver, error) {
	return func(cfg Config) (driver, error) {
		opts := []option.RequestOption{option.WithMaxRetries(0)}
		if cfg.APIKey != "" {
			opts = append(opts, option.WithAPIKey(cfg.APIKey))
		} else if provider != ProviderOpenAI {
			// The SDK falls back to OPENAI_API_KEY, which never belongs to
			// a compatible provider.
			opts = append(opts, option.WithAPIKey(""))
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		if baseURL != "" {
			opts = append(opts, option.WithBaseURL(baseURL))
		}
		return &openAIDriver{
			provider: provider,
			model:    cfg.ModelName,
			client:   openai.NewClient(opts...),
		}, nil
	}
}

func (d *openAIDriver) describe(ctx context.Context, img Image, prompt string) (Result, error) {
	url, err := img.DataURL()
	if err != nil {
		return Result{}, err
	}
	params := openai.ChatCompletionNewParams{
		Model: d.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}),
				openai.TextContentPart(prompt),
			}),
		},
		MaxTokens: openai.Int(describeMaxTokens),
	}
	return d.complete(ctx, params)
}

func (d *openAIDriver) chat(ctx context.Context, history []Turn, opts GenerationOptions) (Result, error) {
	messages, err := openAIMessagesFromTurns(history)
	if err != nil {
		return Result{}, err
	}
	params := openai.ChatCompletionNewParams{Model: d.model, Messages: messages}
	applyOpenAIOptions(&params, opts)
	return d.complete(ctx, params)
}

func (d *openAIDriver) complete(ctx context.Context, params openai.ChatCompletionNewParams) (Result, error) {
	resp, err := d.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Result{}, ClassifyOpenAIError(d.provider, err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("%s returned no choices", d.provider)
	}
	return Result{
		Text:  resp.Choices[0].Message.Content,
		Usage: int(resp.Usage.TotalTokens),
	}, nil
}

func (d *openAIDriver) chatStream(ctx context.Context, history []Turn, opts GenerationOptions) ChunkSource {
	return func(yield func(Chunk) bool) error {
		messages, err := openAIMessagesFromTurns(history)
		if err != nil {
			return err
		}
		params := openai.ChatCompletionNewParams{
			Model:    d.model,
			Messages: messages,
			StreamOptions: openai.ChatCompletionStreamOptionsParam{
				IncludeUsage: openai.Bool(true),
			},
		}
		applyOpenAIOptions(&params, opts)

		stream := d.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			var c Chunk
			for _, choice := range chunk.Choices {
				c.Text += choice.Delta.Content
			}
			if chunk.JSON.Usage.Valid() {
				c.Done = true
				c.PromptTokens = int(chunk.Usage.PromptTokens)
				c.CompletionTokens = int(chunk.Usage.CompletionTokens)
			}
			if c.Text == "" && !c.Done {
				continue
			}
			if !yield(c) {
				return nil
			}
		}
		if err := stream.Err(); err != nil {
			return ClassifyOpenAIError(d.provider, err)
		}
		return nil
	}
}

func applyOpenAIOptions(params *openai.ChatCompletionNewParams, opts GenerationOptions) {
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.TopP != nil {
		params.TopP = openai.Float(*opts.TopP)
	}
	if opts.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*opts.PresencePenalty)
	}
	if opts.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*opts.FrequencyPenalty)
	}
}

func openAIMessagesFromTurns(history []Turn) ([]openai.ChatCompletionMessageParamUnion, error) {
	ret := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case RoleSystem:
			ret = append(ret, openai.SystemMessage(turn.Content))
		case RoleAssistant:
			ret = append(ret, openai.AssistantMessage(turn.Content))
		case RoleUser:
			if turn.Image.IsZero() {
				ret = append(ret, openai.UserMessage(turn.Content))
				continue
			}
			url, err := turn.Image.DataURL()
			if err != nil {
				return nil, err
			}
			ret = append(ret, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}),
				openai.TextContentPart(turn.Content),
			}))
		default:
			return nil, fmt.Errorf("unsupported message role %q", turn.Role)
		}
	}
	if len(ret) == 0 {
		return nil, errors.New("conversation is empty")
	}
	return ret, nil
}
