//go:build !noollama

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// errStreamStopped ends an ollama callback loop when the consumer stops
// pulling events.
var errStreamStopped = errors.New("stream stopped by consumer")

type ollamaDriver struct {
	model  string
	client *api.Client
}

func newOllamaDriver(cfg Config) (driver, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = ollamaBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, NewConfigError("invalid ollama base_url %q: %v", raw, err)
	}
	return &ollamaDriver{
		model:  cfg.ModelName,
		client: api.NewClient(base, http.DefaultClient),
	}, nil
}

// ollamaKeepAlive keeps the model loaded between calls.
var ollamaKeepAlive = &api.Duration{Duration: -1 * time.Second}

func (d *ollamaDriver) describe(ctx context.Context, img Image, prompt string) (Result, error) {
	data, err := img.Bytes()
	if err != nil {
		return Result{}, err
	}
	stream := false
	req := &api.GenerateRequest{
		Model:     d.model,
		Prompt:    prompt,
		Images:    []api.ImageData{data},
		Stream:    &stream,
		KeepAlive: ollamaKeepAlive,
	}
	var res Result
	err = d.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		res.Text += resp.Response
		if resp.Done {
			res.Usage = resp.PromptEvalCount + resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return Result{}, classifyOllamaError(err)
	}
	return res, nil
}

func (d *ollamaDriver) chat(ctx context.Context, history []Turn, opts GenerationOptions) (Result, error) {
	req, err := d.chatRequest(history, opts, false)
	if err != nil {
		return Result{}, err
	}
	var res Result
	err = d.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		res.Text += resp.Message.Content
		if resp.Done {
			res.Usage = resp.PromptEvalCount + resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return Result{}, classifyOllamaError(err)
	}
	return res, nil
}

func (d *ollamaDriver) chatStream(ctx context.Context, history []Turn, opts GenerationOptions) ChunkSource {
	return func(yield func(Chunk) bool) error {
		req, err := d.chatRequest(history, opts, true)
		if err != nil {
			return err
		}
		err = d.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			c := Chunk{Text: resp.Message.Content, Done: resp.Done}
			if resp.Done {
				c.PromptTokens = resp.PromptEvalCount
				c.CompletionTokens = resp.EvalCount
			}
			if !yield(c) {
				return errStreamStopped
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStreamStopped) {
			return classifyOllamaError(err)
		}
		return nil
	}
}

func (d *ollamaDriver) chatRequest(history []Turn, opts GenerationOptions, stream bool) (*api.ChatRequest, error) {
	messages := make([]api.Message, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return nil, fmt.Errorf("unsupported ollama message role %q", turn.Role)
		}
		msg := api.Message{Role: turn.Role, Content: turn.Content}
		if !turn.Image.IsZero() {
			data, err := turn.Image.Bytes()
			if err != nil {
				return nil, err
			}
			msg.Images = []api.ImageData{data}
		}
		messages = append(messages, msg)
	}
	if len(messages) == 0 {
		return nil, errors.New("conversation is empty")
	}
	return &api.ChatRequest{
		Model:     d.model,
		Messages:  messages,
		Stream:    &stream,
		KeepAlive: ollamaKeepAlive,
		Options:   ollamaOptions(opts),
	}, nil
}

func ollamaOptions(opts GenerationOptions) map[string]any {
	ret := make(map[string]any)
	if opts.Temperature != nil {
		ret["temperature"] = *opts.Temperature
	}
	if opts.TopP != nil {
		ret["top_p"] = *opts.TopP
	}
	if opts.PresencePenalty != nil {
		ret["presence_penalty"] = *opts.PresencePenalty
	}
	if opts.FrequencyPenalty != nil {
		ret["frequency_penalty"] = *opts.FrequencyPenalty
	}
	if len(ret) == 0 {
		return nil
	}
	return ret
}

func classifyOllamaError(err error) error {
	var statusErr api.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	detail := strings.TrimSpace(statusErr.ErrorMessage)
	if detail == "" {
		detail = statusErr.Status
	}
	return &ProviderError{Provider: ProviderOllama, StatusCode: statusErr.StatusCode, Detail: detail, Err: err}
}
