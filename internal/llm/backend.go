package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Model is the vision capability every backend provides. Implementations are
// safe for concurrent use; all per-call state is local to the call.
//
// Calls never return errors. A failure is reported as a Result (or final
// text event) whose text starts with ErrorPrefix and whose usage is 0, so a
// batch over many images keeps going when one call fails.
type Model interface {
	Provider() Provider
	ModelName() string

	// Describe describes img using the default prompt for the configured
	// language.
	Describe(ctx context.Context, img Image) Result

	// DescribeWithPrompt describes img using prompt, or the default prompt
	// when prompt is empty. A zero img sends the prompt alone as a
	// text-only user turn.
	DescribeWithPrompt(ctx context.Context, img Image, prompt string) Result

	// Chat runs one non-streaming exchange over history.
	//
	// history is modified in place: when system is non-empty the last user
	// turn's content X becomes system + X + "user query: " + X, and a
	// non-zero img is attached to that same turn.
	Chat(ctx context.Context, system string, history []Turn, opts GenerationOptions, img Image) Result

	// ChatStream is the streaming form of Chat, with the same in-place
	// modification of history. The sequence ends with exactly one EventEnd.
	ChatStream(ctx context.Context, system string, history []Turn, opts GenerationOptions, img Image) iter.Seq[Event]
}

// driver is the wire-specific half of a backend. It receives prompts and
// histories already prepared by model and returns raw errors.
type driver interface {
	describe(ctx context.Context, img Image, prompt string) (Result, error)
	chat(ctx context.Context, history []Turn, opts GenerationOptions) (Result, error)
	chatStream(ctx context.Context, history []Turn, opts GenerationOptions) ChunkSource
}

// New builds the backend selected by cfg. It fails with a *ConfigError for
// an unknown provider and with an *UnavailableError when the provider's
// client is not compiled in. No network calls are made.
func New(cfg Config) (Model, error) {
	p, err := ParseProvider(string(cfg.Provider))
	if err != nil {
		return nil, err
	}
	entry, _ := lookupProvider(p)

	cfg.Provider = p
	cfg.ModelName = strings.TrimSpace(cfg.ModelName)
	if cfg.ModelName == "" {
		cfg.ModelName = entry.defaultModel
	}
	cfg.Language = ParseLanguage(string(cfg.Language))
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)

	d, err := entry.build(cfg)
	if err != nil {
		if IsConfigError(err) || IsUnavailable(err) {
			return nil, err
		}
		return nil, fmt.Errorf("create %s backend: %w", p, err)
	}
	return &model{cfg: cfg, driver: d}, nil
}

type model struct {
	cfg    Config
	driver driver
}

var _ Model = (*model)(nil)

func (m *model) Provider() Provider {
	return m.cfg.Provider
}

func (m *model) ModelName() string {
	return m.cfg.ModelName
}

func (m *model) Describe(ctx context.Context, img Image) Result {
	return m.DescribeWithPrompt(ctx, img, "")
}

func (m *model) DescribeWithPrompt(ctx context.Context, img Image, prompt string) Result {
	if prompt == "" {
		prompt = DefaultPrompt(m.cfg.Language)
	}
	var (
		res Result
		err error
	)
	if img.IsZero() {
		res, err = m.driver.chat(ctx, []Turn{UserTurn(prompt)}, GenerationOptions{})
	} else {
		res, err = m.driver.describe(ctx, img, prompt)
	}
	if err != nil {
		return m.fail("describe", err)
	}
	res.Text = strings.TrimSpace(res.Text)
	return res
}

func (m *model) Chat(ctx context.Context, system string, history []Turn, opts GenerationOptions, img Image) Result {
	if err := prepareConversation(system, history, img); err != nil {
		return m.fail("chat", err)
	}
	res, err := m.driver.chat(ctx, history, opts)
	if err != nil {
		return m.fail("chat", err)
	}
	res.Text = strings.TrimSpace(res.Text)
	return res
}

func (m *model) ChatStream(ctx context.Context, system string, history []Turn, opts GenerationOptions, img Image) iter.Seq[Event] {
	if err := prepareConversation(system, history, img); err != nil {
		m.logFailure("chat_stream", err)
		return StreamEvents(func(func(Chunk) bool) error { return err })
	}
	src := m.driver.chatStream(ctx, history, opts)
	return StreamEvents(func(yield func(Chunk) bool) error {
		err := src(yield)
		if err != nil {
			m.logFailure("chat_stream", err)
		}
		return err
	})
}

func (m *model) fail(op string, err error) Result {
	m.logFailure(op, err)
	return Result{Text: errorText(err)}
}

func (m *model) logFailure(op string, err error) {
	slog.Warn("vision model call failed",
		"provider", string(m.cfg.Provider),
		"model", m.cfg.ModelName,
		"op", op,
		"call_id", uuid.NewString(),
		"error", err,
	)
}

// prepareConversation folds system into the last user turn and attaches img
// to it, modifying history in place.
func prepareConversation(system string, history []Turn, img Image) error {
	idx := lastUserTurn(history)
	if idx < 0 {
		return errors.New("conversation has no user turn")
	}
	if system != "" {
		content := history[idx].Content
		history[idx].Content = system + content + userQueryMarker + content
	}
	if !img.IsZero() {
		history[idx].Image = img
	}
	return nil
}

func lastUserTurn(history []Turn) int {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return i
		}
	}
	return -1
}
