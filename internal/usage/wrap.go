package usage

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ansg191/deepdoc-vision/internal/llm"
)

// Wrap returns a Model that records every call made through m. Recording
// failures are logged and never change what the caller receives.
func Wrap(m llm.Model, rec Recorder) llm.Model {
	return &recordingModel{Model: m, rec: rec, now: time.Now}
}

type recordingModel struct {
	llm.Model
	rec Recorder
	now func() time.Time
}

func (r *recordingModel) Describe(ctx context.Context, img llm.Image) llm.Result {
	res := r.Model.Describe(ctx, img)
	r.record(ctx, OpDescribe, res.Usage, res.Failed())
	return res
}

func (r *recordingModel) DescribeWithPrompt(ctx context.Context, img llm.Image, prompt string) llm.Result {
	res := r.Model.DescribeWithPrompt(ctx, img, prompt)
	r.record(ctx, OpDescribe, res.Usage, res.Failed())
	return res
}

func (r *recordingModel) Chat(ctx context.Context, system string, history []llm.Turn, opts llm.GenerationOptions, img llm.Image) llm.Result {
	res := r.Model.Chat(ctx, system, history, opts, img)
	r.record(ctx, OpChat, res.Usage, res.Failed())
	return res
}

// ChatStream records once the stream ends or the consumer stops early.
func (r *recordingModel) ChatStream(ctx context.Context, system string, history []llm.Turn, opts llm.GenerationOptions, img llm.Image) iter.Seq[llm.Event] {
	events := r.Model.ChatStream(ctx, system, history, opts, img)
	return func(yield func(llm.Event) bool) {
		var (
			tokens int
			failed bool
		)
		defer func() {
			if failed {
				tokens = 0
			}
			r.record(ctx, OpChatStream, tokens, failed)
		}()
		for ev := range events {
			switch ev.Kind {
			case llm.EventUsage:
				tokens = ev.Tokens
			case llm.EventText:
				failed = failed || ev.Failed
			}
			if !yield(ev) {
				return
			}
		}
	}
}

func (r *recordingModel) record(ctx context.Context, op string, tokens int, failed bool) {
	rec := Record{
		CallID:    uuid.NewString(),
		Provider:  string(r.Provider()),
		Model:     r.ModelName(),
		Operation: op,
		Tokens:    tokens,
		Failed:    failed,
		CreatedAt: r.now().UTC(),
	}
	if err := r.rec.Record(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("failed to record model usage",
			"call_id", rec.CallID,
			"provider", rec.Provider,
			"model", rec.Model,
			"op", op,
			"error", err,
		)
	}
}
