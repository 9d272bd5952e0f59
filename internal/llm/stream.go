package llm

import (
	"iter"
	"strings"
)

// Chunk is one piece of a streamed answer as a backend delivered it.
type Chunk struct {
	Text string
	// Done marks the backend's final chunk. Its token counts are reported
	// before its text is applied.
	Done             bool
	PromptTokens     int
	CompletionTokens int
}

// ChunkSource pushes chunks to yield in arrival order. It must stop reading
// and return as soon as yield returns false. A non-nil error means the
// transport failed after the chunks already yielded.
type ChunkSource func(yield func(Chunk) bool) error

// StreamEvents turns a chunk source into the event sequence callers see:
//
//   - every chunk appends to a buffer and produces a text event carrying the
//     whole buffer;
//   - a Done chunk first produces a usage event (prompt + completion tokens),
//     then its text event;
//   - a source error produces one more text event, buffer + "\n" +
//     ErrorPrefix + cause, with Failed set;
//   - the sequence always ends with a single EventEnd.
//
// Stopping iteration early stops the source; the buffer is local to each
// iteration, so the sequence may be ranged over only once per source.
func StreamEvents(src ChunkSource) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		var buf strings.Builder
		stopped := false

		err := src(func(c Chunk) bool {
			if stopped {
				return false
			}
			if c.Done && !yield(UsageEvent(c.PromptTokens+c.CompletionTokens)) {
				stopped = true
				return false
			}
			buf.WriteString(c.Text)
			if !yield(TextEvent(buf.String())) {
				stopped = true
				return false
			}
			return true
		})
		if stopped {
			return
		}
		if err != nil && !yield(FailureEvent(buf.String()+"\n"+errorText(err))) {
			return
		}
		yield(EndEvent())
	}
}

// CollectStream drains events into a Result: the last text event and the
// reported usage. A failed stream reports no usage.
func CollectStream(events iter.Seq[Event]) Result {
	var (
		res    Result
		failed bool
	)
	for ev := range events {
		switch ev.Kind {
		case EventText:
			res.Text = ev.Text
			failed = failed || ev.Failed
		case EventUsage:
			res.Usage = ev.Tokens
		}
	}
	if failed {
		res.Usage = 0
	}
	return res
}
