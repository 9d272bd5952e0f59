package llm

import (
	"errors"
	"reflect"
	"slices"
	"testing"
)

func chunkSource(chunks []Chunk, err error) ChunkSource {
	return func(yield func(Chunk) bool) error {
		for _, c := range chunks {
			if !yield(c) {
				return nil
			}
		}
		return err
	}
}

func TestStreamEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chunks []Chunk
		err    error
		want   []Event
	}{
		{
			name: "usage interleaved before final text",
			chunks: []Chunk{
				{Text: "Hel"},
				{Text: "lo"},
				{Done: true, PromptTokens: 3, CompletionTokens: 2},
			},
			want: []Event{TextEvent("Hel"), TextEvent("Hello"), UsageEvent(5), TextEvent("Hello"), EndEvent()},
		},
		{
			name:   "done chunk text is applied after usage",
			chunks: []Chunk{{Text: "a"}, {Text: "b", Done: true, CompletionTokens: 4}},
			want:   []Event{TextEvent("a"), UsageEvent(4), TextEvent("ab"), EndEvent()},
		},
		{
			name:   "error after partial output",
			chunks: []Chunk{{Text: "Hel"}},
			err:    errors.New("connection reset"),
			want:   []Event{TextEvent("Hel"), FailureEvent("Hel\n**ERROR**: connection reset"), EndEvent()},
		},
		{
			name: "error before any output",
			err:  errors.New("dial tcp: refused"),
			want: []Event{FailureEvent("\n**ERROR**: dial tcp: refused"), EndEvent()},
		},
		{
			name: "no chunks",
			want: []Event{EndEvent()},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := slices.Collect(StreamEvents(chunkSource(tc.chunks, tc.err)))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestStreamEvents_EarlyStopStopsSource(t *testing.T) {
	t.Parallel()

	pulled := 0
	src := func(yield func(Chunk) bool) error {
		for _, s := range []string{"a", "b", "c", "d"} {
			pulled++
			if !yield(Chunk{Text: s}) {
				return nil
			}
		}
		return nil
	}

	var seen []Event
	for ev := range StreamEvents(src) {
		seen = append(seen, ev)
		if len(seen) == 2 {
			break
		}
	}
	if pulled != 2 {
		t.Fatalf("expected source to stop after 2 chunks, pulled %d", pulled)
	}
	if seen[1].Text != "ab" {
		t.Fatalf("expected cumulative text ab, got %q", seen[1].Text)
	}
}

func TestStreamEvents_SourceIgnoringStopIsHarmless(t *testing.T) {
	t.Parallel()

	src := func(yield func(Chunk) bool) error {
		yield(Chunk{Text: "a"})
		yield(Chunk{Text: "b"})
		return errors.New("late failure")
	}
	n := 0
	for range StreamEvents(src) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("expected one event, got %d", n)
	}
}

func TestCollectStream(t *testing.T) {
	t.Parallel()

	ok := CollectStream(StreamEvents(chunkSource([]Chunk{{Text: "x"}, {Done: true, PromptTokens: 1, CompletionTokens: 1}}, nil)))
	if ok.Text != "x" || ok.Usage != 2 {
		t.Fatalf("unexpected result: %+v", ok)
	}

	failed := CollectStream(StreamEvents(chunkSource([]Chunk{{Text: "x"}}, errors.New("boom"))))
	if failed.Text != "x\n**ERROR**: boom" || failed.Usage != 0 {
		t.Fatalf("unexpected result: %+v", failed)
	}
}

func TestCollectStream_QuotedMarkerKeepsUsage(t *testing.T) {
	t.Parallel()

	answer := "The log shows:\n**ERROR**: disk full"
	res := CollectStream(StreamEvents(chunkSource([]Chunk{{Text: answer, Done: true, PromptTokens: 4, CompletionTokens: 3}}, nil)))
	if res.Text != answer || res.Usage != 7 {
		t.Fatalf("expected quoted marker answer with usage 7, got %+v", res)
	}

	failed := CollectStream(StreamEvents(chunkSource([]Chunk{{Text: "a", Done: true, CompletionTokens: 3}}, errors.New("reset"))))
	if failed.Usage != 0 {
		t.Fatalf("expected usage 0 after failure, got %d", failed.Usage)
	}
}
