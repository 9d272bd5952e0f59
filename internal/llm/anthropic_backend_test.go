package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
)

func newAnthropicTestServer(t *testing.T, captured *capturedRequests) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		captured.add(t, r)
		if stream, _ := captured.last()["stream"].(bool); stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, ev := range [][2]string{
				{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":1}}}`},
				{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
				{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`},
				{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`},
				{"content_block_stop", `{"type":"content_block_stop","index":0}`},
				{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}`},
				{"message_stop", `{"type":"message_stop"}`},
			} {
				_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev[0], ev[1])
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude","content":[{"type":"text","text":"a red square"}],"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":4}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicDescribe(t *testing.T) {
	t.Parallel()

	captured := &capturedRequests{}
	srv := newAnthropicTestServer(t, captured)
	m, err := New(Config{Provider: ProviderAnthropic, APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, raw := testPNG(t)
	res := m.Describe(context.Background(), ImageBytes(raw))
	if res.Text != "a red square" || res.Usage != 16 {
		t.Fatalf("unexpected result: %+v", res)
	}

	encoded, _ := json.Marshal(captured.last()["messages"])
	want, _ := ImageBytes(raw).Base64()
	if !strings.Contains(string(encoded), want) || !strings.Contains(string(encoded), `"media_type":"image/png"`) {
		t.Fatalf("expected base64 png image block, got %s", encoded)
	}
}

func TestAnthropicChatStream(t *testing.T) {
	t.Parallel()

	captured := &capturedRequests{}
	srv := newAnthropicTestServer(t, captured)
	m, err := New(Config{Provider: ProviderAnthropic, APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	presence := 0.4
	history := []Turn{{Role: RoleSystem, Content: "be brief"}, UserTurn("hi")}
	events := slices.Collect(m.ChatStream(context.Background(), "", history, GenerationOptions{PresencePenalty: &presence}, Image{}))

	want := []Event{TextEvent("Hel"), TextEvent("Hello"), UsageEvent(5), TextEvent("Hello"), EndEvent()}
	if !slices.Equal(events, want) {
		t.Fatalf("expected %v, got %v", want, events)
	}

	body := captured.last()
	if _, ok := body["presence_penalty"]; ok {
		t.Fatalf("expected presence_penalty to be dropped")
	}
	system, _ := json.Marshal(body["system"])
	if !strings.Contains(string(system), "be brief") {
		t.Fatalf("expected system block, got %s", system)
	}
}

func TestAnthropicChatParams_RejectsUnknownRole(t *testing.T) {
	t.Parallel()

	d := &anthropicDriver{model: "claude"}
	if _, err := d.chatParams([]Turn{{Role: "tool", Content: "x"}}, GenerationOptions{}); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	if _, err := d.chatParams(nil, GenerationOptions{}); err == nil {
		t.Fatalf("expected error for empty conversation")
	}
}
