package llm

import "strings"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Language string

const (
	LanguageChinese Language = "Chinese"
	LanguageEnglish Language = "English"
)

// ParseLanguage normalizes a language name. Empty input selects Chinese;
// unrecognized names are kept verbatim and select the English prompt.
func ParseLanguage(s string) Language {
	s = strings.TrimSpace(s)
	switch {
	case s == "", strings.EqualFold(s, string(LanguageChinese)):
		return LanguageChinese
	case strings.EqualFold(s, string(LanguageEnglish)):
		return LanguageEnglish
	default:
		return Language(s)
	}
}

// Config selects and parameterizes a vision backend.
type Config struct {
	Provider  Provider `json:"provider" yaml:"provider"`
	ModelName string   `json:"model_name,omitempty" yaml:"model_name,omitempty"`
	APIKey    string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Language  Language `json:"lang,omitempty" yaml:"lang,omitempty"`
	BaseURL   string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Image is attached by Chat/ChatStream to the last user turn.
	Image Image `json:"-"`
}

func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// GenerationOptions carries the sampling knobs a caller chose to set.
// Nil fields are not sent to the backend.
type GenerationOptions struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
}

// Result is the outcome of a non-streaming call. Failed calls carry an
// ErrorPrefix-marked Text and zero Usage.
type Result struct {
	Text  string `json:"text"`
	Usage int    `json:"usage"`
}

func (r Result) Failed() bool {
	return IsErrorText(r.Text)
}

type EventKind int

const (
	EventText EventKind = iota + 1
	EventUsage
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventUsage:
		return "usage"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is one element of a streamed chat. Text events carry the full
// answer accumulated so far, not the delta. Usage and End events carry an
// integer in Tokens; End is always 0. Failed is set only on the text event
// a stream emits after its source failed.
type Event struct {
	Kind   EventKind `json:"kind"`
	Text   string    `json:"text,omitempty"`
	Tokens int       `json:"tokens,omitempty"`
	Failed bool      `json:"failed,omitempty"`
}

func TextEvent(text string) Event {
	return Event{Kind: EventText, Text: text}
}

// FailureEvent is the final text event of a failed stream.
func FailureEvent(text string) Event {
	return Event{Kind: EventText, Text: text, Failed: true}
}

func UsageEvent(tokens int) Event {
	return Event{Kind: EventUsage, Tokens: tokens}
}

func EndEvent() Event {
	return Event{Kind: EventEnd}
}
