package llm

import (
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ProviderError is an API-level failure reported by a backend, rendered
// into a message that is readable once embedded in sentinel text.
type ProviderError struct {
	Provider   Provider
	StatusCode int
	Detail     string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s api error", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func ClassifyOpenAIError(provider Provider, err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	detail := apiErr.Message
	if apiErr.Param != "" {
		detail = "param " + apiErr.Param + ": " + detail
	}
	return &ProviderError{Provider: provider, StatusCode: apiErr.StatusCode, Detail: detail, Err: err}
}

func ClassifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	detail := strings.TrimSpace(apiErr.RawJSON())
	if apiErr.RequestID != "" {
		detail = "request_id " + apiErr.RequestID + ": " + detail
	}
	return &ProviderError{Provider: ProviderAnthropic, StatusCode: apiErr.StatusCode, Detail: detail, Err: err}
}

func ClassifyGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	detail := apiErr.Message
	if apiErr.Status != "" {
		detail = apiErr.Status + ": " + detail
	}
	return &ProviderError{Provider: ProviderGemini, StatusCode: apiErr.Code, Detail: detail, Err: err}
}
