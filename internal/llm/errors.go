package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorPrefix marks a failed call in Result.Text and in the final text event
// of a failed stream.
const ErrorPrefix = "**ERROR**: "

func IsErrorText(text string) bool {
	return strings.HasPrefix(text, ErrorPrefix)
}

func errorText(err error) string {
	return ErrorPrefix + err.Error()
}

type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string {
	return e.msg
}

func NewConfigError(format string, args ...any) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// UnavailableError reports a provider whose client is not compiled into
// this binary.
type UnavailableError struct {
	Provider Provider
	Hint     string
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("%s client is not installed", e.Provider)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

func IsUnavailable(err error) bool {
	var unavailable *UnavailableError
	return errors.As(err, &unavailable)
}
