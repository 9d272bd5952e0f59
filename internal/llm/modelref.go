package llm

import (
	"fmt"
	"strings"
)

// ModelRef is the "<provider>/<model>" shorthand accepted wherever a bare
// provider name is.
type ModelRef struct {
	Raw      string
	Provider Provider
	Model    string
}

func ParseModelRef(model string) (ModelRef, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return ModelRef{}, fmt.Errorf("model is empty")
	}

	parts := strings.SplitN(model, "/", 2)
	p, err := ParseProvider(parts[0])
	if err != nil {
		return ModelRef{}, err
	}
	ref := ModelRef{Raw: model, Provider: p}
	if len(parts) == 2 {
		if parts[1] == "" {
			return ModelRef{}, fmt.Errorf("model id is empty in %q", model)
		}
		ref.Model = parts[1]
	}
	return ref, nil
}

// IsModelRef reports whether s parses as a provider name or
// "<provider>/<model>" shorthand.
func IsModelRef(s string) bool {
	_, err := ParseModelRef(s)
	return err == nil
}

// Config returns a Config naming the referenced provider and model.
func (r ModelRef) Config() Config {
	return Config{Provider: r.Provider, ModelName: r.Model}
}
