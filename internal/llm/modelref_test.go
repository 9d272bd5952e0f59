package llm

import "testing"

func TestParseModelRef_ValidFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		model    string
		provider Provider
		id       string
	}{
		{name: "bare provider", model: "qwen", provider: ProviderQwen},
		{name: "upper case provider", model: "Gemini", provider: ProviderGemini},
		{name: "openai", model: "openai/gpt-4o", provider: ProviderOpenAI, id: "gpt-4o"},
		{name: "ollama tag", model: "ollama/llava:13b", provider: ProviderOllama, id: "llava:13b"},
		{name: "nested model id", model: "zhipu/glm/4v", provider: ProviderZhipu, id: "glm/4v"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ref, err := ParseModelRef(tc.model)
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if ref.Provider != tc.provider {
				t.Fatalf("provider mismatch: want %q got %q", tc.provider, ref.Provider)
			}
			if ref.Model != tc.id {
				t.Fatalf("model id mismatch: want %q got %q", tc.id, ref.Model)
			}
			if got := ref.Config(); got.Provider != tc.provider || got.ModelName != tc.id {
				t.Fatalf("unexpected config: %+v", got)
			}
		})
	}
}

func TestParseModelRef_InvalidFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		model string
	}{
		{name: "empty", model: ""},
		{name: "unknown-provider", model: "foo/gpt-4o"},
		{name: "path-like", model: "configs/vision.yaml"},
		{name: "openai-empty-id", model: "openai/"},
		{name: "anthropic-empty-id", model: "anthropic/"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseModelRef(tc.model); err == nil {
				t.Fatalf("expected error for model %q", tc.model)
			}
			if IsModelRef(tc.model) {
				t.Fatalf("expected IsModelRef(%q) to be false", tc.model)
			}
		})
	}
}
