package llm

import (
	"strings"
)

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderQwen      Provider = "qwen"
	ProviderZhipu     Provider = "zhipu"
	ProviderOllama    Provider = "ollama"
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
)

// DefaultProvider is used when no configuration source names a provider.
const DefaultProvider = ProviderOpenAI

const (
	qwenBaseURL   = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	zhipuBaseURL  = "https://open.bigmodel.cn/api/paas/v4/"
	ollamaBaseURL = "http://localhost:11434"
)

type providerEntry struct {
	provider     Provider
	defaultModel string
	build        func(Config) (driver, error)
}

// registry is the closed set of backends, in the order Providers reports
// them. TestRegistryCoversProviders keeps it in sync with the constants.
var registry = [...]providerEntry{
	{provider: ProviderOpenAI, defaultModel: "gpt-4-vision-preview", build: openAICompatible(ProviderOpenAI, "")},
	{provider: ProviderQwen, defaultModel: "qwen-vl-max", build: openAICompatible(ProviderQwen, qwenBaseURL)},
	{provider: ProviderZhipu, defaultModel: "glm-4v", build: openAICompatible(ProviderZhipu, zhipuBaseURL)},
	{provider: ProviderOllama, defaultModel: "llava", build: newOllamaDriver},
	{provider: ProviderGemini, defaultModel: "gemini-pro-vision", build: newGeminiDriver},
	{provider: ProviderAnthropic, defaultModel: "claude-3-sonnet-20240229", build: newAnthropicDriver},
}

// Providers lists every registered provider identifier.
func Providers() []Provider {
	ret := make([]Provider, 0, len(registry))
	for _, entry := range registry {
		ret = append(ret, entry.provider)
	}
	return ret
}

func providerList() string {
	names := make([]string, 0, len(registry))
	for _, entry := range registry {
		names = append(names, string(entry.provider))
	}
	return strings.Join(names, ", ")
}

func lookupProvider(p Provider) (providerEntry, bool) {
	for _, entry := range registry {
		if entry.provider == p {
			return entry, true
		}
	}
	return providerEntry{}, false
}

// IsProvider reports whether s names a registered provider, ignoring case.
func IsProvider(s string) bool {
	_, ok := lookupProvider(Provider(strings.ToLower(strings.TrimSpace(s))))
	return ok
}

// ParseProvider resolves s to a registered provider. The error lists every
// valid identifier.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return "", NewConfigError("provider is empty: valid providers are %s", providerList())
	}
	if _, ok := lookupProvider(p); !ok {
		return "", NewConfigError("unsupported provider %q: valid providers are %s", s, providerList())
	}
	return p, nil
}

// DefaultModel returns the model used when a config leaves ModelName empty.
func DefaultModel(p Provider) string {
	entry, _ := lookupProvider(p)
	return entry.defaultModel
}
