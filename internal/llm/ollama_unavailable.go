//go:build noollama

package llm

func newOllamaDriver(Config) (driver, error) {
	return nil, &UnavailableError{
		Provider: ProviderOllama,
		Hint:     "this binary was built with -tags noollama",
	}
}
