package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/ansg191/deepdoc-vision/internal/llm"
)

const (
	EnvProvider = "DEEPDOC_VISION_PROVIDER"
	EnvModel    = "DEEPDOC_VISION_MODEL"
	EnvAPIKey   = "DEEPDOC_VISION_API_KEY"
	EnvLanguage = "DEEPDOC_VISION_LANG"
	EnvBaseURL  = "DEEPDOC_VISION_BASE_URL"
	// EnvConfigFile names a config file read before the variables above are
	// applied on top of it.
	EnvConfigFile = "DEEPDOC_VISION_CONFIG"
)

// SectionKey is the config file section holding the model settings.
const SectionKey = "vision_model"

var configExtensions = []string{".yaml", ".yml", ".json"}

// fileConfig is the decoded form of a vision_model section or structured
// mapping. Both lang and language are accepted.
type fileConfig struct {
	Provider  string `mapstructure:"provider"`
	ModelName string `mapstructure:"model_name"`
	APIKey    string `mapstructure:"api_key"`
	Lang      string `mapstructure:"lang"`
	Language  string `mapstructure:"language"`
	BaseURL   string `mapstructure:"base_url"`
}

func (c fileConfig) toConfig() llm.Config {
	lang := c.Lang
	if lang == "" {
		lang = c.Language
	}
	return llm.Config{
		Provider:  llm.Provider(c.Provider),
		ModelName: c.ModelName,
		APIKey:    c.APIKey,
		Language:  llm.Language(lang),
		BaseURL:   c.BaseURL,
	}
}

// Resolve turns input into a validated llm.Config. Accepted inputs:
//
//   - nil: the environment (see FromEnv)
//   - llm.Config or *llm.Config: used as given
//   - map[string]any / map[string]string: a structured mapping, optionally
//     nested under vision_model
//   - string: a provider id; else a config file when it has a config
//     extension or names an existing file; else "<provider>/<model>"
//
// The provider is validated in every case; errors are *llm.ConfigError.
func Resolve(input any) (llm.Config, error) {
	var (
		cfg llm.Config
		err error
	)
	switch v := input.(type) {
	case nil:
		cfg, err = FromEnv()
	case llm.Config:
		cfg = v
	case *llm.Config:
		if v == nil {
			cfg, err = FromEnv()
		} else {
			cfg = *v
		}
	case map[string]any:
		cfg, err = FromMap(v)
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		cfg, err = FromMap(m)
	case string:
		cfg, err = fromString(v)
	default:
		return llm.Config{}, llm.NewConfigError("unsupported config input of type %T", input)
	}
	if err != nil {
		return llm.Config{}, err
	}
	return normalize(cfg)
}

// NewModel resolves input and constructs the backend it names.
func NewModel(input any) (llm.Model, error) {
	cfg, err := Resolve(input)
	if err != nil {
		return nil, err
	}
	return llm.New(cfg)
}

func normalize(cfg llm.Config) (llm.Config, error) {
	if strings.TrimSpace(string(cfg.Provider)) == "" {
		cfg.Provider = llm.DefaultProvider
	}
	p, err := llm.ParseProvider(string(cfg.Provider))
	if err != nil {
		return llm.Config{}, err
	}
	cfg.Provider = p
	cfg.ModelName = strings.TrimSpace(cfg.ModelName)
	if cfg.ModelName == "" {
		cfg.ModelName = llm.DefaultModel(p)
	}
	cfg.Language = llm.ParseLanguage(string(cfg.Language))
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	return cfg, nil
}

// FromEnv reads the DEEPDOC_VISION_* variables. When EnvConfigFile is set
// that file is loaded first and non-empty variables override its fields.
func FromEnv() (llm.Config, error) {
	var cfg llm.Config
	if path := os.Getenv(EnvConfigFile); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return llm.Config{}, err
		}
	}
	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Provider = llm.Provider(v)
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.ModelName = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(EnvLanguage); v != "" {
		cfg.Language = llm.Language(v)
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	}
	return cfg, nil
}

// fromString applies the disambiguation order: a bare provider id first;
// then a config file extension or an existing file; then the
// "<provider>/<model>" shorthand; any other string is still tried as a path.
func fromString(s string) (llm.Config, error) {
	s = strings.TrimSpace(s)
	if p, err := llm.ParseProvider(s); err == nil {
		return llm.Config{Provider: p}, nil
	}
	if hasConfigExtension(s) || isRegularFile(s) {
		return LoadFile(s)
	}
	if ref, err := llm.ParseModelRef(s); err == nil {
		return ref.Config(), nil
	}
	cfg, err := LoadFile(s)
	if err != nil {
		return llm.Config{}, llm.NewConfigError(
			"%q is neither a provider nor a readable config file (%v): valid providers are %s",
			s, err, providerNames())
	}
	return cfg, nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func hasConfigExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range configExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadFile reads a YAML or JSON config file and decodes its vision_model
// section.
func LoadFile(path string) (llm.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return llm.Config{}, llm.NewConfigError("config file not found: %s", path)
		}
		return llm.Config{}, llm.NewConfigError("failed to read config file %s: %v", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return llm.Config{}, llm.NewConfigError("failed to parse config file %s: %v", path, err)
	}
	section, ok := doc[SectionKey]
	if !ok {
		return llm.Config{}, llm.NewConfigError("config file %s has no %s section", path, SectionKey)
	}
	m, ok := section.(map[string]any)
	if !ok {
		return llm.Config{}, llm.NewConfigError("config file %s: %s must be a mapping, got %T", path, SectionKey, section)
	}
	return decode(m)
}

// FromMap decodes a structured mapping. A mapping holding a vision_model
// mapping is unwrapped first. Unknown keys are ignored.
func FromMap(m map[string]any) (llm.Config, error) {
	if nested, ok := m[SectionKey].(map[string]any); ok {
		m = nested
	}
	return decode(m)
}

func decode(m map[string]any) (llm.Config, error) {
	var fc fileConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &fc,
	})
	if err != nil {
		return llm.Config{}, fmt.Errorf("create config decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return llm.Config{}, llm.NewConfigError("invalid %s config: %v", SectionKey, err)
	}
	return fc.toConfig(), nil
}

func providerNames() string {
	names := make([]string, 0, len(llm.Providers()))
	for _, p := range llm.Providers() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
