package provider

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
)

// Config represents the top-level structure of providers.yaml.
type Config struct {
	Client   ClientConfig            `yaml:"client"`
	Families map[string]FamilyConfig `yaml:"families"`
}

// ClientConfig tunes the retrying HTTP client shared by every adapter.
type ClientConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	RetryMax     int           `yaml:"retry_max"`
	RetryWaitMin time.Duration `yaml:"retry_wait_min"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max"`
}

// FamilyConfig holds the endpoint and concurrency bound of one provider family.
type FamilyConfig struct {
	BaseURL     string `yaml:"base_url"`
	Concurrency int    `yaml:"concurrency"`
}

// DefaultConfig returns the built-in provider endpoints.
func DefaultConfig() Config {
	return Config{
		Client: ClientConfig{
			Timeout:      10 * time.Second,
			RetryMax:     2,
			RetryWaitMin: 200 * time.Millisecond,
			RetryWaitMax: 2 * time.Second,
		},
		Families: map[string]FamilyConfig{
			domain.ProviderTwitter:   {BaseURL: "https://api.twitter.com/1.1", Concurrency: 4},
			domain.ProviderFacebook:  {BaseURL: "https://graph.facebook.com/v2.8", Concurrency: 4},
			domain.ProviderGoogle:    {BaseURL: "https://www.googleapis.com", Concurrency: 8},
			domain.ProviderInstagram: {BaseURL: "https://api.instagram.com/v1", Concurrency: 4},
		},
	}
}

// Family returns the configuration of a provider family, falling back to the defaults.
func (c Config) Family(name string) FamilyConfig {
	fc := c.Families[name]
	def := DefaultConfig().Families[name]
	if fc.BaseURL == "" {
		fc.BaseURL = def.BaseURL
	}
	if fc.Concurrency <= 0 {
		fc.Concurrency = def.Concurrency
	}
	if fc.Concurrency <= 0 {
		fc.Concurrency = 1
	}
	return fc
}

// Loader handles loading and parsing of providers.yaml
type Loader struct {
	filePath string
}

// NewLoader creates a new providers.yaml loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the providers file. An empty path yields DefaultConfig.
// Missing fields keep their default values.
func (l *Loader) Load() (Config, error) {
	cfg := DefaultConfig()
	if l.filePath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read providers file: %w", err)
	}

	data = expandEnvVariables(data)

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse providers yaml: %w", err)
	}

	for name := range cfg.Families {
		if _, ok := DefaultConfig().Families[name]; !ok {
			return Config{}, fmt.Errorf("unknown provider family %q", name)
		}
	}

	return cfg, nil
}

var envVariable = regexp.MustCompile(`\{\{\s*([A-Z0-9_]+)\s*\}\}`)

// expandEnvVariables replaces {{NAME}} placeholders with the value of the environment variable.
// Example: {{TWITTER_API_URL}} -> https://api.twitter.com/1.1
func expandEnvVariables(data []byte) []byte {
	return envVariable.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envVariable.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}
