package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

const (
	// DefaultMaxPerProvider is used when providers.max_per_provider is unset.
	DefaultMaxPerProvider = 10
	// MaxPerProviderCeiling bounds fan-out cost per provider call.
	MaxPerProviderCeiling = 25
)

type Config struct {
	Environment string    `yaml:"environment"`
	Providers   Providers `yaml:"providers"`
	Ingest      Ingest    `yaml:"ingest"`
	Classify    Classify  `yaml:"classify"`
	Output      Output    `yaml:"output"`
	Server      Server    `yaml:"server"`
	Logging     Logging   `yaml:"logging"`
	Tracing     Tracing   `yaml:"tracing"`
}

type Providers struct {
	Selected       []string      `yaml:"selected"`
	MaxPerProvider int           `yaml:"max_per_provider"`
	Timeout        time.Duration `yaml:"timeout"`
	Retries        int           `yaml:"retries"`
	UserAgent      string        `yaml:"user_agent"`
	Keywords       []string      `yaml:"keywords"`
	NewsAPI        NewsAPI       `yaml:"newsapi"`
	Finnhub        Finnhub       `yaml:"finnhub"`
	GDELT          GDELT         `yaml:"gdelt"`
	RSS            RSS           `yaml:"rss"`

	// Production silences the custom-provider reminder.
	Production bool `yaml:"-"`
}

type NewsAPI struct {
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	DaysBack  int    `yaml:"days_back"`
}

type Finnhub struct {
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	DaysBack  int    `yaml:"days_back"`
}

type GDELT struct {
	BaseURL string        `yaml:"base_url"`
	Window  time.Duration `yaml:"window"`
}

type RSS struct {
	Feeds []Feed `yaml:"feeds"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Ingest struct {
	HistoryLimit     int           `yaml:"history_limit"`
	BatchCap         int           `yaml:"batch_cap"`
	DefaultEventType string        `yaml:"default_event_type"`
	Timeout          time.Duration `yaml:"timeout"`
	DemoSeed         bool          `yaml:"demo_seed"`
	DemoURL          string        `yaml:"demo_url"`
}

type Classify struct {
	LLMFallback bool   `yaml:"llm_fallback"`
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKey      string `yaml:"api_key"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name to a slog level. Unknown names
// mean INFO.
func (l Logging) SlogLevel() slog.Level {
	switch strings.ToUpper(strings.TrimSpace(l.Level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type Tracing struct {
	Enabled bool `yaml:"enabled"`
}

// ConfigDir returns the XDG config directory for triggerwatch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "triggerwatch")
}

// DataDir returns the XDG data directory for triggerwatch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "triggerwatch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/triggerwatch/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'triggerwatch init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file, then resolves secrets from the
// environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	cfg.ResolveSecrets(os.Getenv)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Environment: "development",
		Providers: Providers{
			MaxPerProvider: DefaultMaxPerProvider,
			Timeout:        10 * time.Second,
			Retries:        2,
			UserAgent:      "triggerwatch/1.0 (+https://triggerwatch.app)",
			Keywords: []string{
				"funding", "acquisition", "partnership", "launch", "hires", "expansion",
			},
			NewsAPI: NewsAPI{
				APIKeyEnv: "NEWSAPI_KEY",
				BaseURL:   "https://newsapi.org",
				DaysBack:  14,
			},
			Finnhub: Finnhub{
				APIKeyEnv: "FINNHUB_API_KEY",
				BaseURL:   "https://finnhub.io",
				DaysBack:  7,
			},
			GDELT: GDELT{
				BaseURL: "https://api.gdeltproject.org",
				Window:  72 * time.Hour,
			},
		},
		Ingest: Ingest{
			HistoryLimit:     300,
			BatchCap:         25,
			DefaultEventType: "news",
			Timeout:          15 * time.Second,
			DemoURL:          "https://triggerwatch.app/demo",
		},
		Classify: Classify{
			Provider:    "openai",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   50,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Providers.MaxPerProvider = ClampMaxPerProvider(c.Providers.MaxPerProvider)
	if c.Providers.Retries < 0 {
		c.Providers.Retries = 0
	}
	if c.Ingest.HistoryLimit <= 0 {
		c.Ingest.HistoryLimit = 300
	}
	if c.Ingest.BatchCap <= 0 {
		c.Ingest.BatchCap = 25
	}
	if strings.TrimSpace(c.Ingest.DefaultEventType) == "" {
		c.Ingest.DefaultEventType = "news"
	}
	c.Providers.Production = c.IsProduction()
}

// Attempts is the number of tries per provider request: the first call plus
// Retries.
func (p Providers) Attempts() int {
	if p.Retries < 0 {
		return 1
	}
	return p.Retries + 1
}

// ClampMaxPerProvider clamps n to [1, MaxPerProviderCeiling]; zero or
// negative values mean "unset" and yield the default.
func ClampMaxPerProvider(n int) int {
	switch {
	case n <= 0:
		return DefaultMaxPerProvider
	case n > MaxPerProviderCeiling:
		return MaxPerProviderCeiling
	default:
		return n
	}
}

// ResolveSecrets fills empty API keys from the environment variables named
// by the *_env settings.
func (c *Config) ResolveSecrets(getenv func(string) string) {
	if c.Providers.NewsAPI.APIKey == "" && c.Providers.NewsAPI.APIKeyEnv != "" {
		c.Providers.NewsAPI.APIKey = strings.TrimSpace(getenv(c.Providers.NewsAPI.APIKeyEnv))
	}
	if c.Providers.Finnhub.APIKey == "" && c.Providers.Finnhub.APIKeyEnv != "" {
		c.Providers.Finnhub.APIKey = strings.TrimSpace(getenv(c.Providers.Finnhub.APIKeyEnv))
	}
	if c.Classify.APIKey == "" && c.Classify.APIKeyEnv != "" {
		c.Classify.APIKey = strings.TrimSpace(getenv(c.Classify.APIKeyEnv))
	}
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
