// Package config loads transbench settings from defaults, a YAML file,
// TRANSBENCH_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/transbench/internal/completion"
)

const (
	EnvPrefix      = "TRANSBENCH"
	ConfigName     = ".transbench"
	BackendProxy   = "proxy"
	BackendOpenAI  = "openai"
	BackendOllama  = "ollama"
	DefaultTimeout = 60 * time.Second
)

type Config struct {
	Backend        string        `mapstructure:"backend"`
	Model          string        `mapstructure:"model"`
	Temperature    float64       `mapstructure:"temperature"`
	Timeout        time.Duration `mapstructure:"timeout"`
	DetectLanguage bool          `mapstructure:"detect_language"`
	Verbose        bool          `mapstructure:"verbose"`

	Proxy   ProxyConfig   `mapstructure:"proxy"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Ollama  OllamaConfig  `mapstructure:"ollama"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Journal JournalConfig `mapstructure:"journal"`
	Serve   ServeConfig   `mapstructure:"serve"`
}

type ProxyConfig struct {
	URL string `mapstructure:"url"`
}

type OpenAIConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKeyEnv string `mapstructure:"api_key_env"`
}

type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Model replaces the request model, which names a hosted model.
	Model string `mapstructure:"model"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type ServeConfig struct {
	Addr string `mapstructure:"addr"`
	Raw  bool   `mapstructure:"raw"`
}

// SetDefaults registers every key so that environment variables bind even
// when no config file mentions them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendProxy)
	v.SetDefault("model", completion.DefaultModel)
	v.SetDefault("temperature", completion.DefaultTemperature)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("detect_language", false)
	v.SetDefault("verbose", false)

	v.SetDefault("proxy.url", completion.DefaultProxyURL)
	v.SetDefault("openai.base_url", completion.DefaultOpenAIBaseURL)
	v.SetDefault("openai.api_key_env", completion.DefaultAPIKeyEnv)
	v.SetDefault("ollama.base_url", completion.DefaultOllamaBaseURL)
	v.SetDefault("ollama.model", completion.DefaultOllamaModel)

	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.base_delay", 500*time.Millisecond)
	v.SetDefault("retry.max_delay", 8*time.Second)

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", DefaultJournalPath())

	v.SetDefault("serve.addr", "127.0.0.1:8787")
	v.SetDefault("serve.raw", false)
}

// DefaultJournalPath is ~/.transbench/journal.db, or a relative path when
// the home directory is unknown.
func DefaultJournalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".transbench", "journal.db")
	}
	return filepath.Join(home, ".transbench", "journal.db")
}

// Init prepares v: defaults, environment binding and the config file
// location. An explicit cfgFile replaces the $HOME/.transbench.yaml lookup.
func Init(v *viper.Viper, cfgFile string) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		return
	}
	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")
}

// Load reads the config file, if any, and decodes v. A missing default
// config file is not an error; a missing explicit one is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendProxy, BackendOpenAI, BackendOllama:
	default:
		return fmt.Errorf("invalid backend %q (want proxy, openai or ollama)", c.Backend)
	}
	if math.IsNaN(c.Temperature) || c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("invalid temperature %v (want 0..2)", c.Temperature)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %v", c.Timeout)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("invalid retry.max_attempts %d (want >= 1)", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("invalid retry delays %v..%v", c.Retry.BaseDelay, c.Retry.MaxDelay)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal.path is required when the journal is enabled")
	}
	if c.OpenAI.APIKeyEnv == "" {
		return errors.New("openai.api_key_env must name an environment variable")
	}
	return nil
}
