// Package config loads solver configuration from file and environment and
// initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is read once at
// process start and passed into constructors; components never consult
// viper or the environment directly.
type Config struct {
	Identity  IdentityConfig  `yaml:"identity" mapstructure:"identity"`
	Budgets   BudgetConfig    `yaml:"budgets" mapstructure:"budgets"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	AIPipe    AIPipeConfig    `yaml:"aipipe" mapstructure:"aipipe"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	PDFText   PDFTextConfig   `yaml:"pdftext" mapstructure:"pdftext"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// IdentityConfig holds the caller identity stamped onto every submission.
// Secret doubles as the shared secret checked by the serve endpoint.
type IdentityConfig struct {
	Email  string `yaml:"email" mapstructure:"email"`
	Secret string `yaml:"secret" mapstructure:"secret"`
}

// BudgetConfig bounds time and retries for a run.
type BudgetConfig struct {
	TaskSecs        int `yaml:"task_secs" mapstructure:"task_secs"`
	RunSecs         int `yaml:"run_secs" mapstructure:"run_secs"`
	MaxAttempts     int `yaml:"max_attempts" mapstructure:"max_attempts"`
	SubmitRetries   int `yaml:"submit_retries" mapstructure:"submit_retries"`
	SubmitBackoffMs int `yaml:"submit_backoff_ms" mapstructure:"submit_backoff_ms"`
}

// TaskBudget returns the per-task time budget.
func (b BudgetConfig) TaskBudget() time.Duration {
	return time.Duration(b.TaskSecs) * time.Second
}

// RunBudget returns the run-level time budget.
func (b BudgetConfig) RunBudget() time.Duration {
	return time.Duration(b.RunSecs) * time.Second
}

// SubmitBackoff returns the fixed delay between submit retries.
func (b BudgetConfig) SubmitBackoff() time.Duration {
	return time.Duration(b.SubmitBackoffMs) * time.Millisecond
}

// AnthropicConfig holds the primary LLM provider settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// AIPipeConfig holds the secondary HTTP LLM provider settings.
type AIPipeConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// FetchConfig configures the page fetcher.
type FetchConfig struct {
	Mode        string `yaml:"mode" mapstructure:"mode"` // "http" or "browser"
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// Timeout returns the per-fetch timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// PDFTextConfig configures PDF text extraction.
type PDFTextConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// ServerConfig configures the trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the subset of the configuration a given mode requires.
// Modes: "run", "batch", "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Budgets.TaskSecs > 0, "budgets.task_secs must be > 0")
	check(c.Budgets.RunSecs > 0, "budgets.run_secs must be > 0")
	check(c.Budgets.MaxAttempts >= 1 && c.Budgets.MaxAttempts <= 10,
		"budgets.max_attempts must be between 1 and 10")
	check(c.Fetch.Mode == "http" || c.Fetch.Mode == "browser",
		"fetch.mode must be http or browser")

	switch mode {
	case "run", "batch":
		// Identity may come from flags; nothing more to require here.
	case "serve":
		check(c.Server.Port > 0, "server.port must be > 0")
		check(c.Identity.Secret != "", "identity.secret is required for serve")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credential keys default to empty so AutomaticEnv can bind
	// them; viper only surfaces env vars for keys it already knows.
	v.SetDefault("identity.email", "")
	v.SetDefault("identity.secret", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("aipipe.key", "")
	v.SetDefault("budgets.task_secs", 170)
	v.SetDefault("budgets.run_secs", 600)
	v.SetDefault("budgets.max_attempts", 3)
	v.SetDefault("budgets.submit_retries", 2)
	v.SetDefault("budgets.submit_backoff_ms", 1500)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 256)
	v.SetDefault("anthropic.temperature", 0.1)
	v.SetDefault("aipipe.base_url", "https://aipipe.org/openrouter/v1")
	v.SetDefault("aipipe.model", "openai/gpt-4o-mini")
	v.SetDefault("fetch.mode", "http")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.user_agent", "solver-cli/1.0")
	v.SetDefault("pdftext.pdftotext_path", "pdftotext")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
