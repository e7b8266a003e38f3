package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file at the repo root.
const FileName = "journalrag.yaml"

// Config represents the top-level journalrag.yaml configuration.
type Config struct {
	Business  BusinessConfig  `yaml:"business" mapstructure:"business"`
	COA       COAConfig       `yaml:"coa" mapstructure:"coa"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Oracle    OracleConfig    `yaml:"oracle" mapstructure:"oracle"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Retrieval RetrievalConfig `yaml:"retrieval" mapstructure:"retrieval"`
	Ledger    LedgerConfig    `yaml:"ledger" mapstructure:"ledger"`
	Logger    LoggerConfig    `yaml:"logger" mapstructure:"logger"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// BusinessConfig identifies the business entity.
type BusinessConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
}

// COAConfig locates the chart-of-accounts source file.
type COAConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // relative to the repo root
}

// EmbeddingConfig selects the embedding capability.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // "openai" or "hash"
	Model      string `yaml:"model" mapstructure:"model"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"` // hash provider only
	BatchSize  int    `yaml:"batch_size" mapstructure:"batch_size"`
	CachePath  string `yaml:"cache_path,omitempty" mapstructure:"cache_path"`
}

// OracleConfig controls the classification oracle calls.
type OracleConfig struct {
	Model              string  `yaml:"model" mapstructure:"model"`
	Temperature        float32 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens          int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSeconds     int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxRetries         int     `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMillis int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	PromptsPath        string  `yaml:"prompts_path,omitempty" mapstructure:"prompts_path"`
}

// Timeout returns the per-attempt oracle timeout.
func (o OracleConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// Backoff returns the base delay between oracle retries.
func (o OracleConfig) Backoff() time.Duration {
	return time.Duration(o.RetryBackoffMillis) * time.Millisecond
}

// OpenAIConfig holds OpenAI API credentials. The key is normally supplied
// through OPENAI_API_KEY and is never written by Save.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// RetrievalConfig controls candidate retrieval.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" mapstructure:"top_k"`
}

// LedgerConfig holds the fixed accounts used by the journal assembler.
type LedgerConfig struct {
	VATAccount     string  `yaml:"vat_account" mapstructure:"vat_account"`
	PayableAccount string  `yaml:"payable_account" mapstructure:"payable_account"`
	PrepaidAccount string  `yaml:"prepaid_account" mapstructure:"prepaid_account"`
	AccruedAccount string  `yaml:"accrued_account" mapstructure:"accrued_account"`
	ReviewAccount  string  `yaml:"review_account" mapstructure:"review_account"`
	PrepaidPeriods int     `yaml:"prepaid_periods" mapstructure:"prepaid_periods"`
	VATRate        float64 `yaml:"vat_rate" mapstructure:"vat_rate"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	OutputPath string `yaml:"output_path" mapstructure:"output_path"`
	Format     string `yaml:"format" mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Load reads a journalrag.yaml file, applying defaults and environment
// overrides (JOURNALRAG_<SECTION>_<KEY>, OPENAI_API_KEY). A .env file next
// to the config is loaded first when present.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("JOURNALRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	_ = v.BindEnv("openai.api_key", "JOURNALRAG_OPENAI_API_KEY", "OPENAI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file. The API key is left out.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.OpenAI.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(businessName string) *Config {
	return &Config{
		Business: BusinessConfig{Name: businessName},
		COA:      COAConfig{Path: filepath.Join("accounts", "chart-of-accounts.txt")},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 256,
			BatchSize:  64,
			CachePath:  filepath.Join(".journalrag-cache", "embeddings.db"),
		},
		Oracle: OracleConfig{
			Model:              "gpt-4",
			Temperature:        0,
			MaxTokens:          32,
			TimeoutSeconds:     60,
			MaxRetries:         2,
			RetryBackoffMillis: 500,
		},
		Retrieval: RetrievalConfig{TopK: 3},
		Ledger: LedgerConfig{
			VATAccount:     "1501",
			PayableAccount: "2000",
			PrepaidAccount: "1203",
			AccruedAccount: "6101",
			ReviewAccount:  "9999",
			PrepaidPeriods: 12,
			VATRate:        0.19,
		},
		Logger: LoggerConfig{
			Level:      "info",
			OutputPath: "stderr",
			Format:     "console",
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default("")
	v.SetDefault("business.name", d.Business.Name)
	v.SetDefault("coa.path", d.COA.Path)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)
	v.SetDefault("embedding.cache_path", "")

	v.SetDefault("oracle.model", d.Oracle.Model)
	v.SetDefault("oracle.temperature", d.Oracle.Temperature)
	v.SetDefault("oracle.max_tokens", d.Oracle.MaxTokens)
	v.SetDefault("oracle.timeout_seconds", d.Oracle.TimeoutSeconds)
	v.SetDefault("oracle.max_retries", d.Oracle.MaxRetries)
	v.SetDefault("oracle.retry_backoff_ms", d.Oracle.RetryBackoffMillis)
	v.SetDefault("oracle.prompts_path", "")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")

	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)

	v.SetDefault("ledger.vat_account", d.Ledger.VATAccount)
	v.SetDefault("ledger.payable_account", d.Ledger.PayableAccount)
	v.SetDefault("ledger.prepaid_account", d.Ledger.PrepaidAccount)
	v.SetDefault("ledger.accrued_account", d.Ledger.AccruedAccount)
	v.SetDefault("ledger.review_account", d.Ledger.ReviewAccount)
	v.SetDefault("ledger.prepaid_periods", d.Ledger.PrepaidPeriods)
	v.SetDefault("ledger.vat_rate", d.Ledger.VATRate)

	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.output_path", d.Logger.OutputPath)
	v.SetDefault("logger.format", d.Logger.Format)

	v.SetDefault("server.addr", d.Server.Addr)
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "openai", "hash":
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or \"hash\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "hash" && c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Oracle.MaxRetries < 0 {
		return fmt.Errorf("oracle.max_retries must not be negative, got %d", c.Oracle.MaxRetries)
	}
	if c.Ledger.PrepaidPeriods <= 0 {
		return fmt.Errorf("ledger.prepaid_periods must be positive, got %d", c.Ledger.PrepaidPeriods)
	}
	if c.Ledger.VATRate < 0 || c.Ledger.VATRate >= 1 {
		return fmt.Errorf("ledger.vat_rate must be in [0, 1), got %g", c.Ledger.VATRate)
	}
	accounts := map[string]string{
		"ledger.vat_account":     c.Ledger.VATAccount,
		"ledger.payable_account": c.Ledger.PayableAccount,
		"ledger.prepaid_account": c.Ledger.PrepaidAccount,
		"ledger.accrued_account": c.Ledger.AccruedAccount,
		"ledger.review_account":  c.Ledger.ReviewAccount,
	}
	for key, code := range accounts {
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("%s is required", key)
		}
	}
	return nil
}
