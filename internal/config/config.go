package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	APIKey       string `mapstructure:"api_key" yaml:"api_key"`
	DefaultModel string `mapstructure:"default_model" yaml:"default_model"`
	DocType      string `mapstructure:"doc_type" yaml:"doc_type"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`

	// Data directories. All default to subdirectories of ~/.specloom.
	SpecsDir  string `mapstructure:"specs_dir" yaml:"specs_dir"`
	CacheDir  string `mapstructure:"cache_dir" yaml:"cache_dir"`
	LogDir    string `mapstructure:"log_dir" yaml:"log_dir"`
	PromptDir string `mapstructure:"prompt_dir" yaml:"prompt_dir"`

	// Cache policy
	CacheExpiryHours int `mapstructure:"cache_expiry_hours" yaml:"cache_expiry_hours"`

	// Generation parameters
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`
}

// DocTypeProductRequirements is the default document type.
const DocTypeProductRequirements = "product_requirements"

// DocTypeEngineeringTodo partitions generated task lists.
const DocTypeEngineeringTodo = "engineering_todo"

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.specloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".specloom")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by the caller) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SPECLOOM")
	v.AutomaticEnv()

	v.SetDefault("default_model", "gemini-2.0-flash")
	v.SetDefault("doc_type", DocTypeProductRequirements)
	v.SetDefault("log_level", "info")
	v.SetDefault("cache_expiry_hours", 24*7)
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("http_timeout_sec", 120)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 2000)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".specloom")
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.resolveDirs(); err != nil {
		return nil, err
	}
	return &c, nil
}

// resolveDirs fills in unset directories under ~/.specloom and creates them.
func (c *Global) resolveDirs() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home dir: %w", err)
	}
	root := filepath.Join(home, ".specloom")
	if c.SpecsDir == "" {
		c.SpecsDir = filepath.Join(root, "specs")
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(root, "cache")
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(root, "logs")
	}
	if c.PromptDir == "" {
		c.PromptDir = filepath.Join(root, "prompts")
	}
	for _, dir := range []string{c.SpecsDir, c.CacheDir, c.LogDir, c.PromptDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return nil
}
