package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/PinForge/internal/keywords"
	"github.com/TobiSchelling/PinForge/internal/settings"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Providers  Providers  `yaml:"providers"`
	Generation Generation `yaml:"generation"`
	Keywords   Keywords   `yaml:"keywords"`
	Pinterest  Pinterest  `yaml:"pinterest"`
	Cache      Cache      `yaml:"cache"`
	Storage    Storage    `yaml:"storage"`
	Suggest    Suggest    `yaml:"suggest"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

// Providers names the environment variable holding each provider's API key.
type Providers struct {
	OpenAIKeyEnv     string `yaml:"openai_key_env"`
	AnthropicKeyEnv  string `yaml:"anthropic_key_env"`
	StabilityKeyEnv  string `yaml:"stability_key_env"`
	MidjourneyKeyEnv string `yaml:"midjourney_key_env"`
	GoogleAIKeyEnv   string `yaml:"google_ai_key_env"`
	ReplicateKeyEnv  string `yaml:"replicate_key_env"`
}

type Generation struct {
	TextProvider      string        `yaml:"text_provider"`
	TextModel         string        `yaml:"text_model"`
	AnthropicModel    string        `yaml:"anthropic_model"`
	ImageModel        string        `yaml:"image_model"`
	MaxTokens         int           `yaml:"max_tokens"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	MaxConcurrency    int           `yaml:"max_concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	AnthropicBaseURL  string        `yaml:"anthropic_base_url"`
	StabilityBaseURL  string        `yaml:"stability_base_url"`
	MidjourneyBaseURL string        `yaml:"midjourney_base_url"`
	ImageFXBaseURL    string        `yaml:"imagefx_base_url"`
}

type Keywords struct {
	Ceilings        keywords.Ceilings `yaml:"ceilings"`
	SearchLimit     int               `yaml:"search_limit"`
	TrackDomain     string            `yaml:"track_domain"`
	RefreshSchedule string            `yaml:"refresh_schedule"`
	Concurrency     int               `yaml:"concurrency"`
}

type Pinterest struct {
	BaseURL        string `yaml:"base_url"`
	AccessTokenEnv string `yaml:"access_token_env"`
}

// Cache configures the redis cache for Pinterest lookups. An empty address disables it.
type Cache struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

type Storage struct {
	Driver    string `yaml:"driver"`
	PublicURL string `yaml:"public_url"`
	MinIO     MinIO  `yaml:"minio"`
}

type MinIO struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
	Bucket       string `yaml:"bucket"`
	UseSSL       bool   `yaml:"use_ssl"`
	PublicURL    string `yaml:"public_url"`
}

// Suggest configures the sources used to seed title suggestions.
type Suggest struct {
	Feeds    []Feed `yaml:"feeds"`
	MaxItems int    `yaml:"max_items"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
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

// ConfigDir returns the XDG config directory for pinforge.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "pinforge")
}

// DataDir returns the XDG data directory for pinforge.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "pinforge")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/pinforge/config.yaml > ./config.yaml
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
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'pinforge init' to create a default config",
		xdgConfig,
	)
}

// LoadEnv loads API keys from .env files. The config directory's .env is
// read first, then ./.env; variables already set in the environment win.
func LoadEnv() error {
	for _, path := range []string{filepath.Join(ConfigDir(), ".env"), ".env"} {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Providers: Providers{
			OpenAIKeyEnv:     "OPENAI_API_KEY",
			AnthropicKeyEnv:  "ANTHROPIC_API_KEY",
			StabilityKeyEnv:  "STABILITY_API_KEY",
			MidjourneyKeyEnv: "MIDJOURNEY_API_KEY",
			GoogleAIKeyEnv:   "GOOGLE_AI_API_KEY",
			ReplicateKeyEnv:  "REPLICATE_API_TOKEN",
		},
		Generation: Generation{
			TextProvider:      "openai",
			TextModel:         "gpt-4",
			AnthropicModel:    "claude-sonnet-4-5",
			ImageModel:        "dall-e-3",
			MaxTokens:         2048,
			CallTimeout:       120 * time.Second,
			MaxRetries:        2,
			RetryDelay:        time.Second,
			MaxConcurrency:    4,
			RequestsPerSecond: 2,
			StabilityBaseURL:  "https://api.stability.ai",
			ImageFXBaseURL:    "https://api.labs.google",
		},
		Keywords: Keywords{
			Ceilings:        keywords.DefaultCeilings(),
			SearchLimit:     100,
			RefreshSchedule: "0 */6 * * *",
			Concurrency:     4,
		},
		Pinterest: Pinterest{
			BaseURL:        "https://api.pinterest.com/v5",
			AccessTokenEnv: "PINTEREST_ACCESS_TOKEN",
		},
		Cache: Cache{TTL: 6 * time.Hour},
		Storage: Storage{
			Driver: "fs",
			MinIO: MinIO{
				AccessKeyEnv: "MINIO_ACCESS_KEY",
				SecretKeyEnv: "MINIO_SECRET_KEY",
				Bucket:       "pinforge-images",
			},
		},
		Suggest: Suggest{MaxItems: 20},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Generation.TextProvider) {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("generation.text_provider: unsupported provider %q", c.Generation.TextProvider)
	}
	switch c.Storage.Driver {
	case "fs", "minio":
	default:
		return fmt.Errorf("storage.driver: unsupported driver %q", c.Storage.Driver)
	}
	if c.Generation.MaxRetries < 0 {
		return fmt.Errorf("generation.max_retries must not be negative")
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// ImageDir is where the filesystem blob store writes generated images.
func (c *Config) ImageDir() string {
	return filepath.Join(c.GetDataDir(), "images")
}

// ProviderConfig reads every provider key from the environment.
func (c *Config) ProviderConfig() settings.ProviderConfig {
	return settings.ProviderConfig{
		OpenAIKey:     env(c.Providers.OpenAIKeyEnv),
		AnthropicKey:  env(c.Providers.AnthropicKeyEnv),
		StabilityKey:  env(c.Providers.StabilityKeyEnv),
		MidjourneyKey: env(c.Providers.MidjourneyKeyEnv),
		GoogleAIKey:   env(c.Providers.GoogleAIKeyEnv),
		ReplicateKey:  env(c.Providers.ReplicateKeyEnv),
	}
}

// PinterestToken returns the Pinterest access token from the environment.
func (c *Config) PinterestToken() string {
	return env(c.Pinterest.AccessTokenEnv)
}

// MinIOCredentials returns the MinIO access and secret keys from the environment.
func (c *Config) MinIOCredentials() (string, string) {
	return env(c.Storage.MinIO.AccessKeyEnv), env(c.Storage.MinIO.SecretKeyEnv)
}

func env(name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
