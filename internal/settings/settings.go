// Package settings holds per-user provider API keys and validates their format.
package settings

import (
	"fmt"
	"strings"

	"github.com/TobiSchelling/PinForge/internal/article"
)

// Provider identifies an external service that needs an API key.
type Provider string

const (
	OpenAI     Provider = "openai"
	Anthropic  Provider = "anthropic"
	Stability  Provider = "stability"
	Midjourney Provider = "midjourney"
	Google     Provider = "google"
	Replicate  Provider = "replicate"
)

// AllProviders lists every provider in display order.
func AllProviders() []Provider {
	return []Provider{OpenAI, Anthropic, Stability, Midjourney, Google, Replicate}
}

var displayNames = map[Provider]string{
	OpenAI:     "OpenAI",
	Anthropic:  "Anthropic",
	Stability:  "Stability",
	Midjourney: "Midjourney",
	Google:     "Google AI",
	Replicate:  "Replicate",
}

// requiredPrefix holds the literal prefix a key must carry. Providers without
// an entry accept any non-empty key.
var requiredPrefix = map[Provider]string{
	OpenAI:    "sk-",
	Anthropic: "sk-ant-",
	Stability: "sk-",
	Replicate: "r8_",
}

// DisplayName returns the human-readable provider name.
func (p Provider) DisplayName() string {
	if n, ok := displayNames[p]; ok {
		return n
	}
	return string(p)
}

// ParseProvider converts a string to a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := displayNames[p]; !ok {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

// KeyFormatError is returned for a non-empty key with the wrong prefix.
type KeyFormatError struct {
	Provider Provider
	Prefix   string
}

func (e *KeyFormatError) Error() string {
	return fmt.Sprintf("Invalid %s API key format. Key should start with %q", e.Provider.DisplayName(), e.Prefix)
}

// Validate checks the format of key for provider p without any network call.
// An empty key is valid: it means "not configured".
func Validate(key string, p Provider) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	prefix, ok := requiredPrefix[p]
	if !ok {
		return nil
	}
	if !strings.HasPrefix(key, prefix) {
		return &KeyFormatError{Provider: p, Prefix: prefix}
	}
	return nil
}

// Valid reports whether Validate accepts key.
func Valid(key string, p Provider) bool {
	return Validate(key, p) == nil
}

// ProviderConfig carries one API key per provider. It is passed explicitly
// to every generation call.
type ProviderConfig struct {
	OpenAIKey     string
	AnthropicKey  string
	StabilityKey  string
	MidjourneyKey string
	GoogleAIKey   string
	ReplicateKey  string
}

// Key returns the configured key for p.
func (c ProviderConfig) Key(p Provider) string {
	switch p {
	case OpenAI:
		return strings.TrimSpace(c.OpenAIKey)
	case Anthropic:
		return strings.TrimSpace(c.AnthropicKey)
	case Stability:
		return strings.TrimSpace(c.StabilityKey)
	case Midjourney:
		return strings.TrimSpace(c.MidjourneyKey)
	case Google:
		return strings.TrimSpace(c.GoogleAIKey)
	case Replicate:
		return strings.TrimSpace(c.ReplicateKey)
	}
	return ""
}

// Require returns the key for p, or a ConfigurationError when it is missing or malformed.
func (c ProviderConfig) Require(p Provider) (string, error) {
	key := c.Key(p)
	if key == "" {
		return "", &article.ConfigurationError{
			Provider: p.DisplayName(),
			Reason:   "API key not configured",
		}
	}
	if err := Validate(key, p); err != nil {
		return "", &article.ConfigurationError{Provider: p.DisplayName(), Reason: err.Error()}
	}
	return key, nil
}

// Check validates every configured key and returns the failures by provider.
func (c ProviderConfig) Check() map[Provider]error {
	problems := make(map[Provider]error)
	for _, p := range AllProviders() {
		if err := Validate(c.Key(p), p); err != nil {
			problems[p] = err
		}
	}
	return problems
}

// Configured reports whether a non-empty key is present for p.
func (c ProviderConfig) Configured(p Provider) bool {
	return c.Key(p) != ""
}
