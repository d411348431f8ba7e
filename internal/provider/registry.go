package provider

import (
	"fmt"

	"github.com/TobiSchelling/PinForge/internal/article"
	"github.com/TobiSchelling/PinForge/internal/settings"
)

// TextKind selects the text backend.
type TextKind string

const (
	TextOpenAI    TextKind = "openai"
	TextAnthropic TextKind = "anthropic"
)

// ParseTextKind converts a config value to a TextKind.
func ParseTextKind(s string) (TextKind, error) {
	switch TextKind(s) {
	case TextOpenAI, "":
		return TextOpenAI, nil
	case TextAnthropic:
		return TextAnthropic, nil
	}
	return "", fmt.Errorf("unknown text provider %q", s)
}

// Registry maps models to adapters. A nil adapter means the backend is not
// set up in this deployment.
type Registry struct {
	OpenAIText    TextGenerator
	AnthropicText TextGenerator
	DallE         ImageGenerator
	Stability     ImageGenerator
	Midjourney    ImageGenerator
	ImageFX       ImageGenerator
}

// Text returns the text adapter for kind and the provider whose key it needs.
func (r *Registry) Text(kind TextKind) (TextGenerator, settings.Provider, error) {
	var (
		gen TextGenerator
		p   settings.Provider
	)
	switch kind {
	case TextOpenAI:
		gen, p = r.OpenAIText, settings.OpenAI
	case TextAnthropic:
		gen, p = r.AnthropicText, settings.Anthropic
	default:
		return nil, "", fmt.Errorf("unknown text provider %q", kind)
	}
	if gen == nil {
		return nil, p, &article.ConfigurationError{Provider: p.DisplayName(), Reason: "text backend not available"}
	}
	return gen, p, nil
}

// Completer returns the free-form completion backend for kind.
func (r *Registry) Completer(kind TextKind) (Completer, settings.Provider, error) {
	gen, p, err := r.Text(kind)
	if err != nil {
		return nil, p, err
	}
	c, ok := gen.(Completer)
	if !ok {
		return nil, p, &article.ConfigurationError{Provider: p.DisplayName(), Reason: "text backend cannot answer free-form prompts"}
	}
	return c, p, nil
}

// Image returns the image adapter for model and the provider whose key it needs.
func (r *Registry) Image(model article.Model) (ImageGenerator, settings.Provider, error) {
	var (
		gen ImageGenerator
		p   settings.Provider
	)
	switch model {
	case article.ModelFluxDev:
		gen, p = r.DallE, settings.OpenAI
	case article.ModelIdeogram:
		gen, p = r.Stability, settings.Stability
	case article.ModelMidjourney:
		gen, p = r.Midjourney, settings.Midjourney
	case article.ModelImageFX:
		gen, p = r.ImageFX, settings.Google
	default:
		return nil, "", &article.ValidationError{Field: "model", Reason: fmt.Sprintf("unknown model %q", model)}
	}
	if gen == nil {
		return nil, p, &article.ConfigurationError{
			Provider: p.DisplayName(),
			Reason:   fmt.Sprintf("image backend for %s not available", model),
		}
	}
	return gen, p, nil
}
