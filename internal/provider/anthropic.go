package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultAnthropicModel = "claude-sonnet-4-5"

// AnthropicText generates article text with the Anthropic messages API.
type AnthropicText struct {
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewAnthropicText creates an Anthropic text adapter.
func NewAnthropicText(model, baseURL string) *AnthropicText {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicText{Model: model, BaseURL: baseURL}
}

func (a *AnthropicText) client(apiKey string) anthropic.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if a.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.BaseURL))
	}
	if a.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(a.HTTPClient))
	}
	return anthropic.NewClient(opts...)
}

// Complete sends a single prompt and returns the concatenated text blocks.
func (a *AnthropicText) Complete(ctx context.Context, apiKey, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	client := a.client(apiKey)

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &Failure{
				Provider:   "Anthropic",
				StatusCode: apiErr.StatusCode,
				Reason:     http.StatusText(apiErr.StatusCode),
				// 529 is the overloaded status and falls in the 5xx range.
				Retryable: retryableStatus(apiErr.StatusCode),
			}
		}
		return "", transportFailure("Anthropic", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", &Failure{Provider: "Anthropic", Reason: "no text in response"}
	}
	return b.String(), nil
}

// GenerateText implements TextGenerator.
func (a *AnthropicText) GenerateText(ctx context.Context, apiKey string, req TextRequest) ([]string, error) {
	content, err := a.Complete(ctx, apiKey, BuildArticlePrompt(req), req.MaxTokens)
	if err != nil {
		return nil, err
	}
	return SplitSections(content, len(req.Sections)), nil
}
