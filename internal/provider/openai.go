package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/TobiSchelling/PinForge/internal/article"
)

const (
	DefaultOpenAITextModel  = "gpt-4"
	DefaultOpenAIImageModel = "dall-e-3"
	defaultMaxTokens        = 2048
)

// openAIOptions returns the request options shared by the OpenAI adapters.
// SDK retries are disabled: the dispatcher owns the retry policy.
func openAIOptions(apiKey, baseURL string, httpClient *http.Client) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return opts
}

// openAIFailure classifies an error returned by the OpenAI SDK.
func openAIFailure(name string, err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return transportFailure(name, err)
	}
	f := &Failure{
		Provider:   name,
		StatusCode: apiErr.StatusCode,
		Reason:     apiErr.Message,
		Retryable:  retryableStatus(apiErr.StatusCode),
	}
	if f.Reason == "" {
		f.Reason = http.StatusText(apiErr.StatusCode)
	}
	// A 429 for an exhausted quota will not clear on retry.
	if apiErr.Code == "insufficient_quota" {
		f.Retryable = false
	}
	return f
}

// OpenAIText generates article text with the OpenAI chat completions API.
type OpenAIText struct {
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewOpenAIText creates an OpenAI text adapter.
func NewOpenAIText(model, baseURL string) *OpenAIText {
	if model == "" {
		model = DefaultOpenAITextModel
	}
	return &OpenAIText{Model: model, BaseURL: baseURL}
}

// Complete sends a single prompt and returns the raw completion.
func (o *OpenAIText) Complete(ctx context.Context, apiKey, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	client := openai.NewClient(openAIOptions(apiKey, o.BaseURL, o.HTTPClient)...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(o.Model),
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		MaxTokens: openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return "", openAIFailure("OpenAI", err)
	}
	if len(resp.Choices) == 0 {
		return "", &Failure{Provider: "OpenAI", Reason: "no choices in response"}
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateText implements TextGenerator.
func (o *OpenAIText) GenerateText(ctx context.Context, apiKey string, req TextRequest) ([]string, error) {
	content, err := o.Complete(ctx, apiKey, BuildArticlePrompt(req), req.MaxTokens)
	if err != nil {
		return nil, err
	}
	return SplitSections(content, len(req.Sections)), nil
}

// DallE generates images with the OpenAI images API.
type DallE struct {
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewDallE creates a DALL-E adapter.
func NewDallE(model, baseURL string) *DallE {
	if model == "" {
		model = DefaultOpenAIImageModel
	}
	return &DallE{Model: model, BaseURL: baseURL}
}

func dallESize(size article.ImageSize) openai.ImageGenerateParamsSize {
	if size == article.Size3x2 {
		return openai.ImageGenerateParamsSize1792x1024
	}
	return openai.ImageGenerateParamsSize1024x1792
}

// GenerateImage implements ImageGenerator. The endpoint takes no reference
// image, so req.Reference is ignored.
func (d *DallE) GenerateImage(ctx context.Context, apiKey string, req ImageRequest) (string, error) {
	client := openai.NewClient(openAIOptions(apiKey, d.BaseURL, d.HTTPClient)...)

	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(d.Model),
		N:              openai.Int(1),
		Size:           dallESize(req.Size),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return "", openAIFailure("DALL-E", err)
	}
	if len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].URL) == "" {
		return "", &Failure{Provider: "DALL-E", Reason: "no image URL in response"}
	}
	return resp.Data[0].URL, nil
}
