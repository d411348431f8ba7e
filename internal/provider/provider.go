// Package provider contains the adapters for the external text and image
// generation services. Adapters hold no credentials: the API key is passed
// with every call, so one adapter value serves all users concurrently.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/TobiSchelling/PinForge/internal/article"
)

// TextRequest is the input of a text generation call.
type TextRequest struct {
	Title      string
	Sections   []string
	TextPrompt string
	Keywords   []string
	MaxTokens  int
}

// ImageRequest is the input of a single image generation call.
type ImageRequest struct {
	Prompt    string
	Size      article.ImageSize
	Reference []byte
	Slot      int
}

// ImageResult is the outcome of one image slot.
type ImageResult struct {
	Slot int
	URL  string
	Err  error
}

// TextGenerator produces the article text, split into one entry per section.
type TextGenerator interface {
	GenerateText(ctx context.Context, apiKey string, req TextRequest) ([]string, error)
}

// Completer answers a free-form prompt. Both text adapters implement it.
type Completer interface {
	Complete(ctx context.Context, apiKey, prompt string, maxTokens int) (string, error)
}

// ImageGenerator produces one image and returns its URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, apiKey string, req ImageRequest) (string, error)
}

// Failure is a classified provider error.
type Failure struct {
	Provider   string
	StatusCode int
	Reason     string
	Retryable  bool
}

func (f *Failure) Error() string {
	if f.StatusCode > 0 {
		return fmt.Sprintf("%s returned %d: %s", f.Provider, f.StatusCode, f.Reason)
	}
	return fmt.Sprintf("%s: %s", f.Provider, f.Reason)
}

// retryableStatus reports whether an HTTP status is worth another attempt.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// statusFailure builds a Failure from a non-2xx response.
func statusFailure(provider string, resp *http.Response) *Failure {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &Failure{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Reason:     strings.TrimSpace(string(body)),
		Retryable:  retryableStatus(resp.StatusCode),
	}
}

// transportFailure classifies an error from the HTTP client itself.
func transportFailure(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &Failure{Provider: provider, Reason: err.Error(), Retryable: isTimeout(err)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Retryable
	}
	return isTimeout(err)
}

// AsFailure converts any error into a Failure for reporting.
func AsFailure(provider string, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Provider: provider, Reason: err.Error(), Retryable: isTimeout(err)}
}
