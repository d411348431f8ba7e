package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/TobiSchelling/PinForge/internal/article"
)

const DefaultImageFXBaseURL = "https://api.labs.google"

// ImageFX generates images with Google ImageFX.
type ImageFX struct {
	BaseURL string
	client  *http.Client
}

// NewImageFX creates an ImageFX adapter.
func NewImageFX(baseURL string) *ImageFX {
	if baseURL == "" {
		baseURL = DefaultImageFXBaseURL
	}
	return &ImageFX{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func imageFXSize(size article.ImageSize) string {
	switch size {
	case article.Size2x3:
		return "768x1152"
	case article.Size3x2:
		return "1152x768"
	default:
		return "768x1024"
	}
}

// GenerateImage implements ImageGenerator.
func (g *ImageFX) GenerateImage(ctx context.Context, apiKey string, req ImageRequest) (string, error) {
	body := map[string]any{
		"prompt":     req.Prompt,
		"size":       imageFXSize(req.Size),
		"num_images": 1,
	}
	if len(req.Reference) > 0 {
		body["reference_image"] = map[string]any{
			"content": base64.StdEncoding.EncodeToString(req.Reference),
			"weight":  0.5,
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.BaseURL+"/v1/images/generate", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", transportFailure("ImageFX", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusFailure("ImageFX", resp)
	}

	var result struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &Failure{Provider: "ImageFX", Reason: "decoding response: " + err.Error()}
	}
	if len(result.Images) == 0 || result.Images[0].URL == "" {
		return "", &Failure{Provider: "ImageFX", Reason: "no image in response"}
	}
	return result.Images[0].URL, nil
}
