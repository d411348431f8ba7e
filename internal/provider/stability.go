package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/TobiSchelling/PinForge/internal/imagestore"
)

const (
	DefaultStabilityBaseURL = "https://api.stability.ai"
	referenceStrength       = "0.5"
)

// Stability generates images with the Stability AI stable-image API. The API
// returns image bytes, which are written to Blobs.
type Stability struct {
	BaseURL string
	Blobs   imagestore.Store
	client  *http.Client
}

// NewStability creates a Stability adapter.
func NewStability(baseURL string, blobs imagestore.Store) *Stability {
	if baseURL == "" {
		baseURL = DefaultStabilityBaseURL
	}
	return &Stability{
		BaseURL: baseURL,
		Blobs:   blobs,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// GenerateImage implements ImageGenerator.
func (s *Stability) GenerateImage(ctx context.Context, apiKey string, req ImageRequest) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	endpoint := s.BaseURL + "/v2beta/stable-image/generate/core"
	fields := map[string]string{
		"prompt":        req.Prompt,
		"output_format": "png",
	}
	if len(req.Reference) > 0 {
		endpoint = s.BaseURL + "/v2beta/stable-image/generate/sd3"
		fields["mode"] = "image-to-image"
		fields["strength"] = referenceStrength
		part, err := w.CreateFormFile("image", "reference.png")
		if err != nil {
			return "", fmt.Errorf("creating form file: %w", err)
		}
		if _, err := part.Write(req.Reference); err != nil {
			return "", fmt.Errorf("writing reference image: %w", err)
		}
	} else {
		fields["aspect_ratio"] = string(req.Size)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("writing field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", transportFailure("Stability", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusFailure("Stability", resp)
	}

	var result struct {
		Image        string `json:"image"`
		FinishReason string `json:"finish_reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &Failure{Provider: "Stability", Reason: "decoding response: " + err.Error()}
	}
	if result.FinishReason != "" && result.FinishReason != "SUCCESS" {
		return "", &Failure{Provider: "Stability", Reason: "generation finished with " + result.FinishReason}
	}

	data, err := base64.StdEncoding.DecodeString(result.Image)
	if err != nil || len(data) == 0 {
		return "", &Failure{Provider: "Stability", Reason: "no image data in response"}
	}

	url, err := s.Blobs.Put(ctx, data, "image/png")
	if err != nil {
		return "", fmt.Errorf("storing image: %w", err)
	}
	return url, nil
}
