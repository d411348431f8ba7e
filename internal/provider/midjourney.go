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

const defaultPollInterval = 3 * time.Second

// Midjourney generates images through a Midjourney proxy API: a task is
// submitted and then polled until it finishes.
type Midjourney struct {
	BaseURL      string
	PollInterval time.Duration
	client       *http.Client
}

// NewMidjourney creates a Midjourney adapter.
func NewMidjourney(baseURL string) *Midjourney {
	return &Midjourney{
		BaseURL:      baseURL,
		PollInterval: defaultPollInterval,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

type midjourneyTask struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	ImageURL string `json:"image_url"`
	Error    string `json:"error"`
}

// GenerateImage implements ImageGenerator. It blocks until the task is done
// or ctx expires.
func (m *Midjourney) GenerateImage(ctx context.Context, apiKey string, req ImageRequest) (string, error) {
	prompt := fmt.Sprintf("%s --ar %s", req.Prompt, midjourneyAspect(req.Size))
	body := map[string]any{"prompt": prompt}
	if len(req.Reference) > 0 {
		body["image_base64"] = base64.StdEncoding.EncodeToString(req.Reference)
	}

	var task midjourneyTask
	if err := m.do(ctx, apiKey, "POST", "/imagine", body, &task); err != nil {
		return "", err
	}
	if task.TaskID == "" {
		return "", &Failure{Provider: "Midjourney", Reason: "no task id in response"}
	}

	ticker := time.NewTicker(m.PollInterval)
	defer ticker.Stop()
	for {
		switch task.Status {
		case "finished":
			if task.ImageURL == "" {
				return "", &Failure{Provider: "Midjourney", Reason: "finished task has no image"}
			}
			return task.ImageURL, nil
		case "failed":
			return "", &Failure{Provider: "Midjourney", Reason: "task failed: " + task.Error}
		}

		select {
		case <-ctx.Done():
			return "", transportFailure("Midjourney", ctx.Err())
		case <-ticker.C:
		}

		id := task.TaskID
		if err := m.do(ctx, apiKey, "GET", "/task/"+id, nil, &task); err != nil {
			return "", err
		}
		if task.TaskID == "" {
			task.TaskID = id
		}
	}
}

func (m *Midjourney) do(ctx context.Context, apiKey, method, path string, body any, out any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.BaseURL+path, payload)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return transportFailure("Midjourney", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusFailure("Midjourney", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Failure{Provider: "Midjourney", Reason: "decoding response: " + err.Error()}
	}
	return nil
}

func midjourneyAspect(size article.ImageSize) string {
	switch size {
	case article.Size2x3:
		return "2:3"
	case article.Size3x2:
		return "3:2"
	default:
		return "3:4"
	}
}
