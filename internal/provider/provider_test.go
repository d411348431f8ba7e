package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TobiSchelling/PinForge/internal/article"
	"github.com/TobiSchelling/PinForge/internal/imagestore"
	"github.com/TobiSchelling/PinForge/internal/settings"
)

func TestOpenAITextSplitsSections(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "gpt-4" {
			t.Errorf("expected model gpt-4, got %s", body.Model)
		}
		if len(body.Messages) > 0 {
			prompt = body.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":0,"model":"gpt-4",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant",
			"content":"## Intro\nHello world.\n\n## Tips\nWater daily."}}]}`)
	}))
	defer srv.Close()

	gen := NewOpenAIText("", srv.URL+"/v1/")
	parts, err := gen.GenerateText(context.Background(), "sk-test", TextRequest{
		Title:    "Garden",
		Sections: []string{"Intro", "Tips"},
		Keywords: []string{"roses"},
	})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if len(parts) != 2 || parts[0] != "Hello world." || parts[1] != "Water daily." {
		t.Errorf("unexpected sections %q", parts)
	}
	if !strings.Contains(prompt, `Write an article about "Garden"`) || !strings.Contains(prompt, "Include these keywords: roses") {
		t.Errorf("unexpected prompt %q", prompt)
	}
}

func TestOpenAIFailureClassification(t *testing.T) {
	cases := []struct {
		status    int
		body      string
		retryable bool
	}{
		{http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit","code":"rate_limit_exceeded"}}`, true},
		{http.StatusTooManyRequests, `{"error":{"message":"quota","type":"insufficient_quota","code":"insufficient_quota"},"message":"quota","type":"insufficient_quota","code":"insufficient_quota"}`, false},
		{http.StatusInternalServerError, `{"error":{"message":"boom"}}`, true},
		{http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, false},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(c.status)
			io.WriteString(w, c.body)
		}))

		_, err := NewOpenAIText("", srv.URL+"/v1/").Complete(context.Background(), "sk-test", "hi", 10)
		srv.Close()

		var f *Failure
		if !errors.As(err, &f) {
			t.Fatalf("status %d: expected *Failure, got %v", c.status, err)
		}
		if f.StatusCode != c.status {
			t.Errorf("expected status %d, got %d", c.status, f.StatusCode)
		}
		if f.Retryable != c.retryable {
			t.Errorf("status %d body %s: expected retryable=%v", c.status, c.body, c.retryable)
		}
	}
}

func TestDallESizeMapping(t *testing.T) {
	var size string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Size string `json:"size"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		size = body.Size
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"created":0,"data":[{"url":"https://img.example/1.png"}]}`)
	}))
	defer srv.Close()

	gen := NewDallE("", srv.URL+"/v1/")
	for in, want := range map[article.ImageSize]string{
		article.Size3x4: "1024x1792",
		article.Size2x3: "1024x1792",
		article.Size3x2: "1792x1024",
	} {
		url, err := gen.GenerateImage(context.Background(), "sk-test", ImageRequest{Prompt: "p", Size: in})
		if err != nil {
			t.Fatalf("GenerateImage: %v", err)
		}
		if url != "https://img.example/1.png" {
			t.Errorf("unexpected url %q", url)
		}
		if size != want {
			t.Errorf("size %s: expected %s, got %s", in, want, size)
		}
	}
}

func TestAnthropicText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "sk-ant-test" {
			t.Errorf("missing api key header")
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"## One\nFirst part."}],
			"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer srv.Close()

	gen := NewAnthropicText("claude", srv.URL+"/")
	parts, err := gen.GenerateText(context.Background(), "sk-ant-test", TextRequest{Title: "T", Sections: []string{"One", "Two"}})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if len(parts) != 1 || parts[0] != "First part." {
		t.Errorf("unexpected sections %q", parts)
	}
}

func TestStabilityStoresImage(t *testing.T) {
	png := []byte("\x89PNG fake")
	var aspect, mode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		aspect = r.FormValue("aspect_ratio")
		mode = r.FormValue("mode")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"image":         base64.StdEncoding.EncodeToString(png),
			"finish_reason": "SUCCESS",
		})
	}))
	defer srv.Close()

	blobs, err := imagestore.NewFS(t.TempDir(), "/images")
	if err != nil {
		t.Fatal(err)
	}
	gen := NewStability(srv.URL, blobs)

	url, err := gen.GenerateImage(context.Background(), "sk-x", ImageRequest{Prompt: "p", Size: article.Size2x3})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if !strings.HasPrefix(url, "/images/") {
		t.Errorf("unexpected url %q", url)
	}
	if aspect != "2:3" {
		t.Errorf("expected aspect 2:3, got %q", aspect)
	}

	if _, err := gen.GenerateImage(context.Background(), "sk-x", ImageRequest{Prompt: "p", Size: article.Size3x4, Reference: []byte("ref")}); err != nil {
		t.Fatalf("GenerateImage with reference: %v", err)
	}
	if mode != "image-to-image" {
		t.Errorf("expected image-to-image mode, got %q", mode)
	}
}

func TestStabilityRateLimitIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	blobs, _ := imagestore.NewFS(t.TempDir(), "/images")
	_, err := NewStability(srv.URL, blobs).GenerateImage(context.Background(), "sk-x", ImageRequest{Prompt: "p", Size: article.Size3x4})
	if !IsRetryable(err) {
		t.Errorf("expected retryable failure, got %v", err)
	}
}

func TestMidjourneyPollsUntilFinished(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "mj-key" {
			t.Errorf("missing X-API-Key")
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == "POST" && r.URL.Path == "/imagine":
			io.WriteString(w, `{"task_id":"t1","status":"pending"}`)
		case r.Method == "GET" && r.URL.Path == "/task/t1":
			if polls.Add(1) < 2 {
				io.WriteString(w, `{"task_id":"t1","status":"processing"}`)
				return
			}
			io.WriteString(w, `{"task_id":"t1","status":"finished","image_url":"https://mj.example/t1.png"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	gen := NewMidjourney(srv.URL)
	gen.PollInterval = 5 * time.Millisecond

	url, err := gen.GenerateImage(context.Background(), "mj-key", ImageRequest{Prompt: "p", Size: article.Size3x4})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if url != "https://mj.example/t1.png" {
		t.Errorf("unexpected url %q", url)
	}
	if polls.Load() != 2 {
		t.Errorf("expected 2 polls, got %d", polls.Load())
	}
}

func TestMidjourneyFailedTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"task_id":"t1","status":"failed","error":"banned prompt"}`)
	}))
	defer srv.Close()

	_, err := NewMidjourney(srv.URL).GenerateImage(context.Background(), "k", ImageRequest{Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "banned prompt") {
		t.Errorf("expected failed task error, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("failed task should not be retryable")
	}
}

func TestImageFXRequest(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"images":[{"url":"https://fx.example/a.png"}]}`)
	}))
	defer srv.Close()

	url, err := NewImageFX(srv.URL).GenerateImage(context.Background(), "g-key", ImageRequest{
		Prompt: "p", Size: article.Size3x2, Reference: []byte("ref"),
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if url != "https://fx.example/a.png" {
		t.Errorf("unexpected url %q", url)
	}
	if body["size"] != "1152x768" {
		t.Errorf("unexpected size %v", body["size"])
	}
	ref, ok := body["reference_image"].(map[string]any)
	if !ok || ref["weight"] != 0.5 {
		t.Errorf("unexpected reference_image %v", body["reference_image"])
	}
}

func TestImageFXBadRequestNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, "bad prompt")
	}))
	defer srv.Close()

	_, err := NewImageFX(srv.URL).GenerateImage(context.Background(), "g", ImageRequest{Prompt: "p"})
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if f.Retryable || f.StatusCode != http.StatusBadRequest || f.Reason != "bad prompt" {
		t.Errorf("unexpected failure %+v", f)
	}
}

func TestRegistryImage(t *testing.T) {
	r := &Registry{DallE: NewDallE("", ""), ImageFX: NewImageFX("")}

	_, p, err := r.Image(article.ModelFluxDev)
	if err != nil || p != settings.OpenAI {
		t.Errorf("flux-dev: got %s, %v", p, err)
	}
	_, p, err = r.Image(article.ModelImageFX)
	if err != nil || p != settings.Google {
		t.Errorf("imagefx: got %s, %v", p, err)
	}

	_, _, err = r.Image(article.ModelMidjourney)
	var cerr *article.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Errorf("expected ConfigurationError for missing backend, got %v", err)
	}

	_, _, err = r.Image("bogus")
	var verr *article.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for unknown model, got %v", err)
	}
}

func TestRegistryCompleter(t *testing.T) {
	r := &Registry{AnthropicText: NewAnthropicText("", "")}

	c, p, err := r.Completer(TextAnthropic)
	if err != nil || c == nil || p != settings.Anthropic {
		t.Errorf("anthropic: got %v, %s, %v", c, p, err)
	}

	_, _, err = r.Completer(TextOpenAI)
	var cerr *article.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Errorf("expected ConfigurationError for missing backend, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
	if !IsRetryable(context.DeadlineExceeded) {
		t.Error("deadline should be retryable")
	}
	if IsRetryable(context.Canceled) {
		t.Error("cancel should not be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain error should not be retryable")
	}
}
