package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/PinForge/internal/article"
	"github.com/TobiSchelling/PinForge/internal/database"
	"github.com/TobiSchelling/PinForge/internal/dispatch"
	"github.com/TobiSchelling/PinForge/internal/keywords"
	"github.com/TobiSchelling/PinForge/internal/metrics"
	"github.com/TobiSchelling/PinForge/internal/provider"
	"github.com/TobiSchelling/PinForge/internal/settings"
)

type stubText struct{ err error }

func (s stubText) GenerateText(_ context.Context, _ string, req provider.TextRequest) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]string, len(req.Sections))
	for i, t := range req.Sections {
		out[i] = "All about **" + t + "**."
	}
	return out, nil
}

// stubImage fails slot 1 on its first attempt only.
type stubImage struct {
	mu        sync.Mutex
	failed    bool
	reference []byte
}

func (s *stubImage) GenerateImage(_ context.Context, _ string, req provider.ImageRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Reference != nil {
		s.reference = req.Reference
	}
	if req.Slot == 1 && !s.failed {
		s.failed = true
		return "", &provider.Failure{Provider: "DALL-E", StatusCode: 400, Reason: "rejected"}
	}
	return "https://img.example/" + strings.Fields(req.Prompt)[0] + ".png", nil
}

type stubSource struct{}

func (stubSource) SearchByKeyword(_ context.Context, term string, _ int) ([]keywords.Pin, error) {
	if term == "broken" {
		return nil, errors.New("pinterest API returned 500")
	}
	return []keywords.Pin{
		{ID: "a", Saves: 10, Link: "https://myblog.com/a"},
		{ID: "b", Saves: 500, Comments: 5},
	}, nil
}

func (stubSource) Trending(context.Context, string) ([]string, error) {
	return []string{"boho decor", "kitchen ideas"}, nil
}

type testEnv struct {
	srv   *Server
	db    *database.DB
	image *stubImage
	keys  settings.ProviderConfig
}

func newTestEnv(t *testing.T, text provider.TextGenerator, withKeywords bool) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{db: db, image: &stubImage{}, keys: settings.ProviderConfig{OpenAIKey: "sk-test"}}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	d := dispatch.New(&provider.Registry{OpenAIText: text, DallE: env.image}, db, dispatch.Config{
		CallTimeout: time.Second,
		RetryDelay:  time.Millisecond,
	}, nil, m)

	var kw *keywords.Engine
	if withKeywords {
		kw = keywords.NewEngine(stubSource{}, db, keywords.Config{TrackDomain: "myblog.com"}, nil, m)
	}

	imageDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(imageDir, "x.png"), []byte("png"), 0o644))

	env.srv, err = New(db, d, kw, func() settings.ProviderConfig { return env.keys }, Options{ImageDir: imageDir, Gatherer: reg})
	require.NoError(t, err)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func generateRequest() map[string]any {
	return map[string]any{
		"title":      "Cozy Reading Nook",
		"sections":   []map[string]string{{"title": "Lighting"}, {"title": "Seating"}},
		"model":      "flux-dev",
		"keywords":   []string{"nook"},
		"imageCount": 2,
		"imageSize":  "3:4",
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, stubText{}, false)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	env.do(t, http.MethodPost, "/api/articles", generateRequest())
	rec = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pinforge_generation_requests_total")
}

func TestServesImages(t *testing.T) {
	env := newTestEnv(t, stubText{}, false)
	rec := env.do(t, http.MethodGet, "/images/x.png", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())
}

func TestGenerateAndFetchArticle(t *testing.T) {
	env := newTestEnv(t, stubText{}, false)

	body := generateRequest()
	body["referenceImage"] = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("ref"))
	rec := env.do(t, http.MethodPost, "/api/articles", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	res := decode[dispatch.Result](t, rec)
	require.NotNil(t, res.Article)
	assert.Equal(t, article.StatusCompleted, res.Article.Status)
	assert.Len(t, res.Article.Images, 1)
	assert.Equal(t, []int{0}, res.ImageSlots)
	require.NotNil(t, res.Partial)
	assert.Equal(t, []int{1}, res.Partial.Slots())
	assert.Equal(t, []byte("ref"), env.image.reference)

	rec = env.do(t, http.MethodGet, "/api/articles/"+res.Article.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[article.Article](t, rec)
	assert.Equal(t, "Cozy Reading Nook", got.Title)
	assert.Equal(t, "All about **Lighting**.", got.Sections[0].Content)

	rec = env.do(t, http.MethodGet, "/api/articles", nil)
	list := decode[struct{ Articles []article.Article }](t, rec)
	assert.Len(t, list.Articles, 1)

	rec = env.do(t, http.MethodGet, "/api/articles/"+res.Article.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<strong>Lighting</strong>")
	assert.Contains(t, rec.Body.String(), `<section id="section-1">`)
}

func TestListArticlesStatusFilter(t *testing.T) {
	env := newTestEnv(t, stubText{}, false)
	_, err := env.db.InsertArticle(context.Background(), &article.Article{
		Title:   "Imported",
		Options: article.Options{Model: article.ModelFluxDev, ImageCount: 1, ImageSize: article.Size2x3},
		Status:  article.StatusProcessing,
	})
	require.NoError(t, err)
	rec := env.do(t, http.MethodPost, "/api/articles", generateRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/articles?status=processing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct{ Articles []article.Article }](t, rec)
	require.Len(t, list.Articles, 1)
	assert.Equal(t, "Imported", list.Articles[0].Title)

	rec = env.do(t, http.MethodGet, "/api/articles?status=queued", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateErrorMapping(t *testing.T) {
	env := newTestEnv(t, stubText{}, false)

	bad := generateRequest()
	bad["imageCount"] = 51
	rec := env.do(t, http.MethodPost, "/api/articles", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "imageCount", decode[map[string]any](t, rec)["field"])

	env.keys = settings.ProviderConfig{}
	rec = env.do(t, http.MethodPost, "/api/articles", generateRequest())
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	env.keys = settings.ProviderConfig{OpenAIKey: "wrong"}
	rec = env.do(t, http.MethodPost, "/api/articles", generateRequest())
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `sk-`)

	failing := newTestEnv(t, stubText{err: &provider.Failure{Provider: "OpenAI", StatusCode: 401, Reason: "bad key"}}, false)
	rec = failing.do(t, http.MethodPost, "/api/articles", generateRequest())
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	stats, err := failing.db.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalArticles)
}

func TestArticleActions(t *testing.T) {
	env := newTestEnv(t, stubText{}, false)
	rec := env.do(t, http.MethodPost, "/api/articles", generateRequest())
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[dispatch.Result](t, rec).Article.ID

	rec = env.do(t, http.MethodPost, "/api/articles/"+id+"/images/1", map[string]string{"prompt": "zzz custom"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	a := decode[article.Article](t, rec)
	assert.Equal(t, []string{"https://img.example/High.png", "https://img.example/zzz.png"}, a.Images)

	rec = env.do(t, http.MethodPost, "/api/articles/"+id+"/images/5", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/articles/"+id+"/wordpress", map[string]string{"postId": "42", "url": "https://blog/?p=42"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[article.Article](t, rec).WordPressDraft)

	rec = env.do(t, http.MethodDelete, "/api/articles/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/articles/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/articles/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKeywordRoutes(t *testing.T) {
	env := newTestEnv(t, stubText{}, true)

	rec := env.do(t, http.MethodPost, "/api/keywords", map[string]string{"keyword": "Boho Decor"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	k := decode[database.Keyword](t, rec)
	assert.Equal(t, "boho decor", k.Keyword)
	assert.Equal(t, 510, k.Saves)

	rec = env.do(t, http.MethodPost, "/api/keywords", map[string]string{"keyword": "boho decor"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/keywords", map[string]string{"keyword": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/keywords/"+k.ID+"/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[database.Keyword](t, rec).Position)

	rec = env.do(t, http.MethodPost, "/api/keywords/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[keywords.RefreshReport](t, rec)
	assert.Equal(t, 1, report.Updated)
	last, err := env.db.GetLastReport(context.Background(), database.RunKeywordRefresh)
	require.NoError(t, err)
	require.NotNil(t, last)

	rec = env.do(t, http.MethodGet, "/api/keywords?filter=boho", nil)
	assert.Len(t, decode[struct{ Keywords []database.Keyword }](t, rec).Keywords, 1)

	rec = env.do(t, http.MethodGet, "/api/keywords/research?seed=boho", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct{ Suggestions []keywords.Suggestion }](t, rec).Suggestions, 1)

	rec = env.do(t, http.MethodGet, "/api/pins/top?query=garden&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pins := decode[struct{ Pins []keywords.Pin }](t, rec).Pins
	require.Len(t, pins, 1)
	assert.Equal(t, "b", pins[0].ID)

	rec = env.do(t, http.MethodDelete, "/api/keywords/"+k.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/keywords/"+k.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKeywordRoutesUnavailable(t *testing.T) {
	env := newTestEnv(t, stubText{}, false)
	rec := env.do(t, http.MethodGet, "/api/keywords", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSettingsRoutes(t *testing.T) {
	env := newTestEnv(t, stubText{}, false)
	env.keys = settings.ProviderConfig{OpenAIKey: "sk-ok", StabilityKey: "nope"}

	rec := env.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "sk-ok")
	statuses := decode[struct{ Providers []providerStatus }](t, rec).Providers
	byProvider := map[settings.Provider]providerStatus{}
	for _, s := range statuses {
		byProvider[s.Provider] = s
	}
	assert.True(t, byProvider[settings.OpenAI].Valid)
	assert.False(t, byProvider[settings.Stability].Valid)
	assert.True(t, strings.Contains(byProvider[settings.Stability].Error, `"sk-"`))
	assert.False(t, byProvider[settings.Anthropic].Configured)

	rec = env.do(t, http.MethodPost, "/api/settings/validate", map[string]string{"provider": "replicate", "key": "r8_abc"})
	assert.Equal(t, true, decode[map[string]any](t, rec)["valid"])

	rec = env.do(t, http.MethodPost, "/api/settings/validate", map[string]string{"provider": "openai", "key": "xyz"})
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, false, resp["valid"])
	assert.Contains(t, resp["error"], `"sk-"`)

	rec = env.do(t, http.MethodPost, "/api/settings/validate", map[string]string{"provider": "bogus", "key": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
