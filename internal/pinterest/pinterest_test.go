package pinterest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/PinForge/internal/keywords"
	"github.com/TobiSchelling/PinForge/internal/metrics"
)

func TestSearchByKeyword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pins/search", r.URL.Path)
		assert.Equal(t, "boho decor", r.URL.Query().Get("query"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"items":[
			{"id":"1","title":"Boho","link":"https://a.com/x","save_count":12,"comment_count":3,"reaction_counts":{"total":4}},
			{"id":"2","save_count":1}
		]}`))
	}))
	defer srv.Close()

	pins, err := NewClient(srv.URL, "tok").SearchByKeyword(context.Background(), "boho decor", 100)
	require.NoError(t, err)
	require.Len(t, pins, 2)
	assert.Equal(t, keywords.Pin{ID: "1", Title: "Boho", Link: "https://a.com/x", Saves: 12, Comments: 3, Reactions: 4}, pins[0])
	assert.Equal(t, 1, pins[1].Saves)
}

func TestSearchByKeywordError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"bad token"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok").SearchByKeyword(context.Background(), "x", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 401")
	assert.Contains(t, err.Error(), "bad token")
}

func TestMissingToken(t *testing.T) {
	_, err := NewClient("", "").Trending(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTrendingShapes(t *testing.T) {
	bodies := map[string]string{
		"array":    `[{"term":"Boho Decor"},{"term":" "},{"term":"boho wedding"}]`,
		"envelope": `{"trends":[{"keyword":"Boho Decor"},{"term":"boho wedding"}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/trends", r.URL.Path)
				assert.Equal(t, "home_decor", r.URL.Query().Get("category"))
				w.Write([]byte(body))
			}))
			defer srv.Close()

			terms, err := NewClient(srv.URL, "tok").Trending(context.Background(), "home_decor")
			require.NoError(t, err)
			assert.Equal(t, []string{"Boho Decor", "boho wedding"}, terms)
		})
	}
}

type countingSource struct {
	searches int
	trends   int
}

func (s *countingSource) SearchByKeyword(_ context.Context, term string, _ int) ([]keywords.Pin, error) {
	s.searches++
	return []keywords.Pin{{ID: term, Saves: 5}}, nil
}

func (s *countingSource) Trending(context.Context, string) ([]string, error) {
	s.trends++
	return []string{"a", "b"}, nil
}

func newTestCache(t *testing.T, src keywords.Source) (*Cache, *miniredis.Miniredis, *metrics.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	m := metrics.New(prometheus.NewRegistry())
	return NewCache(src, rdb, time.Minute, nil, m), mr, m
}

func TestCacheReadThrough(t *testing.T) {
	src := &countingSource{}
	c, mr, m := newTestCache(t, src)
	ctx := context.Background()

	first, err := c.SearchByKeyword(ctx, "Garden", 10)
	require.NoError(t, err)
	second, err := c.SearchByKeyword(ctx, " garden ", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, src.searches)
	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PinterestCacheHits.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PinterestCacheHits.WithLabelValues("miss")))

	mr.FastForward(2 * time.Minute)
	_, err = c.SearchByKeyword(ctx, "garden", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, src.searches)
}

func TestCacheTrending(t *testing.T) {
	src := &countingSource{}
	c, _, _ := newTestCache(t, src)
	ctx := context.Background()

	for range 3 {
		terms, err := c.Trending(ctx, "food")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, terms)
	}
	assert.Equal(t, 1, src.trends)
}

func TestCacheFallsThroughWhenRedisDown(t *testing.T) {
	src := &countingSource{}
	c, mr, _ := newTestCache(t, src)
	mr.Close()

	pins, err := c.SearchByKeyword(context.Background(), "garden", 10)
	require.NoError(t, err)
	assert.Len(t, pins, 1)
	assert.Equal(t, 1, src.searches)
}

func TestDialRequiresAddress(t *testing.T) {
	_, err := Dial(context.Background(), "", "", 0)
	assert.ErrorIs(t, err, ErrEmptyAddress)
}
