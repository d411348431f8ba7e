package suggest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	reply  string
	err    error
	prompt string
	key    string
}

func (f *fakeCompleter) Complete(_ context.Context, apiKey, prompt string, _ int) (string, error) {
	f.key = apiKey
	f.prompt = prompt
	return f.reply, f.err
}

const rssFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Decor Daily</title>
<item><title>Older Post</title><link>https://decor.example/1</link><pubDate>Sun, 01 Feb 2026 10:00:00 GMT</pubDate></item>
<item><title>  Boho   Bedroom Ideas </title><link>https://decor.example/2</link><pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate></item>
<item><title></title><link>https://decor.example/3</link></item>
</channel></rss>`

const referencePage = `<html><head><title>Linen Bedding Guide</title></head><body>
<nav>Home | About</nav>
<article>
<h1>Linen Bedding Guide</h1>
<p>Linen bedding keeps a bedroom cool in summer and warm in winter. The fibres are hollow, so they
breathe and wick moisture away from the skin, which is why stonewashed linen sheets have become a staple
of relaxed bedroom styling across Pinterest boards.</p>
<p>When choosing linen, look at the weight of the fabric, the weave and the finish. Heavier linen lasts
longer and softens with every wash, while lighter linen drapes beautifully over a low platform bed.</p>
<p>Pair neutral linen with textured throws, rattan furniture and plenty of plants for a calm look.</p>
</article>
</body></html>`

func TestParseSuggestions(t *testing.T) {
	got, err := parseSuggestions("```json\n{\"suggestions\": [\"A\", \" a \", \"B\", \"\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got)

	got, err = parseSuggestions(`["x", "y"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got)

	_, err = parseSuggestions(`{"suggestions": []}`)
	assert.Error(t, err)

	_, err = parseSuggestions("not json")
	assert.Error(t, err)
}

func TestTitlesWithFeedAndReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.xml":
			w.Header().Set("Content-Type", "application/rss+xml")
			w.Write([]byte(rssFeed))
		case "/guide":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(referencePage))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fc := &fakeCompleter{reply: `{"suggestions": ["1", "2", "3", "4"]}`}
	feeds := NewFeedReader([]Feed{{URL: srv.URL + "/feed.xml", Name: "Decor Daily"}, {URL: srv.URL + "/missing"}}, 5, nil)
	s := New(fc, "sk-test", feeds, NewPageFetcher(0), nil)

	got, err := s.Titles(context.Background(), "bedroom decor", Options{UseFeeds: true, ReferenceURL: srv.URL + "/guide"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, got)
	assert.Equal(t, "sk-test", fc.key)

	assert.Contains(t, fc.prompt, `"bedroom decor"`)
	assert.Contains(t, fc.prompt, "- Boho Bedroom Ideas (Decor Daily)")
	assert.Less(t, strings.Index(fc.prompt, "Boho Bedroom Ideas"), strings.Index(fc.prompt, "Older Post"))
	assert.Contains(t, fc.prompt, "Linen bedding keeps a bedroom cool")
}

func TestTitlesSkipsBrokenReference(t *testing.T) {
	fc := &fakeCompleter{reply: `["Only"]`}
	s := New(fc, "", nil, NewPageFetcher(0), nil)

	got, err := s.Titles(context.Background(), "garden", Options{ReferenceURL: "not a url"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Only"}, got)
	assert.NotContains(t, fc.prompt, "Reference article")
}

func TestSuggestErrors(t *testing.T) {
	s := New(&fakeCompleter{err: errors.New("boom")}, "", nil, nil, nil)

	_, err := s.Titles(context.Background(), "  ", Options{})
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = s.Keywords(context.Background(), "garden")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestKeywordsAndPinDescriptions(t *testing.T) {
	fc := &fakeCompleter{reply: `{"suggestions": ["garden path", "garden bench"]}`}
	s := New(fc, "", nil, nil, nil)
	s.Count = 5

	kws, err := s.Keywords(context.Background(), "garden")
	require.NoError(t, err)
	assert.Len(t, kws, 2)
	assert.Contains(t, fc.prompt, "Suggest 5 related Pinterest search keywords")

	_, err = s.PinDescriptions(context.Background(), "Garden Paths", []string{"diy", "outdoor"})
	require.NoError(t, err)
	assert.Contains(t, fc.prompt, "diy, outdoor")

	_, err = s.PinDescriptions(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestExtractSourceName(t *testing.T) {
	assert.Equal(t, "Thekitchn", extractSourceName("https://www.thekitchn.com/main.rss"))
	assert.Equal(t, "Example", extractSourceName("https://feeds.example.org/rss"))
}
