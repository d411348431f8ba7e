package suggest

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

const maxPerFeed = 20

// Feed is one RSS or Atom source of recent titles.
type Feed struct {
	URL  string
	Name string
}

// Headline is a recent entry of a feed.
type Headline struct {
	Title     string
	Source    string
	Published time.Time
}

// FeedReader collects recent headlines from RSS/Atom feeds.
type FeedReader struct {
	feeds    []Feed
	maxItems int
	timeout  time.Duration
	logger   *zap.Logger
}

// NewFeedReader creates a FeedReader returning at most maxItems headlines.
func NewFeedReader(feeds []Feed, maxItems int, logger *zap.Logger) *FeedReader {
	if maxItems <= 0 {
		maxItems = maxPerFeed
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedReader{feeds: feeds, maxItems: maxItems, timeout: 15 * time.Second, logger: logger}
}

// Headlines parses every feed and returns the newest headlines first. Feeds
// that fail to parse are logged and skipped.
func (fr *FeedReader) Headlines(ctx context.Context) []Headline {
	parser := gofeed.NewParser()
	var all []Headline
	for _, fc := range fr.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		feedCtx, cancel := context.WithTimeout(ctx, fr.timeout)
		feed, err := parser.ParseURLWithContext(fc.URL, feedCtx)
		cancel()
		if err != nil {
			fr.logger.Warn("Failed to parse feed", zap.String("url", fc.URL), zap.Error(err))
			continue
		}

		n := 0
		for _, item := range feed.Items {
			if n >= maxPerFeed {
				break
			}
			h, ok := parseItem(item, name)
			if !ok {
				continue
			}
			all = append(all, h)
			n++
		}
		fr.logger.Debug("Parsed feed", zap.String("source", name), zap.Int("entries", n))
	}

	sortNewestFirst(all)
	if len(all) > fr.maxItems {
		all = all[:fr.maxItems]
	}
	return all
}

func parseItem(item *gofeed.Item, source string) (Headline, bool) {
	title := strings.Join(strings.Fields(item.Title), " ")
	if title == "" {
		return Headline{}, false
	}

	h := Headline{Title: title, Source: source}
	if item.PublishedParsed != nil {
		h.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		h.Published = *item.UpdatedParsed
	}
	return h, true
}

// sortNewestFirst orders headlines by date. Undated entries sort last.
func sortNewestFirst(hs []Headline) {
	sort.SliceStable(hs, func(i, j int) bool {
		return hs[i].Published.After(hs[j].Published)
	})
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
