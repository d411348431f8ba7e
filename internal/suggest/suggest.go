// Package suggest asks the text provider for article titles, keywords and
// pin descriptions, optionally grounded on recent feed headlines and a
// reference page.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/PinForge/internal/provider"
)

// ErrEmptyPrompt is returned when there is nothing to suggest for.
var ErrEmptyPrompt = errors.New("prompt is empty")

const defaultCount = 3

// Options adds context to a title request.
type Options struct {
	UseFeeds     bool
	ReferenceURL string
}

// Suggester produces suggestions through a text provider.
type Suggester struct {
	completer provider.Completer
	apiKey    string
	feeds     *FeedReader
	pages     *PageFetcher
	logger    *zap.Logger

	Count     int
	MaxTokens int
}

// New creates a Suggester. feeds and pages may be nil.
func New(c provider.Completer, apiKey string, feeds *FeedReader, pages *PageFetcher, logger *zap.Logger) *Suggester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suggester{
		completer: c,
		apiKey:    apiKey,
		feeds:     feeds,
		pages:     pages,
		logger:    logger,
		Count:     defaultCount,
		MaxTokens: 512,
	}
}

// Titles suggests article titles for a topic.
func (s *Suggester) Titles(ctx context.Context, topic string, opts Options) ([]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyPrompt
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Suggest %d Pinterest-friendly blog article titles about %q.\n", s.count(), topic)

	if opts.UseFeeds && s.feeds != nil {
		if hs := s.feeds.Headlines(ctx); len(hs) > 0 {
			b.WriteString("\nRecent headlines in this niche, for inspiration (do not copy them):\n")
			for _, h := range hs {
				fmt.Fprintf(&b, "- %s (%s)\n", h.Title, h.Source)
			}
		}
	}

	if opts.ReferenceURL != "" && s.pages != nil {
		text, err := s.pages.Text(ctx, opts.ReferenceURL)
		if err != nil {
			s.logger.Warn("Skipping reference page", zap.String("url", opts.ReferenceURL), zap.Error(err))
		} else if text != "" {
			fmt.Fprintf(&b, "\nReference article:\n%s\n", text)
		}
	}

	return s.ask(ctx, b.String())
}

// Keywords suggests related Pinterest search keywords.
func (s *Suggester) Keywords(ctx context.Context, keyword string) ([]string, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, ErrEmptyPrompt
	}
	prompt := fmt.Sprintf("Suggest %d related Pinterest search keywords for %q. Keep each under five words.\n",
		s.count(), keyword)
	return s.ask(ctx, prompt)
}

// PinDescriptions suggests pin descriptions for an article aimed at the given interests.
func (s *Suggester) PinDescriptions(ctx context.Context, title string, interests []string) ([]string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyPrompt
	}
	prompt := fmt.Sprintf("Write %d Pinterest pin descriptions (max 500 characters each) for the article %q.\n",
		s.count(), title)
	if len(interests) > 0 {
		prompt += fmt.Sprintf("The audience is interested in: %s.\n", strings.Join(interests, ", "))
	}
	return s.ask(ctx, prompt)
}

func (s *Suggester) ask(ctx context.Context, prompt string) ([]string, error) {
	prompt += "\nRespond with JSON only, in the form {\"suggestions\": [\"...\"]}."

	text, err := s.completer.Complete(ctx, s.apiKey, prompt, s.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("requesting suggestions: %w", err)
	}

	out, err := parseSuggestions(text)
	if err != nil {
		return nil, err
	}
	if n := s.count(); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *Suggester) count() int {
	if s.Count <= 0 {
		return defaultCount
	}
	return s.Count
}

// parseSuggestions accepts {"suggestions": [...]} or a bare array.
func parseSuggestions(text string) ([]string, error) {
	var env struct {
		Suggestions []string `json:"suggestions"`
	}
	var list []string
	if err := provider.ParseJSONResponse(text, &env); err == nil {
		list = env.Suggestions
	} else if err := provider.ParseJSONResponse(text, &list); err != nil {
		return nil, fmt.Errorf("decoding suggestions: %w", err)
	}

	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.New("model returned no suggestions")
	}
	return out, nil
}
