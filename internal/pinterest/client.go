// Package pinterest reads keyword search results and trends from the Pinterest v5 API.
package pinterest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/PinForge/internal/keywords"
)

// DefaultBaseURL is the Pinterest v5 API root.
const DefaultBaseURL = "https://api.pinterest.com/v5"

// ErrNoToken is returned when the client has no access token.
var ErrNoToken = errors.New("pinterest access token not configured")

var _ keywords.Source = (*Client)(nil)

// Client is a Pinterest REST client authenticated with a bearer access token.
type Client struct {
	BaseURL string
	token   string
	client  *http.Client
}

// NewClient creates a Pinterest client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type searchResponse struct {
	Items []struct {
		ID             string `json:"id"`
		Title          string `json:"title"`
		Description    string `json:"description"`
		Link           string `json:"link"`
		SaveCount      int    `json:"save_count"`
		CommentCount   int    `json:"comment_count"`
		ReactionCounts struct {
			Total int `json:"total"`
		} `json:"reaction_counts"`
	} `json:"items"`
}

// SearchByKeyword returns up to limit pins matching term.
func (c *Client) SearchByKeyword(ctx context.Context, term string, limit int) ([]keywords.Pin, error) {
	q := url.Values{}
	q.Set("query", term)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var result searchResponse
	if err := c.get(ctx, "/pins/search", q, &result); err != nil {
		return nil, err
	}

	pins := make([]keywords.Pin, 0, len(result.Items))
	for _, it := range result.Items {
		pins = append(pins, keywords.Pin{
			ID:          it.ID,
			Title:       it.Title,
			Description: it.Description,
			Link:        it.Link,
			Saves:       it.SaveCount,
			Comments:    it.CommentCount,
			Reactions:   it.ReactionCounts.Total,
		})
	}
	return pins, nil
}

type trend struct {
	Term    string `json:"term"`
	Keyword string `json:"keyword"`
}

func (t trend) text() string {
	if t.Term != "" {
		return t.Term
	}
	return t.Keyword
}

// Trending returns the trending terms of a category. Both the bare array and
// the {"trends": [...]} envelope are accepted.
func (c *Client) Trending(ctx context.Context, category string) ([]string, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}

	var raw json.RawMessage
	if err := c.get(ctx, "/trends", q, &raw); err != nil {
		return nil, err
	}

	var list []trend
	if err := json.Unmarshal(raw, &list); err != nil {
		var env struct {
			Trends []trend `json:"trends"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decoding trends: %w", err)
		}
		list = env.Trends
	}

	out := make([]string, 0, len(list))
	for _, t := range list {
		if s := strings.TrimSpace(t.text()); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if c.token == "" {
		return ErrNoToken
	}

	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinterest API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("pinterest API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
