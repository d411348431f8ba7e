package article

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

const (
	MinImageCount = 1
	MaxImageCount = 50
)

// SectionInput is a section title requested by the user.
type SectionInput struct {
	Title string `json:"title"`
}

// Request describes one article generation job.
// It is treated as immutable once handed to the dispatcher.
type Request struct {
	Title           string         `json:"title"`
	Sections        []SectionInput `json:"sections"`
	Model           Model          `json:"model"`
	ImagePrompt     string         `json:"imagePrompt,omitempty"`
	TextPrompt      string         `json:"textPrompt,omitempty"`
	Keywords        []string       `json:"keywords"`
	CheckPlagiarism bool           `json:"checkPlagiarism"`
	ImageCount      int            `json:"imageCount"`
	ImageSize       ImageSize      `json:"imageSize"`
	ReferenceImage  []byte         `json:"-"`
}

// Validate checks the request shape. It never touches the network.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Reason: "title is required"}
	}
	if len(r.Sections) == 0 {
		return &ValidationError{Field: "sections", Reason: "at least one section is required"}
	}
	for i, s := range r.Sections {
		if strings.TrimSpace(s.Title) == "" {
			return &ValidationError{Field: "sections", Reason: fmt.Sprintf("section %d has no title", i)}
		}
	}
	if _, err := ParseModel(string(r.Model)); err != nil {
		return &ValidationError{Field: "model", Reason: err.Error()}
	}
	if _, err := ParseImageSize(string(r.ImageSize)); err != nil {
		return &ValidationError{Field: "imageSize", Reason: err.Error()}
	}
	if r.ImageCount < MinImageCount || r.ImageCount > MaxImageCount {
		return &ValidationError{
			Field:  "imageCount",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinImageCount, MaxImageCount, r.ImageCount),
		}
	}
	return nil
}

// Normalized returns a copy with trimmed titles and de-duplicated keywords.
// Slices are copied so the caller's request is never aliased.
func (r Request) Normalized() Request {
	out := r
	out.Title = strings.TrimSpace(r.Title)

	out.Sections = make([]SectionInput, len(r.Sections))
	for i, s := range r.Sections {
		out.Sections[i] = SectionInput{Title: strings.TrimSpace(s.Title)}
	}

	fold := cases.Fold()
	seen := make(map[string]struct{}, len(r.Keywords))
	out.Keywords = make([]string, 0, len(r.Keywords))
	for _, k := range r.Keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		key := fold.String(k)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.Keywords = append(out.Keywords, k)
	}

	if r.ReferenceImage != nil {
		out.ReferenceImage = append([]byte(nil), r.ReferenceImage...)
	}
	return out
}

// Options returns the persisted projection of the request.
func (r *Request) Options() Options {
	return Options{
		Model:           r.Model,
		ImagePrompt:     r.ImagePrompt,
		TextPrompt:      r.TextPrompt,
		Keywords:        append([]string{}, r.Keywords...),
		CheckPlagiarism: r.CheckPlagiarism,
		ImageCount:      r.ImageCount,
		ImageSize:       r.ImageSize,
	}
}

// SectionTitles returns the requested section titles in order.
func (r *Request) SectionTitles() []string {
	titles := make([]string, len(r.Sections))
	for i, s := range r.Sections {
		titles[i] = s.Title
	}
	return titles
}

// EffectiveImagePrompt returns the image prompt, falling back to one built from the title.
func (r *Request) EffectiveImagePrompt() string {
	if p := strings.TrimSpace(r.ImagePrompt); p != "" {
		return p
	}
	return "High quality image related to: " + r.Title
}
