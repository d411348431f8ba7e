package article

import (
	"fmt"
	"time"
)

// Model identifies the image backend an article is generated with.
type Model string

const (
	ModelIdeogram   Model = "ideogram"
	ModelFluxDev    Model = "flux-dev"
	ModelMidjourney Model = "midjourney"
	ModelImageFX    Model = "imagefx"
)

// AllModels returns every supported image model.
func AllModels() []Model {
	return []Model{ModelIdeogram, ModelFluxDev, ModelMidjourney, ModelImageFX}
}

// ParseModel converts a string to a Model.
func ParseModel(s string) (Model, error) {
	for _, m := range AllModels() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown model %q", s)
}

// ImageSize is the requested aspect ratio of generated images.
type ImageSize string

const (
	Size3x4 ImageSize = "3:4"
	Size2x3 ImageSize = "2:3"
	Size3x2 ImageSize = "3:2"
)

// ParseImageSize converts a string to an ImageSize.
func ParseImageSize(s string) (ImageSize, error) {
	switch ImageSize(s) {
	case Size3x4, Size2x3, Size3x2:
		return ImageSize(s), nil
	}
	return "", fmt.Errorf("unknown image size %q", s)
}

// Status is the lifecycle state of an article.
//
// The generator only writes draft and completed. Processing and rejected are
// never set here; they are kept so records written by other tools still
// decode and can be filtered on.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// ParseStatus converts a string to a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusProcessing, StatusCompleted, StatusRejected:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Section is one titled part of an article.
type Section struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	Order   int    `json:"order"`
}

// Options is the persisted form of the request an article was generated from.
type Options struct {
	Model           Model     `json:"model"`
	ImagePrompt     string    `json:"imagePrompt,omitempty"`
	TextPrompt      string    `json:"textPrompt,omitempty"`
	Keywords        []string  `json:"keywords"`
	CheckPlagiarism bool      `json:"checkPlagiarism"`
	ImageCount      int       `json:"imageCount"`
	ImageSize       ImageSize `json:"imageSize"`
}

// Article is a generated article with its images.
type Article struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Sections        []Section `json:"sections"`
	Options         Options   `json:"options"`
	Images          []string  `json:"images"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	WordPressDraft  bool      `json:"wordpressDraft"`
	WordPressPostID string    `json:"wordpressPostId,omitempty"`
	WordPressURL    string    `json:"wordpressUrl,omitempty"`
}

// MissingImages returns how many requested image slots have no image.
func (a *Article) MissingImages() int {
	if n := a.Options.ImageCount - len(a.Images); n > 0 {
		return n
	}
	return 0
}
