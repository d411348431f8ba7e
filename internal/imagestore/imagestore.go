// Package imagestore persists generated image bytes and returns a URL for them.
// Providers that answer with raw image data instead of a hosted URL write
// through a Store.
package imagestore

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store saves one image and returns the URL it is reachable under.
type Store interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

// extension maps a content type to a file extension.
func extension(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// objectName returns a fresh unique object name for an image.
func objectName(data []byte, contentType string) string {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return uuid.NewString() + extension(contentType)
}

// FS stores images in a local directory served under BaseURL.
type FS struct {
	Dir     string
	BaseURL string
}

// NewFS creates a filesystem store, creating dir if needed.
func NewFS(dir, baseURL string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating image dir: %w", err)
	}
	return &FS{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put implements Store.
func (f *FS) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty image")
	}
	name := objectName(data, contentType)
	if err := os.WriteFile(filepath.Join(f.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return f.BaseURL + "/" + name, nil
}
