package imagestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFSPutWritesFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFS(filepath.Join(dir, "images"), "/images/")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	url, err := store.Put(context.Background(), []byte("fake-png"), "image/png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(url, "/images/") || !strings.HasSuffix(url, ".png") {
		t.Errorf("unexpected url %q", url)
	}

	name := strings.TrimPrefix(url, "/images/")
	data, err := os.ReadFile(filepath.Join(dir, "images", name))
	if err != nil {
		t.Fatalf("reading stored image: %v", err)
	}
	if string(data) != "fake-png" {
		t.Errorf("stored %q", data)
	}
}

func TestFSPutUniqueNames(t *testing.T) {
	store, err := NewFS(t.TempDir(), "/images")
	if err != nil {
		t.Fatal(err)
	}
	a, _ := store.Put(context.Background(), []byte("x"), "image/jpeg")
	b, _ := store.Put(context.Background(), []byte("x"), "image/jpeg")
	if a == b {
		t.Errorf("expected distinct urls, got %q twice", a)
	}
	if !strings.HasSuffix(a, ".jpg") {
		t.Errorf("expected .jpg suffix, got %q", a)
	}
}

func TestFSPutRejectsEmpty(t *testing.T) {
	store, err := NewFS(t.TempDir(), "/images")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Put(context.Background(), nil, "image/png"); err == nil {
		t.Error("expected error for empty image")
	}
}

func TestNewMinIORequiresEndpoint(t *testing.T) {
	if _, err := NewMinIO(context.Background(), MinIOConfig{Bucket: "b"}); err == nil {
		t.Error("expected error without endpoint")
	}
}
