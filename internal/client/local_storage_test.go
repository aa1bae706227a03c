package client

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorage_UploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "/assets/")
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()

	url, err := s.Upload(ctx, "wav/p1/a.wav", strings.NewReader("RIFF"), "audio/wav")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if url != "/assets/wav/p1/a.wav" {
		t.Errorf("unexpected url %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "wav", "p1", "a.wav"))
	if err != nil || string(data) != "RIFF" {
		t.Fatalf("object not written: %q, %v", data, err)
	}

	if _, err := s.Upload(ctx, "wav/p1/a.wav", strings.NewReader("x"), "audio/wav"); err == nil {
		t.Error("expected overwrite to fail")
	}

	if err := s.Delete(ctx, "wav/p1/a.wav"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "wav/p1/a.wav"); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "/assets")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upload(context.Background(), "../escape.wav", strings.NewReader("x"), "audio/wav"); err == nil {
		t.Error("expected traversal key to be rejected")
	}
}
