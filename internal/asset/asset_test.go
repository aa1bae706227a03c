package asset

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/makeasinger/studio/internal/client"
	"github.com/makeasinger/studio/internal/model"
	"github.com/makeasinger/studio/internal/store"
)

func TestSilenceWAV_RoundTrip(t *testing.T) {
	data := SilenceWAV(2, 44100)
	if len(data) != 44+2*44100*2 {
		t.Fatalf("unexpected size %d", len(data))
	}

	info, err := ParseWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ParseWAV failed: %v", err)
	}
	if info.Channels != 1 || info.SampleRate != 44100 || info.BitsPerSamp != 16 {
		t.Errorf("unexpected format %+v", info)
	}
	if info.DurationSec != 2 {
		t.Errorf("expected 2s, got %v", info.DurationSec)
	}
}

func TestParseWAV_Rejects(t *testing.T) {
	if _, err := ParseWAV(strings.NewReader("not audio at all")); !errors.Is(err, ErrNotWAV) {
		t.Errorf("expected ErrNotWAV, got %v", err)
	}
	truncated := SilenceWAV(1, 8000)[:30]
	if _, err := ParseWAV(bytes.NewReader(truncated)); !errors.Is(err, ErrNotWAV) {
		t.Errorf("expected ErrNotWAV for truncated header, got %v", err)
	}
}

func TestAssessClip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		pass bool
	}{
		{"good clip", SilenceWAV(1, 22050), true},
		{"too short", SilenceWAV(0.1, 22050), false},
		{"low sample rate", SilenceWAV(1, 8000), false},
		{"garbage", []byte("garbage"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := AssessClip("/assets/x.wav", tt.data)
			if Passed(c) != tt.pass {
				t.Errorf("expected pass=%v, got %+v", tt.pass, c)
			}
		})
	}
}

func TestSink_Store(t *testing.T) {
	storage, err := client.NewLocalStorage(t.TempDir(), "/assets")
	if err != nil {
		t.Fatal(err)
	}
	records := store.NewMemory()
	sink := NewSink(storage, records)
	ctx := context.Background()

	a1, err := sink.Store(ctx, StoreRequest{
		Kind: model.AssetKindWAV, Data: SilenceWAV(1, 8000), Ext: ".wav",
		ContentType: WAVContentType, ProjectID: "p1", Meta: map[string]any{"instrument": "Piano"},
	})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	a2, err := sink.Store(ctx, StoreRequest{Kind: model.AssetKindWAV, Data: []byte("x"), Ext: ".wav"})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if a1.ID == a2.ID || a1.URL == a2.URL {
		t.Error("expected distinct assets")
	}
	if !strings.HasPrefix(a1.URL, "/assets/wav/p1/") || !strings.HasSuffix(a1.URL, ".wav") {
		t.Errorf("unexpected url %q", a1.URL)
	}
	if !strings.HasPrefix(a2.Key, "wav/shared/") {
		t.Errorf("expected shared owner in key, got %q", a2.Key)
	}

	got, err := records.GetAsset(ctx, a1.ID)
	if err != nil {
		t.Fatalf("asset not recorded: %v", err)
	}
	if got.Meta["instrument"] != "Piano" {
		t.Errorf("unexpected meta %v", got.Meta)
	}
}
