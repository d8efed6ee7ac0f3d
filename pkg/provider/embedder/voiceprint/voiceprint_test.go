package voiceprint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbed_ReturnsVector(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"ok":true,"vector":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL, WithAPIKey("secret"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	vec, ok, err := p.Embed(context.Background(), "chunk.wav", 0, 2.0)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !ok {
		t.Fatal("ok = false, want true")
	}
	if len(vec) != 3 {
		t.Fatalf("len(vec) = %d, want 3", len(vec))
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer secret")
	}
	if p.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d, want 3", p.Dimensions())
	}
}

func TestEmbed_NotOKReturnsFalseNoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	vec, ok, err := p.Embed(context.Background(), "chunk.wav", 0, 1.0)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if ok {
		t.Error("ok = true, want false")
	}
	if vec != nil {
		t.Errorf("vec = %v, want nil", vec)
	}
}

func TestEmbed_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, _, err := p.Embed(context.Background(), "chunk.wav", 0, 1.0); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestDimensions_PresetReportedBeforeAnyEmbed(t *testing.T) {
	p, err := New("http://example.invalid", WithDimensions(256))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Dimensions() != 256 {
		t.Errorf("Dimensions() = %d, want 256", p.Dimensions())
	}
}
