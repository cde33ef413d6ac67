package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("complete should not request streaming")
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"local says hi"},"done":true}`))
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, time.Second)
	out, err := b.Complete(context.Background(), "llama3", "hi")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "local says hi" {
		t.Fatalf("out = %q", out)
	}
}

func TestOllamaSendsGenerationOptions(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"content":"ok"},"done":true}`))
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, time.Second)
	b.Gen = GenParams{MaxTokens: 256, Temperature: 0.2}
	if _, err := b.Complete(context.Background(), "llama3", "p"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	opts, ok := got["options"].(map[string]any)
	if !ok {
		t.Fatalf("options missing from request: %v", got)
	}
	if opts["num_predict"] != float64(256) {
		t.Fatalf("num_predict = %v, want 256", opts["num_predict"])
	}
	if opts["temperature"] != 0.2 {
		t.Fatalf("temperature = %v, want 0.2", opts["temperature"])
	}
}

func TestOllamaStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lines := []string{
			`{"message":{"content":"one "},"done":false}`,
			`{"message":{"content":"two"},"done":false}`,
			`{"message":{"content":""},"done":true}`,
		}
		for _, l := range lines {
			_, _ = w.Write([]byte(l + "\n"))
		}
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, time.Second)
	var got string
	err := b.Stream(context.Background(), "llama3", "p", func(d string) { got += d })
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if got != "one two" {
		t.Fatalf("got = %q", got)
	}
}

func TestOllamaModelNotInstalled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"missing\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, time.Second)
	_, err := b.Complete(context.Background(), "missing", "p")
	var e *ModelNotFoundError
	if !errors.As(err, &e) {
		t.Fatalf("err = %v, want ModelNotFoundError", err)
	}
	if IsTransient(err) {
		t.Fatal("an uninstalled model is not transient")
	}
}

func TestOllamaRuntimeDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	b := NewOllamaBackend(srv.URL, time.Second)
	_, err := b.Complete(context.Background(), "llama3", "p")
	var e *UnreachableError
	if !errors.As(err, &e) {
		t.Fatalf("err = %v, want UnreachableError", err)
	}
}

func TestOllamaEmptyModel(t *testing.T) {
	b := NewOllamaBackend("", time.Second)
	if _, err := b.Complete(context.Background(), "", "p"); err == nil {
		t.Fatal("expected error for empty model")
	}
}
