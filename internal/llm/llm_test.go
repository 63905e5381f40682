package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TobiSchelling/triggerwatch/internal/config"
)

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"key": "value", "num": 42}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
	if result["num"] != float64(42) {
		t.Errorf("expected num=42, got %v", result["num"])
	}
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	text := "```json\n{\"key\": \"value\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestParseJSONResponseWithPlainFence(t *testing.T) {
	text := "```\n{\"key\": \"value\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	result := ParseJSONResponse("not json at all")
	if result != nil {
		t.Error("expected nil for invalid JSON")
	}
}

func TestParseJSONResponseEmpty(t *testing.T) {
	result := ParseJSONResponse("")
	if result != nil {
		t.Error("expected nil for empty string")
	}
}

func TestParseJSONResponseWhitespace(t *testing.T) {
	result := ParseJSONResponse("  \n  {\"key\": \"value\"}  \n  ")
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"funding"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("gpt-4o-mini", "sk-test")
	p.BaseURL = srv.URL

	out, err := p.Generate(context.Background(), "classify", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "funding" {
		t.Errorf("expected funding, got %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotBody["max_tokens"] != float64(50) || gotBody["temperature"] != 0.3 {
		t.Errorf("unexpected request body: %v", gotBody)
	}
}

func TestOpenAIGenerateWithoutKey(t *testing.T) {
	p := NewOpenAIProvider("gpt-4o-mini", "")
	if p.IsConfigured() {
		t.Error("expected provider without key to be unconfigured")
	}
	if _, err := p.Generate(context.Background(), "x", 10); err == nil {
		t.Error("expected error without key")
	}
}

func TestOpenAIGenerateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("gpt-4o-mini", "sk-test")
	p.BaseURL = srv.URL
	_, err := p.Generate(context.Background(), "x", 10)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected 429 error, got %v", err)
	}
}

func TestOllamaGenerateAndAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			fmt.Fprint(w, `{"models":[{"name":"qwen2.5:7b"}]}`)
		case "/api/chat":
			fmt.Fprint(w, `{"message":{"content":"partnership"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider("qwen2.5:7b", srv.URL+"/")
	if !p.Available(context.Background()) {
		t.Error("expected model to be available")
	}
	out, err := p.Generate(context.Background(), "x", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "partnership" {
		t.Errorf("expected partnership, got %q", out)
	}

	missing := NewOllamaProvider("llama3", srv.URL)
	if missing.Available(context.Background()) {
		t.Error("expected missing model to be unavailable")
	}
}

func TestCreateProvider(t *testing.T) {
	cfg := config.Classify{Provider: "openai", OpenAIModel: "gpt-4o-mini"}
	if p := CreateProvider(context.Background(), cfg, nil); p != nil {
		t.Errorf("expected nil provider without key, got %s", p.Name())
	}

	cfg.APIKey = "sk-test"
	p := CreateProvider(context.Background(), cfg, nil)
	if p == nil || p.Name() != "openai" {
		t.Errorf("expected openai provider, got %v", p)
	}
}
