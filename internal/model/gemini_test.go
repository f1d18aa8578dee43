package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestNewGeminiClientRequiresKey(t *testing.T) {
	if c := NewGeminiClient(domain.ModelConfig{}); c != nil {
		t.Error("expected nil client without API key")
	}
	if c := NewGeminiClient(domain.ModelConfig{APIKey: "test-key"}); c == nil {
		t.Error("expected client with API key")
	}
}

func TestGeminiComplete(t *testing.T) {
	var gotPath string
	var gotReq generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)

		json.NewEncoder(w).Encode(generateResponse{
			Candidates: []struct {
				Content content `json:"content"`
			}{
				{Content: content{Parts: []part{{Text: "NORMAL: "}, {Text: "looks fine"}}}},
			},
		})
	}))
	defer srv.Close()

	client := NewGeminiClient(domain.ModelConfig{
		APIKey:          "test-key",
		ModelName:       "gemini-1.5-flash",
		Temperature:     0.1,
		MaxOutputTokens: 1024,
	})
	client.baseURL = srv.URL

	text, err := client.Complete(context.Background(), "analyze this")
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	if text != "NORMAL: looks fine" {
		t.Errorf("text = %q, want joined candidate parts", text)
	}
	if !strings.Contains(gotPath, "gemini-1.5-flash") {
		t.Errorf("request path %q missing model name", gotPath)
	}
	if gotReq.GenerationConfig.Temperature != 0.1 {
		t.Errorf("temperature = %v, want 0.1", gotReq.GenerationConfig.Temperature)
	}
	if gotReq.GenerationConfig.MaxOutputTokens != 1024 {
		t.Errorf("maxOutputTokens = %v, want 1024", gotReq.GenerationConfig.MaxOutputTokens)
	}
	if len(gotReq.Contents) != 1 || gotReq.Contents[0].Parts[0].Text != "analyze this" {
		t.Errorf("prompt not delivered: %+v", gotReq.Contents)
	}
}

func TestGeminiCompleteErrors(t *testing.T) {
	t.Run("NonOKStatus", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client := NewGeminiClient(domain.ModelConfig{APIKey: "k", ModelName: "m"})
		client.baseURL = srv.URL

		if _, err := client.Complete(context.Background(), "p"); err == nil {
			t.Error("expected error on non-200 status")
		}
	})

	t.Run("NoCandidates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"candidates":[]}`))
		}))
		defer srv.Close()

		client := NewGeminiClient(domain.ModelConfig{APIKey: "k", ModelName: "m"})
		client.baseURL = srv.URL

		if _, err := client.Complete(context.Background(), "p"); err == nil {
			t.Error("expected error on empty candidates")
		}
	})
}
