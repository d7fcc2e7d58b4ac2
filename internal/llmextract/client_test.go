package llmextract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"citelink/internal/classify"
	"citelink/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append(opts, WithSleeper(func(time.Duration) {}))
	client, err := New(config.LLM{
		APIKey:         "test",
		BaseURL:        srv.URL,
		Model:          "test-model",
		TimeoutSeconds: 5,
	}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func completionWith(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	}
}

func TestExtractParsesPayload(t *testing.T) {
	client := newTestClient(t, completionWith(`{
		"item_type": "JournalArticle",
		"title": "  A Study of Things ",
		"authors": ["Doe, Jane"],
		"date": "2021",
		"publication_title": "Journal of Things",
		"confidence": 0.9
	}`))

	got, err := client.Extract(context.Background(), "https://example.org/a", "page text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.ItemType != "journalarticle" {
		t.Fatalf("item type = %q", got.ItemType)
	}
	if got.Title != "A Study of Things" || got.Confidence != 0.9 {
		t.Fatalf("unexpected extraction: %+v", got)
	}
}

func TestExtractStripsCodeFences(t *testing.T) {
	client := newTestClient(t, completionWith("```json\n{\"title\":\"Fenced\",\"confidence\":0.5}\n```"))

	got, err := client.Extract(context.Background(), "https://example.org/a", "page text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Title != "Fenced" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestExtractClampsConfidence(t *testing.T) {
	client := newTestClient(t, completionWith(`{"title":"X","confidence":3.5}`))

	got, err := client.Extract(context.Background(), "https://example.org/a", "page text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Confidence != 1 {
		t.Fatalf("confidence = %v, want 1", got.Confidence)
	}
}

func TestExtractRetriesServerErrors(t *testing.T) {
	attempts := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		completionWith(`{"title":"Eventually","confidence":0.6}`)(w, r)
	}))

	got, err := client.Extract(context.Background(), "https://example.org/a", "page text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if got.Title != "Eventually" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestExtractDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))

	_, err := client.Extract(context.Background(), "https://example.org/a", "page text")
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestExtractRejectsEmptyText(t *testing.T) {
	client := newTestClient(t, completionWith(`{}`))

	_, err := client.Extract(context.Background(), "https://example.org/a", "   ")
	if got := classify.Classify(err); got != classify.CategoryValidation {
		t.Fatalf("classified as %s, want validation", got)
	}
}

func TestDecodeModelJSONToleratesProse(t *testing.T) {
	var out struct {
		Title string `json:"title"`
	}
	if err := decodeModelJSON(`Here is the result: {"title":"Wrapped"} hope that helps`, &out); err != nil {
		t.Fatalf("decodeModelJSON: %v", err)
	}
	if out.Title != "Wrapped" {
		t.Fatalf("title = %q", out.Title)
	}
}
