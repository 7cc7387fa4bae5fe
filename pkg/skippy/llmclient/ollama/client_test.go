package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/config"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/llmclient"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	cfg := config.OllamaConfig{Host: srv.URL, Model: "llama3.1", MaxRetries: 0}
	return New(cfg, nil), srv
}

func TestChatStreamsTextThenFinal(t *testing.T) {
	lines := []string{
		`{"message":{"role":"assistant","content":"Hel"},"done":false}`,
		`{"message":{"role":"assistant","content":"lo"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":5,"eval_count":2}`,
	}
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	})
	defer srv.Close()

	ch, err := client.Chat(context.Background(), llmclient.ChatOptions{
		Messages: []llmclient.Message{{Role: "user", Content: "hi"}},
		Stream:   true,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	var text string
	var sawFinal bool
	var usage llmclient.Usage
	for chunk := range ch {
		switch chunk.Kind {
		case llmclient.ChunkText:
			text += chunk.Text
		case llmclient.ChunkFinal:
			sawFinal = true
			usage = chunk.Usage
		}
	}

	if text != "Hello" {
		t.Errorf("expected concatenated text 'Hello', got %q", text)
	}
	if !sawFinal {
		t.Fatal("expected a final chunk")
	}
	if usage.PromptTokens != 5 || usage.CompletionTokens != 2 {
		t.Errorf("unexpected usage %+v", usage)
	}
}

func TestChatReturnsAPIErrorOnNon200(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	})
	defer srv.Close()

	_, err := client.Chat(context.Background(), llmclient.ChatOptions{
		Messages: []llmclient.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*llmclient.APIError)
	if !ok {
		t.Fatalf("expected *llmclient.APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", apiErr.StatusCode)
	}
}

func TestListModels(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"models":[{"name":"llama3.1","details":{"family":"llama"}}]}`)
	})
	defer srv.Close()

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 1 || models[0].Name != "llama3.1" || models[0].Family != "llama" {
		t.Fatalf("unexpected models %+v", models)
	}
}

func TestIntrospect(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/show" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"model_info":{"llama.context_length":8192},"details":{"family":"llama"}}`)
	})
	defer srv.Close()

	info, err := client.Introspect(context.Background(), "llama3.1")
	if err != nil {
		t.Fatalf("Introspect: %v", err)
	}
	if info.ContextWindow != 8192 {
		t.Errorf("expected context window 8192, got %d", info.ContextWindow)
	}
	if info.Family != "llama" {
		t.Errorf("expected family llama, got %q", info.Family)
	}
}

func TestSummarizeConcatenatesTextChunks(t *testing.T) {
	lines := []string{
		`{"message":{"role":"assistant","content":"condensed"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`,
	}
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	})
	defer srv.Close()

	out, err := client.Summarize(context.Background(), "a big capability document")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out != "condensed" {
		t.Errorf("expected 'condensed', got %q", out)
	}
}

var _ llmclient.Client = (*Client)(nil)
