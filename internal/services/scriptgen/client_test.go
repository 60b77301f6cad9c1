package scriptgen_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"briefcast/internal/config"
	"briefcast/internal/services"
	"briefcast/internal/services/scriptgen"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...scriptgen.Option) *scriptgen.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.ScriptGen{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
	}
	opts = append([]scriptgen.Option{scriptgen.WithSleeper(func(time.Duration) {})}, opts...)
	return scriptgen.NewClient(cfg, opts...)
}

func textResponse(text string) []byte {
	payload, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
	})
	return payload
}

func TestCompleteJSONReturnsTextContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		w.Write(textResponse(`{"ok":true}`))
	})

	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestCompleteJSONRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(textResponse(`{"ok":true}`))
	})

	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON failed after retry: %v", err)
	}
	if content == "" {
		t.Fatal("expected content after retry")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestCompleteJSONDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected failure on 400")
	}
	if calls.Load() != 1 {
		t.Fatalf("client error must not retry, got %d calls", calls.Load())
	}
}

func TestCompleteJSONRequiresAPIKey(t *testing.T) {
	client := scriptgen.NewClient(config.ScriptGen{BaseURL: "http://127.0.0.1:0"})

	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestGenerateScriptParsesDialogue(t *testing.T) {
	script := map[string]any{
		"title":       "The Data Moat Is Dead",
		"description": "Why proprietary data stopped being a moat.",
		"sources":     []string{"https://example.com/report"},
		"dialogue": []map[string]string{
			{"speaker": "Alex", "text": "Let's start with the collapse."},
			{"speaker": "Morgan", "text": "And why the old logic broke."},
		},
	}
	encoded, _ := json.Marshal(script)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(textResponse(string(encoded)))
	})

	parsed, err := client.GenerateScript(context.Background(), "data moats", "standard", "")
	if err != nil {
		t.Fatalf("GenerateScript failed: %v", err)
	}
	if parsed.Title != "The Data Moat Is Dead" {
		t.Fatalf("unexpected title: %q", parsed.Title)
	}
	if len(parsed.Dialogue) != 2 || parsed.Dialogue[1].Speaker != "Morgan" {
		t.Fatalf("unexpected dialogue: %#v", parsed.Dialogue)
	}
}

func TestGenerateScriptRejectsEmptyDialogue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(textResponse(`{"title":"Empty","dialogue":[]}`))
	})

	_, err := client.GenerateScript(context.Background(), "topic", "standard", "")
	if !errors.Is(err, services.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestOutlineSeriesValidatesPlan(t *testing.T) {
	outline := map[string]any{
		"title": "AI Arc",
		"episodes": []map[string]string{
			{"title": "Overview", "tension": "t1"},
			{"title": "Deep Dive", "tension": "t2"},
		},
	}
	encoded, _ := json.Marshal(outline)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(textResponse(string(encoded)))
	})

	parsed, err := client.OutlineSeries(context.Background(), "ai strategy", 2)
	if err != nil {
		t.Fatalf("OutlineSeries failed: %v", err)
	}
	if parsed.Title != "AI Arc" || len(parsed.Episodes) != 2 {
		t.Fatalf("unexpected outline: %#v", parsed)
	}
}

func TestDecodeModelJSONHandlesCodeFences(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"plain", `{"topic":"x"}`},
		{"fenced", "```json\n{\"topic\":\"x\"}\n```"},
		{"prose wrapped", "Here you go:\n{\"topic\":\"x\"}\nHope that helps."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var parsed struct {
				Topic string `json:"topic"`
			}
			if err := scriptgen.DecodeModelJSON(tc.payload, &parsed); err != nil {
				t.Fatalf("DecodeModelJSON failed: %v", err)
			}
			if parsed.Topic != "x" {
				t.Fatalf("unexpected topic: %q", parsed.Topic)
			}
		})
	}
}
