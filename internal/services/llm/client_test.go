package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func chatServer(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body map[string]any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handle(w, r, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeChoice(w http.ResponseWriter, choice map[string]any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{choice}})
}

func TestCompleteReturnsTextTransport(t *testing.T) {
	server := chatServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if _, ok := body["response_format"]; ok {
			t.Errorf("free-text request should not set response_format: %v", body)
		}
		writeChoice(w, map[string]any{
			"finish_reason": "stop",
			"message":       map[string]any{"content": "```python\nself.play(Write(title))\n```"},
		})
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	resp, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if resp.Transport != TransportText {
		t.Fatalf("unexpected transport %q", resp.Transport)
	}
	if !strings.Contains(resp.Text, "self.play") {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if resp.FinishReason != "stop" || resp.Model != "demo-model" {
		t.Fatalf("unexpected metadata: %+v", resp)
	}
}

func TestCompleteJSONDecodesFencedObject(t *testing.T) {
	server := chatServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		format, _ := body["response_format"].(map[string]any)
		if format["type"] != "json_object" {
			t.Errorf("expected json_object response format, got %v", body["response_format"])
		}
		writeChoice(w, map[string]any{
			"message": map[string]any{"content": "```json\n{\"title\":\"Fourier\",\"scenes\":[]}\n```"},
		})
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	resp, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if resp.Transport != TransportJSON {
		t.Fatalf("unexpected transport %q", resp.Transport)
	}
	if resp.Object["title"] != "Fourier" {
		t.Fatalf("unexpected object %v", resp.Object)
	}
}

func TestCompleteRequiresPromptsAndKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	if _, err := client.Complete(context.Background(), "system", "user"); err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("expected api key error, got %v", err)
	}
	client = NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:0"})
	if _, err := client.Complete(context.Background(), " ", "user"); err == nil {
		t.Fatal("expected system prompt error")
	}
}

func TestClientToolCallsArguments(t *testing.T) {
	server := chatServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		writeChoice(w, map[string]any{
			"message": map[string]any{
				"content": "",
				"tool_calls": []any{
					map[string]any{"type": "function", "function": map[string]any{"name": "plan", "arguments": `{"title":"x"}`}},
				},
			},
		})
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	resp, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if resp.Object["title"] != "x" {
		t.Fatalf("unexpected object %v", resp.Object)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected HealthCheck to fail on 401")
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := chatServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		writeChoice(w, map[string]any{"message": map[string]any{"content": "SCRIPT = {}"}})
	})

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	resp, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if resp.Text != "SCRIPT = {}" {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientEmptyContentExhaustsRetries(t *testing.T) {
	var calls int
	server := chatServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		calls++
		writeChoice(w, map[string]any{"finish_reason": "length", "message": map[string]any{"content": ""}})
	})

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", MaxRetries: 2},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.Complete(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error after empty responses")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !strings.Contains(err.Error(), `finish_reason="length"`) {
		t.Fatalf("expected finish reason in error, got %v", err)
	}
}

func TestCompleteJSONKeepsTextWithoutObject(t *testing.T) {
	server := chatServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		writeChoice(w, map[string]any{"message": map[string]any{"content": "Sure! Here is the plan: {\"title\":\"t\"} hope it helps"}})
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	resp, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if resp.Object["title"] != "t" {
		t.Fatalf("embedded object not decoded: %v", resp.Object)
	}

	server = chatServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		writeChoice(w, map[string]any{"message": map[string]any{"content": "I cannot produce a plan today."}})
	})
	client = NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	resp, err = client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON without object should not fail: %v", err)
	}
	if resp.Object != nil || resp.Text != "I cannot produce a plan today." {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := chatServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"}, WithSleeper(func(time.Duration) {}))
	_, err := client.Complete(context.Background(), "system", "user")
	if err == nil || !strings.Contains(err.Error(), "http 400") {
		t.Fatalf("expected http 400 error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestRetryBackoffDoublesUpToCap(t *testing.T) {
	p := retryPolicy{attempts: 6, base: time.Second, max: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := p.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		value string
		want  time.Duration
		ok    bool
	}{
		{"3", 3 * time.Second, true},
		{"-1", 0, false},
		{"", 0, false},
		{"soon", 0, false},
		{now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second, true},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0, false},
	}
	for _, tc := range cases {
		got, ok := parseRetryAfter(tc.value, now)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("parseRetryAfter(%q) = %v, %v; want %v, %v", tc.value, got, ok, tc.want, tc.ok)
		}
	}
}
