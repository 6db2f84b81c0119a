package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	c := New(Config{BaseURL: url, APIKey: "sk-test", Model: "gpt-4o-mini", Timeout: 2 * time.Second})
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func TestCompleteNotConfigured(t *testing.T) {
	cases := []Config{
		{APIKey: "k", Model: "m"},
		{BaseURL: "http://x", Model: "m"},
		{BaseURL: "http://x", APIKey: "k"},
	}
	for _, cfg := range cases {
		if _, err := New(cfg).Complete(context.Background(), Request{}); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("Complete(%+v) error = %v; want ErrNotConfigured", cfg, err)
		}
	}
}

func TestCompleteRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected Authorization %q", got)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Model != "gpt-4o-mini" || len(req.Messages) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		if req.Messages[0].Role != "system" || req.Messages[1].Content != "fix: teh cat" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if req.Temperature != temperature {
			t.Errorf("temperature = %v", req.Temperature)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"the cat"}}],"usage":{"total_tokens":17}}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL+"/").Complete(context.Background(), Request{SystemPrompt: "proofread", UserPrompt: "fix: teh cat"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "the cat" || resp.TokensUsed != 17 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "ok" || calls.Load() != 3 {
		t.Errorf("text=%q calls=%d", resp.Text, calls.Load())
	}
}

func TestCompleteDoesNotRetryAuthErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), Request{})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if err.Error() != "Invalid API key. Check your API key in settings." {
		t.Errorf("unexpected message %q", err.Error())
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Complete(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestTestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"OK"}}]}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).TestConnection(context.Background())
	if !res.Success || res.ModelName != "gpt-4o-mini" || res.Error != "" {
		t.Errorf("unexpected result %+v", res)
	}

	srv.Close()
	res = newTestClient(srv.URL).TestConnection(context.Background())
	if res.Success || res.Error == "" {
		t.Errorf("expected failure against closed server, got %+v", res)
	}
}

func TestStatusErrorMessages(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{403, "Access denied. Your API key may not have permission for this model."},
		{429, "Rate limited. Please wait and try again."},
		{502, "Provider server error (502): upstream"},
		{418, "API error (418): upstream"},
	}
	for _, tt := range tests {
		if got := (&StatusError{Code: tt.code, Body: "upstream"}).Error(); got != tt.want {
			t.Errorf("code %d: got %q want %q", tt.code, got, tt.want)
		}
	}
}
