package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClaudeClient_Complete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"CONFIDENCE: HIGH\n"},{"type":"text","text":"ANSWER: 42"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("key", "test-model").WithEndpoint(srv.URL)
	defer c.Close()

	text, err := c.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "CONFIDENCE: HIGH\nANSWER: 42" {
		t.Errorf("unexpected text %q", text)
	}
	if got.Model != "test-model" || len(got.Messages) != 1 || got.Messages[0].Content != "hello" {
		t.Errorf("unexpected request %+v", got)
	}
	if c.Model() != "test-model" {
		t.Errorf("unexpected model %q", c.Model())
	}
	if snap := c.Stats.Snapshot(); snap.Count != 1 || snap.Errors != 0 {
		t.Errorf("expected one successful sample, got %+v", snap)
	}
}

func TestClaudeClient_RetryableStatus(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "slow down", status)
		}))
		c := NewClaudeClient("key", "m").WithEndpoint(srv.URL)

		_, err := c.Complete(context.Background(), "hi")
		var re *RetryableError
		if !errors.As(err, &re) {
			t.Errorf("status %d: expected RetryableError, got %v", status, err)
		} else if re.StatusCode != status {
			t.Errorf("expected status %d, got %d", status, re.StatusCode)
		}
		if snap := c.Stats.Snapshot(); snap.Errors != 1 {
			t.Errorf("status %d: expected one failed sample, got %+v", status, snap)
		}
		srv.Close()
	}
}

func TestClaudeClient_ClientErrorNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClaudeClient("key", "m").WithEndpoint(srv.URL).Complete(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	var re *RetryableError
	if errors.As(err, &re) {
		t.Errorf("400 should not be retryable: %v", err)
	}
}

func TestClaudeClient_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	if _, err := NewClaudeClient("key", "m").WithEndpoint(srv.URL).Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for empty content")
	}
}
