package api

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

func testEnvelope() *Envelope {
	data, _ := json.Marshal(GetInboxRequest{})
	return &Envelope{
		Action:          ActionGetInbox,
		Data:            data,
		Signature:       "sig",
		WalletPublicKey: "wallet",
	}
}

func fastRetry() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestInvoke_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != relayPath {
			t.Errorf("path = %s, want %s", r.URL.Path, relayPath)
		}

		var env Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if env.Action != ActionGetInbox {
			t.Errorf("action = %s, want %s", env.Action, ActionGetInbox)
		}

		json.NewEncoder(w).Encode(MessageListResponse{
			Messages: []MessageRecord{{ID: "m1"}},
		})
	}))
	defer ts.Close()

	c, err := New(WithBaseURL(ts.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var result MessageListResponse
	if err := c.Invoke(context.Background(), testEnvelope(), &result); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if len(result.Messages) != 1 || result.Messages[0].ID != "m1" {
		t.Errorf("result = %+v", result)
	}
}

func TestInvoke_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid signature"})
	}))
	defer ts.Close()

	c, err := New(WithBaseURL(ts.URL), WithRetryConfig(fastRetry()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = c.Invoke(context.Background(), testEnvelope(), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
	if apiErr.Message != "invalid signature" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestInvoke_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(MessageListResponse{})
	}))
	defer ts.Close()

	c, err := New(WithBaseURL(ts.URL), WithRetryConfig(fastRetry()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var result MessageListResponse
	if err := c.Invoke(context.Background(), testEnvelope(), &result); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestInvoke_DoesNotRetryAuthFailures(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	c, err := New(WithBaseURL(ts.URL), WithRetryConfig(fastRetry()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := c.Invoke(context.Background(), testEnvelope(), nil); err == nil {
		t.Fatal("Invoke() error = nil for 403")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", got)
	}
}

func TestInvoke_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	c, err := New(WithBaseURL(ts.URL), WithTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = c.Invoke(context.Background(), testEnvelope(), nil)
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("error = %T (%v), want *TimeoutError", err, err)
	}
}

func TestInvoke_NetworkError(t *testing.T) {
	// Closed server: connection refused.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c, err := New(WithBaseURL(url))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = c.Invoke(context.Background(), testEnvelope(), nil)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %T (%v), want *NetworkError", err, err)
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("New() without base URL succeeded")
	}
}
