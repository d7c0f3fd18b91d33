package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(ts *httptest.Server) *HTTPClient {
	c := NewHTTPClient("test", Options{RPS: 1000, Burst: 100, MaxAttempts: 3, BaseBackoff: 10 * time.Millisecond})
	c.baseURL = ts.URL
	c.httpClient = ts.Client()
	return c
}

func TestResolveHandlesBatchesRequests(t *testing.T) {
	var lookupCalls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1.1/guest/activate.json":
			if r.Method != http.MethodPost {
				t.Errorf("activate method: %s", r.Method)
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"guest_token": "gt-1"})
		case "/1.1/users/lookup.json":
			lookupCalls++
			if got := r.Header.Get("x-guest-token"); got != "gt-1" {
				t.Errorf("guest token header: %q", got)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test" {
				t.Errorf("authorization header: %q", got)
			}
			ids := strings.Split(r.URL.Query().Get("user_id"), ",")
			if len(ids) > 100 {
				t.Errorf("batch too large: %d ids", len(ids))
			}
			var out []map[string]string
			for _, id := range ids {
				out = append(out, map[string]string{"id_str": id, "screen_name": "user" + id})
			}
			_ = json.NewEncoder(w).Encode(out)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	ids := make([]string, 150)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", i+1)
	}
	c := newTestClient(ts)
	got, err := c.ResolveHandles(context.Background(), ids)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if lookupCalls != 2 {
		t.Fatalf("expected 2 lookup calls, got %d", lookupCalls)
	}
	if len(got) != 150 || got["1"] != "user1" || got["150"] != "user150" {
		t.Fatalf("unexpected result size %d", len(got))
	}
}

func TestResolveHandlesRequiresToken(t *testing.T) {
	c := NewHTTPClient("", Options{})
	if _, err := c.ResolveHandles(context.Background(), []string{"1"}); err == nil {
		t.Fatal("expected error without bearer token")
	}
}

func TestResolveHandlesEmptyInput(t *testing.T) {
	c := NewHTTPClient("", Options{})
	got, err := c.ResolveHandles(context.Background(), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestDoWithRetryHandles429(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/test", nil)
	resp, err := c.doWithRetry(context.Background(), req, "test")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if attempts < 2 {
		t.Fatalf("expected at least 2 attempts, got %d", attempts)
	}
}

func TestDoWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/test", nil)
	resp, err := c.doWithRetry(context.Background(), req, "test")
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected failure after retries exhausted")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}