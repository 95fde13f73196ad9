package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/streamcommerce-dash/internal/model"
	"github.com/rickgao/streamcommerce-dash/internal/version"
)

// scriptedServer answers each request with the next status in statuses,
// repeating the last one, and counts attempts.
func scriptedServer(t *testing.T, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&attempts, 1))
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		if status >= 300 {
			w.WriteHeader(status)
			w.Write([]byte(`{"detail": "unavailable"}`))
			return
		}
		w.Write([]byte(`{"total_events": 1, "unique_users": 1, "events_last_hour": 1, "event_types": {}}`))
	}))
	t.Cleanup(server.Close)
	return server, &attempts
}

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8000/", "tok")
	if c.BaseURL() != "http://localhost:8000" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", c.BaseURL())
	}
	if c.maxRetries != 0 {
		t.Errorf("maxRetries = %d, want retries off by default", c.maxRetries)
	}
	if c.httpClient.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", c.httpClient.Timeout)
	}

	hc := &http.Client{}
	c = NewClient("http://x", "", WithHTTPClient(hc), WithRetries(2, time.Millisecond), WithClientID("abc"))
	if c.httpClient != hc || c.maxRetries != 2 || c.retryBackoff != time.Millisecond || c.clientID != "abc" {
		t.Errorf("options not applied: %+v", c)
	}
}

func TestRequestHeaders(t *testing.T) {
	tests := []struct {
		name        string
		token       string
		clientID    string
		call        func(*Client) error
		wantAuth    string
		wantID      string
		wantContent string
	}{
		{
			name:  "read with credentials",
			token: "secret", clientID: "c-1",
			call: func(c *Client) error {
				_, err := c.GetStats(context.Background())
				return err
			},
			wantAuth: "Bearer secret", wantID: "c-1",
		},
		{
			name: "anonymous write",
			call: func(c *Client) error {
				_, err := c.Track(context.Background(), model.TrackRequest{EventType: "click"})
				return err
			},
			wantContent: "application/json",
		},
		{
			name:  "bodyless write",
			token: "secret",
			call: func(c *Client) error {
				_, err := c.GenerateDemoTraffic(context.Background())
				return err
			},
			wantAuth: "Bearer secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got http.Header
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Clone()
				w.Write([]byte(`{}`))
			}))
			defer server.Close()

			c := NewClient(server.URL, tt.token, WithClientID(tt.clientID))
			if err := tt.call(c); err != nil {
				t.Fatalf("call failed: %v", err)
			}

			if v := got.Get("Authorization"); v != tt.wantAuth {
				t.Errorf("Authorization = %q, want %q", v, tt.wantAuth)
			}
			if v := got.Get("X-Client-ID"); v != tt.wantID {
				t.Errorf("X-Client-ID = %q, want %q", v, tt.wantID)
			}
			if v := got.Get("Content-Type"); v != tt.wantContent {
				t.Errorf("Content-Type = %q, want %q", v, tt.wantContent)
			}
			if v := got.Get("User-Agent"); v != version.UserAgent() {
				t.Errorf("User-Agent = %q, want %q", v, version.UserAgent())
			}
			if v := got.Get("Accept"); v != "application/json" {
				t.Errorf("Accept = %q", v)
			}
		})
	}
}

func TestGetEvents_LimitQuery(t *testing.T) {
	tests := []struct {
		limit int
		want  string
	}{
		{5, "limit=5"},
		{DefaultEventLimit, "limit=20"},
		{0, ""},
	}

	for _, tt := range tests {
		var raw string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw = r.URL.RawQuery
			w.Write([]byte(`{"events": [], "total": 0}`))
		}))

		_, err := NewClient(server.URL, "").GetEvents(context.Background(), tt.limit)
		server.Close()
		if err != nil {
			t.Fatalf("limit %d: %v", tt.limit, err)
		}
		if raw != tt.want {
			t.Errorf("limit %d: query = %q, want %q", tt.limit, raw, tt.want)
		}
	}
}

func TestAPIError_FromServerDetail(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		retryable   bool
	}{
		{"missing event", http.StatusNotFound, `{"detail": "Event not found"}`, "Event not found", false},
		{"validation list", http.StatusUnprocessableEntity, `{"detail": [{"loc": ["body", "event_type"], "msg": "field required"}]}`, "Unprocessable Entity", false},
		{"rate limited", http.StatusTooManyRequests, ``, "Too Many Requests", true},
		{"tracking failed", http.StatusInternalServerError, `{"detail": "Failed to track event"}`, "Failed to track event", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "").GetStats(context.Background())

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError in chain", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMessage)
			}
			if string(apiErr.Body) != tt.body {
				t.Errorf("Body = %q, want %q", apiErr.Body, tt.body)
			}
			if apiErr.IsRetryable() != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", apiErr.IsRetryable(), tt.retryable)
			}
			if !strings.Contains(err.Error(), "get stats") {
				t.Errorf("error = %q, want operation prefix", err)
			}
		})
	}
}

func TestReadRetries(t *testing.T) {
	tests := []struct {
		name         string
		retries      int
		statuses     []int
		wantAttempts int32
		wantErr      bool
		wantExceeded bool
	}{
		{"off by default", 0, []int{503}, 1, true, false},
		{"recovers after 5xx", 3, []int{500, 500, 200}, 3, false, false},
		{"recovers after 429", 3, []int{429, 200}, 2, false, false},
		{"client error not retried", 3, []int{400}, 1, true, false},
		{"exhausted", 2, []int{502}, 3, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, attempts := scriptedServer(t, tt.statuses...)

			c := NewClient(server.URL, "")
			if tt.retries > 0 {
				c = NewClient(server.URL, "", WithRetries(tt.retries, time.Millisecond))
			}

			_, err := c.GetStats(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := atomic.LoadInt32(attempts); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
			if err != nil && strings.Contains(err.Error(), "max retries exceeded") != tt.wantExceeded {
				t.Errorf("error = %q, exceeded wrapping want %v", err, tt.wantExceeded)
			}
		})
	}
}

func TestWritesNeverRetried(t *testing.T) {
	writes := map[string]func(*Client) error{
		"track": func(c *Client) error {
			_, err := c.Track(context.Background(), model.TrackRequest{EventType: "purchase"})
			return err
		},
		"demo traffic": func(c *Client) error {
			_, err := c.GenerateDemoTraffic(context.Background())
			return err
		},
		"clear": func(c *Client) error {
			_, err := c.ClearEvents(context.Background())
			return err
		},
		"anomalies": func(c *Client) error {
			_, err := c.GenerateAnomalies(context.Background())
			return err
		},
	}

	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			server, attempts := scriptedServer(t, http.StatusServiceUnavailable)

			err := write(NewClient(server.URL, "", WithRetries(3, time.Millisecond)))

			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
				t.Fatalf("error = %v, want 503 APIError", err)
			}
			if got := atomic.LoadInt32(attempts); got != 1 {
				t.Errorf("attempts = %d, want 1", got)
			}
		})
	}
}

func TestReadRetries_CancelDuringBackoff(t *testing.T) {
	server, attempts := scriptedServer(t, http.StatusServiceUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	c := NewClient(server.URL, "", WithRetries(5, time.Hour))
	start := time.Now()
	_, err := c.GetStats(ctx)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt the backoff")
	}
	if got := atomic.LoadInt32(attempts); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"fastapi detail", 500, `{"detail": "Failed to track event"}`, "Failed to track event"},
		{"validation detail list", 422, `{"detail": [{"loc": ["body", "event_type"]}]}`, "Unprocessable Entity"},
		{"plain text", 502, `bad gateway`, "Bad Gateway"},
		{"empty", 404, ``, "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorMessage(tt.status, []byte(tt.body)); got != tt.want {
				t.Errorf("errorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
