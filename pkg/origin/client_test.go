package origin

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		baseURL     string
		expectError bool
	}{
		{name: "valid http", baseURL: "http://kg-api:8000", expectError: false},
		{name: "valid https with path", baseURL: "https://kg.example.com/backend", expectError: false},
		{name: "empty", baseURL: "", expectError: true},
		{name: "relative", baseURL: "/api", expectError: true},
		{name: "unsupported scheme", baseURL: "ftp://kg-api", expectError: true},
		{name: "unparsable", baseURL: "http://[::1", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{BaseURL: tt.baseURL})
			if (err != nil) != tt.expectError {
				t.Errorf("New(%q) error = %v, expectError %v", tt.baseURL, err, tt.expectError)
			}
		})
	}
}

func TestClient_TargetURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		reqURL  string
		want    string
	}{
		{
			name:    "root base",
			baseURL: "http://kg-api:8000",
			reqURL:  "http://edge.local/api/kg/node/42",
			want:    "http://kg-api:8000/api/kg/node/42",
		},
		{
			name:    "query preserved verbatim",
			baseURL: "http://kg-api:8000",
			reqURL:  "http://edge.local/api/kg/nodes?limit=50&offset=100",
			want:    "http://kg-api:8000/api/kg/nodes?limit=50&offset=100",
		},
		{
			name:    "base path joined",
			baseURL: "https://kg.example.com/backend/",
			reqURL:  "http://edge.local/api/kg/stats",
			want:    "https://kg.example.com/backend/api/kg/stats",
		},
		{
			name:    "base path without trailing slash",
			baseURL: "https://kg.example.com/backend",
			reqURL:  "http://edge.local/health",
			want:    "https://kg.example.com/backend/health",
		},
		{
			name:    "escaped path kept",
			baseURL: "http://kg-api:8000",
			reqURL:  "http://edge.local/api/kg/node/a%2Fb",
			want:    "http://kg-api:8000/api/kg/node/a%2Fb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(Config{BaseURL: tt.baseURL})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			u, _ := url.Parse(tt.reqURL)

			if got := c.TargetURL(u).String(); got != tt.want {
				t.Errorf("TargetURL(%q) = %q, want %q", tt.reqURL, got, tt.want)
			}
		})
	}
}

func TestClient_Forward(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if r.URL.Path != "/api/graphrag/query" {
			t.Errorf("path = %q, want /api/graphrag/query", r.URL.Path)
		}
		if r.URL.RawQuery != "mode=local" {
			t.Errorf("query = %q, want mode=local", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("Authorization = %q, want Bearer token", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"q":"who"}` {
			t.Errorf("body = %q", body)
		}

		w.Header().Set("X-Origin", "kg")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"answer":"nobody"}`))
	}))
	defer upstream.Close()

	c, err := New(Config{BaseURL: upstream.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "http://edge.local/api/graphrag/query?mode=local", strings.NewReader(`{"q":"who"}`))
	req.Header.Set("Authorization", "Bearer token")
	req = req.WithContext(WithRoute(req.Context(), "never-cache"))

	before := testutil.ToFloat64(originRequestsTotal.WithLabelValues("never-cache", "202"))

	resp, err := c.Forward(req)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("StatusCode = %d, want 202", resp.StatusCode)
	}
	if resp.Header.Get("X-Origin") != "kg" {
		t.Errorf("X-Origin = %q, want kg", resp.Header.Get("X-Origin"))
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"answer":"nobody"}` {
		t.Errorf("body = %q", body)
	}

	if got := testutil.ToFloat64(originRequestsTotal.WithLabelValues("never-cache", "202")); got != before+1 {
		t.Errorf("origin requests counter = %v, want %v", got, before+1)
	}
}

func TestClient_Fetch_DropsBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) != 0 {
			t.Errorf("Fetch sent body %q, want none", body)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q, want application/json", r.Header.Get("Accept"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	c, _ := New(Config{BaseURL: upstream.URL})

	req := httptest.NewRequest(http.MethodGet, "/api/kg/stats", strings.NewReader("ignored"))
	req.Header.Set("Accept", "application/json")

	resp, err := c.Fetch(req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	resp.Body.Close()
}

func TestClient_DoesNotFollowRedirects(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer upstream.Close()

	c, _ := New(Config{BaseURL: upstream.URL})

	resp, err := c.Fetch(httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("StatusCode = %d, want 302", resp.StatusCode)
	}
	if resp.Header.Get("Location") != "/elsewhere" {
		t.Errorf("Location = %q, want /elsewhere", resp.Header.Get("Location"))
	}
}

func TestClient_NetworkError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := upstream.URL
	upstream.Close()

	c, _ := New(Config{BaseURL: baseURL})

	_, err := c.Fetch(httptest.NewRequest(http.MethodGet, "/api/kg/node/1", nil))
	if err == nil {
		t.Fatal("Fetch() error = nil, want error")
	}

	var originErr *Error
	if !errors.As(err, &originErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if originErr.Method != http.MethodGet {
		t.Errorf("Method = %q, want GET", originErr.Method)
	}
	if originErr.URL != baseURL+"/api/kg/node/1" {
		t.Errorf("URL = %q, want %q", originErr.URL, baseURL+"/api/kg/node/1")
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	c, _ := New(Config{BaseURL: upstream.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/kg/stats", nil).WithContext(ctx)

	_, err := c.Fetch(req)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}

func TestClient_UsesConfiguredLogger(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	buf := &bytes.Buffer{}
	logger := zerolog.New(buf).Level(zerolog.DebugLevel)

	c, err := New(Config{BaseURL: upstream.URL, Logger: &logger})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := c.Fetch(httptest.NewRequest(http.MethodGet, "/api/kg/stats", nil))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	resp.Body.Close()

	output := buf.String()
	if !strings.Contains(output, "Origin responded") {
		t.Errorf("configured logger output = %q, want the origin response line", output)
	}
	if !strings.Contains(output, `"url":"`+upstream.URL+`/api/kg/stats"`) {
		t.Errorf("configured logger output = %q, missing target url", output)
	}
}
