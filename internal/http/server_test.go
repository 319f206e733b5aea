package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"chatguard/internal/core"
)

func testServerConfig() *core.ServerConfig {
	return &core.ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	req, _ := http.NewRequestWithContext(context.Background(), "GET", url, http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to call %s: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", url, err)
	}
	return resp, string(body)
}

func TestNewServer(t *testing.T) {
	// Each server owns its registry, so several can coexist in one process
	first := NewServer(testServerConfig(), zap.NewNop())
	second := NewServer(testServerConfig(), zap.NewNop())

	if first.GetMetrics() == nil || second.GetMetrics() == nil {
		t.Fatal("NewServer() did not create metrics")
	}
	if first.registry == second.registry {
		t.Error("Servers should not share a registry")
	}
}

func TestCreateHTTPServer(t *testing.T) {
	config := &core.ServerConfig{
		Host:         "0.0.0.0",
		Port:         9090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	mux := http.NewServeMux()
	server := createHTTPServer(config, mux)

	expectedAddr := "0.0.0.0:9090"
	if server.Addr != expectedAddr {
		t.Errorf("createHTTPServer() Addr = %q, expected %q", server.Addr, expectedAddr)
	}

	if server.Handler != mux {
		t.Errorf("createHTTPServer() Handler mismatch")
	}

	if server.ReadTimeout != config.ReadTimeout {
		t.Errorf("createHTTPServer() ReadTimeout = %v, expected %v", server.ReadTimeout, config.ReadTimeout)
	}

	if server.WriteTimeout != config.WriteTimeout {
		t.Errorf("createHTTPServer() WriteTimeout = %v, expected %v", server.WriteTimeout, config.WriteTimeout)
	}
}

func TestSetupRoutes(t *testing.T) {
	ready := &atomic.Bool{}
	ready.Store(true)
	mux := setupRoutes(zap.NewNop(), prometheus.NewRegistry(), ready)

	server := httptest.NewServer(mux)
	defer server.Close()

	tests := []struct {
		path        string
		status      int
		contentType string
		body        string
	}{
		{"/healthz", http.StatusOK, "application/json", `{"status":"ok","service":"chatguard"}`},
		{"/readyz", http.StatusOK, "application/json", `{"status":"ready","service":"chatguard"}`},
		{"/metrics", http.StatusOK, "", ""},
		{"/", http.StatusOK, "text/html", ""},
		{"/missing", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, server.URL+tt.path)

			if resp.StatusCode != tt.status {
				t.Errorf("%s returned status %d, expected %d", tt.path, resp.StatusCode, tt.status)
			}
			if tt.contentType != "" {
				if contentType := resp.Header.Get("Content-Type"); contentType != tt.contentType {
					t.Errorf("%s Content-Type = %q, expected %q", tt.path, contentType, tt.contentType)
				}
			}
			if tt.body != "" && body != tt.body {
				t.Errorf("%s body = %q, expected %q", tt.path, body, tt.body)
			}
		})
	}
}

func TestReadyzBeforeReady(t *testing.T) {
	mux := setupRoutes(zap.NewNop(), prometheus.NewRegistry(), &atomic.Bool{})
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, body := get(t, server.URL+"/readyz")

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "starting") {
		t.Errorf("Expected starting status, got %q", body)
	}
}

func TestHomeHandler(t *testing.T) {
	handler := homeHandler(zap.NewNop())

	req := httptest.NewRequest("GET", "/", http.NoBody)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	if contentType := rec.Header().Get("Content-Type"); contentType != "text/html" {
		t.Errorf("Expected Content-Type text/html, got %q", contentType)
	}

	body := rec.Body.String()

	expectedElements := []string{
		"<!DOCTYPE html>",
		"<title>ChatGuard</title>",
		"/metrics",
		"/healthz",
		"/readyz",
	}

	for _, element := range expectedElements {
		if !strings.Contains(body, element) {
			t.Errorf("Expected body to contain %q", element)
		}
	}
}

func TestServerRecordsMetrics(t *testing.T) {
	server := NewServer(testServerConfig(), zap.NewNop())
	metrics := server.GetMetrics()

	server.IncEvent("text_message")
	server.IncEvent("text_message")
	server.IncRuleMatch(core.RuleFlood)
	server.IncAction(core.ActionDelete, nil)
	server.IncAction(core.ActionDelete, errors.New("forbidden"))
	server.IncCaptcha(core.CaptchaStarted)
	server.IncError("store", "get_settings")
	server.SetPendingCaptchas(3)
	server.SetFloodWindows(7)
	server.ObserveProcessing("text_message", 20*time.Millisecond)

	tests := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"events", testutil.ToFloat64(metrics.EventsTotal.WithLabelValues("text_message")), 2},
		{"rule matches", testutil.ToFloat64(metrics.RuleMatches.WithLabelValues(core.RuleFlood)), 1},
		{"successful deletes", testutil.ToFloat64(metrics.ActionsTotal.WithLabelValues(core.ActionDelete, "ok")), 1},
		{"failed deletes", testutil.ToFloat64(metrics.ActionsTotal.WithLabelValues(core.ActionDelete, "error")), 1},
		{"captchas", testutil.ToFloat64(metrics.CaptchaTotal.WithLabelValues(core.CaptchaStarted)), 1},
		{"errors", testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues("store", "get_settings")), 1},
		{"pending", testutil.ToFloat64(metrics.PendingCaptchas), 3},
		{"flood windows", testutil.ToFloat64(metrics.FloodWindows), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}

	if n := testutil.CollectAndCount(metrics.ProcessingTime); n != 1 {
		t.Errorf("Expected one processing histogram series, got %d", n)
	}
}

func TestMetricsEndpointExposesChatguardSeries(t *testing.T) {
	server := NewServer(testServerConfig(), zap.NewNop())
	server.IncEvent("membership_change")
	server.SetFloodWindows(2)

	httpServer := httptest.NewServer(server.server.Handler)
	defer httpServer.Close()

	_, body := get(t, httpServer.URL+"/metrics")
	if !strings.Contains(body, `chatguard_events_total{kind="membership_change"} 1`) {
		t.Errorf("Expected chatguard_events_total in metrics output")
	}
	if !strings.Contains(body, "chatguard_flood_active_windows 2") {
		t.Errorf("Expected chatguard_flood_active_windows in metrics output")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Errorf("Expected Go runtime metrics in output")
	}
}

func TestServer_StartContextCancellation(t *testing.T) {
	server := NewServer(testServerConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v after cancellation, expected nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestServer_StartInvalidPort(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve port: %v", err)
	}
	defer listener.Close()

	config := testServerConfig()
	config.Port = listener.Addr().(*net.TCPAddr).Port
	server := NewServer(config, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err == nil {
		t.Error("Start() on a port in use should fail")
	}
}
