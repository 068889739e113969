// Package unit contains unit tests for individual components of the GoChat server.
//
// These tests focus on testing specific functions and methods in isolation,
// using stopped or locally bound servers where necessary to avoid dependencies
// on external systems. Unit tests ensure that each component behaves correctly
// under various conditions.
package unit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/gochat-ircd/internal/server"
)

func newStoppedServer() *server.Server {
	cfg := server.NewConfig()
	cfg.Port = "127.0.0.1:0"
	return server.New(cfg, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func newRunningServer(t *testing.T) *server.Server {
	t.Helper()
	srv := newStoppedServer()
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv
}

// TestHealthHandlerUnit tests the health handler function in isolation.
// It verifies that the handler responds correctly to different HTTP methods
// and returns the expected status code and response body.
func TestHealthHandlerUnit(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "GET request to health endpoint",
			method:         "GET",
			expectedStatus: http.StatusOK,
			expectedBody:   "GoChat server is running!",
		},
		{
			name:           "POST request to health endpoint",
			method:         "POST",
			expectedStatus: http.StatusOK,
			expectedBody:   "GoChat server is running!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, "/", http.NoBody)
			if err != nil {
				t.Fatal(err)
			}

			rr := httptest.NewRecorder()

			server.HealthHandler(rr, req)

			if status := rr.Code; status != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v",
					status, tt.expectedStatus)
			}

			if rr.Body.String() != tt.expectedBody {
				t.Errorf("handler returned unexpected body: got %v want %v",
					rr.Body.String(), tt.expectedBody)
			}
		})
	}
}

// TestStatusHandlerReportsLifecycle verifies that the status endpoint follows
// the server through start and stop.
func TestStatusHandlerReportsLifecycle(t *testing.T) {
	srv := newStoppedServer()
	handler := server.StatusHandler(srv)

	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest("GET", "/status", nil))
	if body := rr.Body.String(); body != "state=STOPPED connections=0\n" {
		t.Errorf("Unexpected status body for stopped server: %q", body)
	}

	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	rr = httptest.NewRecorder()
	handler(rr, httptest.NewRequest("GET", "/status", nil))
	if body := rr.Body.String(); body != "state=RUNNING connections=0\n" {
		t.Errorf("Unexpected status body for running server: %q", body)
	}

	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

// TestSetupRoutes tests the route setup function.
// It verifies that SetupRoutes returns a properly configured ServeMux
// with the health and metrics routes registered.
func TestSetupRoutes(t *testing.T) {
	mux := server.SetupRoutes(newStoppedServer())

	if mux == nil {
		t.Fatal("SetupRoutes returned nil mux")
	}

	req, err := http.NewRequest("GET", "/", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v",
			status, http.StatusOK)
	}

	expected := "GoChat server is running!"
	if rr.Body.String() != expected {
		t.Errorf("handler returned unexpected body: got %v want %v",
			rr.Body.String(), expected)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("metrics endpoint returned %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "gochat_connections_active") {
		t.Error("metrics endpoint does not expose gochat_connections_active")
	}
}

// TestCreateServer tests the server creation function.
// It verifies that CreateServer returns an HTTP server with the correct
// configuration including address, handler, and timeout settings.
func TestCreateServer(t *testing.T) {
	port := ":8080"
	mux := server.SetupRoutes(newStoppedServer())

	srv := server.CreateServer(port, mux)

	if srv.Addr != port {
		t.Errorf("Expected server addr %s, got %s", port, srv.Addr)
	}

	if srv.Handler != mux {
		t.Error("Server handler not set correctly")
	}

	expectedReadTimeout := 15 * time.Second
	expectedWriteTimeout := 15 * time.Second
	expectedIdleTimeout := 60 * time.Second

	if srv.ReadTimeout != expectedReadTimeout {
		t.Errorf("Expected ReadTimeout %v, got %v", expectedReadTimeout, srv.ReadTimeout)
	}

	if srv.WriteTimeout != expectedWriteTimeout {
		t.Errorf("Expected WriteTimeout %v, got %v", expectedWriteTimeout, srv.WriteTimeout)
	}

	if srv.IdleTimeout != expectedIdleTimeout {
		t.Errorf("Expected IdleTimeout %v, got %v", expectedIdleTimeout, srv.IdleTimeout)
	}
}

// TestNewConfig tests the configuration creation function.
// It verifies that NewConfig returns a properly initialized Config
// struct with the expected default values.
func TestNewConfig(t *testing.T) {
	config := server.NewConfig()

	if config == nil {
		t.Fatal("NewConfig returned nil")
	}

	expectedPort := ":6667"
	if config.Port != expectedPort {
		t.Errorf("Expected default port %s, got %s", expectedPort, config.Port)
	}

	expectedWebSocketPort := ":8080"
	if config.WebSocketPort != expectedWebSocketPort {
		t.Errorf("Expected default WebSocket port %s, got %s", expectedWebSocketPort, config.WebSocketPort)
	}
}
