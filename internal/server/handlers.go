// Package server exposes HTTP handlers, including the WebSocket gateway and
// health checks.
package server

import (
	"fmt"
	"net/http"
)

// WebSocketHandler upgrades GET requests to WebSocket and attaches the
// connection to srv as an IRC client. Each text frame carries one or more
// protocol lines.
func WebSocketHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		if srv.State() != StateRunning {
			http.Error(w, "IRC server is not running.", http.StatusServiceUnavailable)
			return
		}

		conn, err := srv.upgrader.Upgrade(w, r, nil)
		if err != nil {
			srv.logger.Warn("WebSocket upgrade failed", "error", err)
			return
		}

		tr := newWSTransport(conn, r.RemoteAddr, srv.cfg.MaxLineLength)
		if err := srv.Attach(tr); err != nil {
			srv.logger.Info("Rejected WebSocket client", "addr", r.RemoteAddr, "error", err)
			_ = tr.Close()
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "GoChat server is running!")
}

// StatusHandler reports the lifecycle state and connection count of srv.
func StatusHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "state=%s connections=%d\n", srv.State(), srv.ConnectionCount())
	}
}
