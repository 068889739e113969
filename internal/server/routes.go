// Package server wires HTTP handlers into a ServeMux for the GoChat
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// It sets up handlers for health check, server status, metrics and the
// WebSocket endpoint.
func SetupRoutes(srv *Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/status", StatusHandler(srv))
	mux.Handle("/metrics", srv.Metrics().Handler())
	mux.HandleFunc("/ws", WebSocketHandler(srv))
	return mux
}
