// Package httpserver builds the HTTP server with timeouts sized for
// scan-session requests.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the server. Enrollment holds the connection open for two capture
// windows (30s each), so the write timeout has to outlast both plus matching;
// everything else is bounded tightly.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
