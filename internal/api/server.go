package api

import (
	"net/http"
	"time"
)

// NewServer builds an HTTP server with this project's defaults.
// WriteTimeout leaves room for a slow generator call.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
