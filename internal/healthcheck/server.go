// Package healthcheck runs the tiny /healthz HTTP server every daemon
// binary (submission API, router, channel worker, sweeper) exposes
// alongside its main work loop.
package healthcheck

import (
	"log"
	"net/http"
	"time"
)

// Start launches a /healthz server on port in a background goroutine and
// returns it so the caller can shut it down gracefully.
func Start(port string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("health server error: %v", err)
		}
	}()
	return server
}
