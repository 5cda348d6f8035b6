// Package web provides an HTTP status server for the button-sensor daemon.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/button-sensor/internal/status"
)

// Server serves the button status over HTTP:
//
//	/, /index.html  status page
//	/index.json     full status document
//	/state          current state as one line of text, for scripts
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/state", s.handleState)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           readOnly(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routing handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// readOnly rejects anything but GET and HEAD and marks responses uncacheable,
// since the button state changes between polls.
func readOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleState writes e.g. "LONG_PRESSING" and, when a gesture has been
// published, the last one: "LONG_PRESSING LONG_PRESS_START".
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if snap.LastEvent == nil {
		fmt.Fprintf(w, "%s\n", snap.State)
		return
	}
	fmt.Fprintf(w, "%s %s\n", snap.State, snap.LastEvent.Type)
}
