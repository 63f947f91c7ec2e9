// Package httpserver serves the persisted calendar timeline over HTTP: the
// current day records per room and the append-only transition trail behind
// them. Read-only; all writes happen in the scan job.
package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Server struct{ mux *chi.Mux }

// New assembles the router with its full middleware chain and the calendar
// routes already mounted: a Server is ready to serve once constructed. The
// timeout caps how long any single request may run; a non-positive value
// falls back to 15s.
func New(timeout time.Duration, h *Handlers) *Server {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	m := chi.NewRouter()
	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(Timeout(timeout))
	m.Use(Metrics)
	m.Use(AccessLog(log.Logger))

	h.routes(m)
	return &Server{mux: m}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches a handler outside the calendar surface, e.g. /metrics.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
