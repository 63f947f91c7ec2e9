package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"stayscan/internal/app"
	"stayscan/internal/domain"
)

type Handlers struct{ Q *app.QueryService }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (h *Handlers) routes(m *chi.Mux) {
	m.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	m.Get("/v1/rooms/{id}/calendar", h.getCalendar)
	m.Get("/v1/rooms/{id}/days/{day}/transitions", h.listTransitions)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func parseDay(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (h *Handlers) getCalendar(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	if roomID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid room", "room id is required")
		return
	}

	var q domain.DaysQuery
	if fs := r.URL.Query().Get("from"); fs != "" {
		t, ok := parseDay(fs)
		if !ok {
			writeProblem(w, http.StatusBadRequest, "Invalid from", "from must be YYYY-MM-DD")
			return
		}
		q.From = t
	}
	if ts := r.URL.Query().Get("to"); ts != "" {
		t, ok := parseDay(ts)
		if !ok {
			writeProblem(w, http.StatusBadRequest, "Invalid to", "to must be YYYY-MM-DD")
			return
		}
		q.To = t
	}

	days, err := h.Q.GetCalendar(r.Context(), roomID, q)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "calendar not found")
		return
	}

	etag, body := calcETagAndBody(days)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getCalendar body")
	}
}

func (h *Handlers) listTransitions(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	day, ok := parseDay(chi.URLParam(r, "day"))
	if roomID == "" || !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid key", "need a room id and a YYYY-MM-DD day")
		return
	}

	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}

	out, err := h.Q.ListTransitions(r.Context(), roomID, day, limit)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "transitions not found")
		return
	}

	etag, body := calcETagAndBody(out)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write listTransitions body")
	}
}
