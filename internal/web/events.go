package web

import (
	"encoding/json"
	"net/http"

	"evcal/internal/ics"
	appLog "evcal/internal/log"
	"evcal/internal/model"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := s.store.List(r.Context())
	if err != nil {
		writeStoreError(w, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var d model.Draft
	if !decodeJSON(w, r, &d) {
		return
	}
	ev, err := s.store.Create(r.Context(), d)
	if err != nil {
		writeStoreError(w, "create", err)
		return
	}
	appLog.Info("api event created", "id", ev.ID, "date", ev.Date)
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var d model.Draft
	if !decodeJSON(w, r, &d) {
		return
	}
	ev, err := s.store.Update(r.Context(), model.Event{ID: id, Title: d.Title, Date: d.Date})
	if err != nil {
		writeStoreError(w, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleICS publishes the store as an iCalendar feed. UIDs depend on the
// configured domain only, so every host name the feed is reached by yields
// the same events.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	evs, err := s.store.List(r.Context())
	if err != nil {
		writeStoreError(w, "list", err)
		return
	}
	body := ics.Export(evs, ics.ExportOptions{
		Name:   s.cfg.Export.Name,
		Domain: s.cfg.Export.Domain,
		Now:    s.now(),
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	_, _ = w.Write([]byte(body))
}

// handlePreview serves the last PNG written by the capture step.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	// ServeFile answers 404 for a missing capture.
	http.ServeFile(w, r, s.cfg.Capture.Output)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
