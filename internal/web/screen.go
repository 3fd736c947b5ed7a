package web

import (
	"net/http"

	appLog "evcal/internal/log"
	"evcal/internal/model"
)

// Screen routes drive the single shared screen. Each replies with the new
// screen state, or redirects back to the page when the request came from
// the HTML form.

func (s *Server) handleScreenState(w http.ResponseWriter, r *http.Request) {
	if err := s.screen.Load(r.Context()); err != nil {
		appLog.Error("screen load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, s.screen.State())
}

func (s *Server) handleScreenTitle(w http.ResponseWriter, r *http.Request) {
	s.screen.SetTitle(r.FormValue("title"))
	s.replyScreen(w, r)
}

func (s *Server) handleScreenDate(w http.ResponseWriter, r *http.Request) {
	s.screen.SetDate(r.FormValue("date"))
	s.replyScreen(w, r)
}

// handleScreenTap is a calendar tap; unlike /date it only accepts a real
// day. The page posts the day as "tap" along with the entry form, whose
// title is kept.
func (s *Server) handleScreenTap(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	raw := r.Form.Get("tap")
	if raw == "" {
		raw = r.Form.Get("date")
	}
	day, err := model.ParseDate(raw, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if _, ok := r.Form["title"]; ok {
		s.screen.SetTitle(r.Form.Get("title"))
	}
	s.screen.TapDay(day)
	s.replyScreen(w, r)
}

// handleScreenSubmit applies title and date when the form carries them, then
// submits. An incomplete form is not an error; the state comes back
// unchanged.
func (s *Server) handleScreenSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	s.applyFields(r)

	if _, err := s.screen.Submit(r.Context()); err != nil {
		appLog.Error("screen submit failed", err)
		writeError(w, http.StatusInternalServerError, "failed to save event")
		return
	}
	s.replyScreen(w, r)
}

func (s *Server) handleScreenEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.screen.Load(r.Context()); err != nil {
		appLog.Error("screen load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	if !s.screen.EditByID(id) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	s.replyScreen(w, r)
}

// handleScreenDelete keeps whatever the entry form carried, so a half-typed
// event survives deleting another one.
func (s *Server) handleScreenDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	s.applyFields(r)
	if err := s.screen.Delete(r.Context(), id); err != nil {
		appLog.Error("screen delete failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}
	s.replyScreen(w, r)
}

// applyFields copies the title and date the form carries into the screen.
// Absent fields are left alone. r.ParseForm must have run.
func (s *Server) applyFields(r *http.Request) {
	if _, ok := r.Form["title"]; ok {
		s.screen.SetTitle(r.Form.Get("title"))
	}
	if _, ok := r.Form["date"]; ok {
		s.screen.SetDate(r.Form.Get("date"))
	}
}

func (s *Server) replyScreen(w http.ResponseWriter, r *http.Request) {
	if target := redirectTarget(r); target != "" {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, s.screen.State())
}
