package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"evcal/internal/calendar"
	appLog "evcal/internal/log"
	"evcal/internal/screen"
)

//go:embed templates/*.html
var templateFS embed.FS

func mustParsePage() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/screen.html"))
}

type pageData struct {
	Screen   screen.State
	Calendar calendar.MonthView
	// Self is the page URL the forms redirect back to.
	Self string
}

// handlePage renders the screen. ?month=YYYY-MM picks the grid; otherwise
// the month of the date field, or the current month.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if err := s.screen.Load(r.Context()); err != nil {
		appLog.Error("screen load failed", err)
		http.Error(w, "failed to load events", http.StatusInternalServerError)
		return
	}
	state := s.screen.State()
	today := s.now().In(s.loc)

	year, month := today.Year(), today.Month()
	if d, err := time.Parse("2006-01-02", state.Date); err == nil {
		year, month = d.Year(), d.Month()
	}
	if m := r.URL.Query().Get("month"); m != "" {
		y, mo, err := calendar.ParseMonth(m)
		if err != nil {
			http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
			return
		}
		year, month = y, mo
	}

	view := calendar.Month(year, month, calendar.Options{
		WeekStart: calendar.ParseWeekStart(s.cfg.WeekStart),
		Marked:    state.MarkedDates,
		Selected:  state.Date,
		Today:     today,
	})

	var buf bytes.Buffer
	err := s.page.Execute(&buf, pageData{
		Screen:   state,
		Calendar: view,
		Self:     "/?month=" + view.Key(),
	})
	if err != nil {
		appLog.Error("render page failed", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
