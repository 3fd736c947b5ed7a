package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	appLog "evcal/internal/log"
	"evcal/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// writeStoreError maps store failures to 404 or 500.
func writeStoreError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, store.ErrNotFound.Error())
		return
	}
	appLog.Error("store "+op+" failed", err)
	writeError(w, http.StatusInternalServerError, "failed to "+op+" event")
}

// pathID reads the {id} path value. ok is false when a 400 was written.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return 0, false
	}
	return id, true
}

// redirectTarget returns the local path given in the "redirect" form value,
// or "" when the client wants JSON. Anything that could leave the site
// becomes "/".
func redirectTarget(r *http.Request) string {
	target := r.FormValue("redirect")
	if target == "" {
		return ""
	}
	// Browsers drop tabs and newlines, then read "/\host" like "//host".
	if strings.ContainsAny(target, "\t\r\n") || !strings.HasPrefix(target, "/") || len(target) > 1 && (target[1] == '/' || target[1] == '\\') {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "/"
	}
	return target
}
