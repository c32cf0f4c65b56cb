package handlers

import (
	"net/http"
	"strconv"

	"subtrack/internal/auth"
)

const defaultLogLimit = 100

func logLimit(r *http.Request) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLogLimit
}

// MyLogs returns the caller's own audit trail, newest first.
func MyLogs(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFromContext(r.Context())
		logs, err := d.Audit.ListByActor(r.Context(), u.ID, logLimit(r))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, logs)
	}
}

// AllLogs returns recent audit entries across all actors. Admin only,
// enforced by the route group.
func AllLogs(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := d.Audit.ListRecent(r.Context(), logLimit(r))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, logs)
	}
}
