package handlers

import (
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/pysugar/codex-nexus/internal/db"
)

// Stats handles GET /stats: aggregate counters plus the most recent
// request-log rows, for local diagnostics.
func Stats(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if database == nil {
			writeOpenAIError(w, "request logging is disabled", http.StatusNotFound)
			return
		}

		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"stats":  db.GetRequestStats(database),
			"recent": db.RecentRequests(database, limit),
		})
	}
}
