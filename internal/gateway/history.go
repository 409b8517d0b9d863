package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/flemzord/tgcourier/internal/delivery"
)

const (
	defaultHistoryWindow = 24 * time.Hour
	defaultHistoryLimit  = 288
	maxHistoryLimit      = 10000
)

// HistoryResponse is the JSON response for GET /api/stats/history.
type HistoryResponse struct {
	Since   time.Time              `json:"since"`
	Records []delivery.StatsRecord `json:"records"`
}

// handleStatsHistory returns snapshots taken since the "since" query
// parameter (RFC 3339, default 24h ago), capped by "limit".
func (g *Gateway) handleStatsHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.history == nil {
			writeError(w, http.StatusNotFound, errors.New("stats history is not enabled"))
			return
		}

		q := r.URL.Query()
		since := time.Now().Add(-defaultHistoryWindow)
		if v := q.Get("since"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, errors.New("since must be an RFC 3339 timestamp"))
				return
			}
			since = t
		}

		limit := defaultHistoryLimit
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > maxHistoryLimit {
				writeError(w, http.StatusBadRequest, errors.New("limit must be between 1 and "+strconv.Itoa(maxHistoryLimit)))
				return
			}
			limit = n
		}

		records, err := g.history.History(r.Context(), since, limit)
		if err != nil {
			g.logger.Error("gateway: stats history query failed", "error", err)
			writeError(w, http.StatusInternalServerError, errors.New("stats history unavailable"))
			return
		}
		if records == nil {
			records = []delivery.StatsRecord{}
		}
		writeJSON(w, http.StatusOK, HistoryResponse{Since: since, Records: records})
	}
}
