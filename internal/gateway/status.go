package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/tgcourier/internal/delivery"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime      int64                  `json:"uptime_seconds"`
	DefaultMode string                 `json:"default_mode"`
	Limits      LimitsJSON             `json:"limits"`
	Stats       delivery.StatsSnapshot `json:"stats"`

	// LastSnapshot is when counters were last persisted. It is omitted
	// when no stats store is loaded or nothing has been saved yet.
	LastSnapshot *time.Time `json:"last_snapshot,omitempty"`
}

// LimitsJSON reports the delivery limits in effect.
type LimitsJSON struct {
	MaxTextLength int `json:"max_text_length"`
	PerSecond     int `json:"per_second"`
	PerMinute     int `json:"per_minute"`
	MaxRetries    int `json:"max_retries"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := g.channel.Deliverer()
		cfg := d.Config()
		resp := StatusResponse{
			Uptime:      int64(time.Since(g.startedAt) / time.Second),
			DefaultMode: g.channel.DefaultMode().String(),
			Limits: LimitsJSON{
				MaxTextLength: cfg.MaxTextLength,
				PerSecond:     cfg.PerSecond,
				PerMinute:     cfg.PerMinute,
				MaxRetries:    cfg.Retries(),
			},
			Stats: d.Stats(),
		}
		if g.history != nil {
			rec, ok, err := g.history.Latest(r.Context())
			switch {
			case err != nil:
				g.logger.Warn("gateway: read last stats snapshot", "error", err)
			case ok:
				resp.LastSnapshot = &rec.At
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
