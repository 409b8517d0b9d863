package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Error  string `json:"error,omitempty"`

	// Modules maps each module with a health check to "ok" or its error.
	Modules map[string]string `json:"modules,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when every checked module is healthy (the Bot API accepts the
// token, the stats database answers), 503 otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), g.config.HealthTimeout)
		defer cancel()

		resp := HealthResponse{Status: "ok"}
		var failed []error
		if g.runtime != nil {
			resp.Modules = make(map[string]string)
			for _, h := range g.runtime.CheckHealth(ctx) {
				if h.Err != nil {
					resp.Modules[string(h.ID)] = h.Err.Error()
					failed = append(failed, fmt.Errorf("%s: %w", h.ID, h.Err))
					continue
				}
				resp.Modules[string(h.ID)] = "ok"
			}
		} else if err := g.channel.HealthCheck(ctx); err != nil {
			failed = append(failed, err)
		}

		code := http.StatusOK
		if len(failed) > 0 {
			err := errors.Join(failed...)
			g.logger.Warn("health check failed", "error", err)
			resp.Status = "degraded"
			resp.Error = err.Error()
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
