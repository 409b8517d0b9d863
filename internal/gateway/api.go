package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/flemzord/tgcourier/internal/core"
	"github.com/flemzord/tgcourier/internal/delivery"
	"github.com/flemzord/tgcourier/internal/security"
)

// sendBody is the JSON body of POST /api/send. Mode is a mode name; empty
// selects the channel default.
type sendBody struct {
	delivery.SendRequest
	Mode string `json:"mode,omitempty"`
}

// editBody is the JSON body of POST /api/edit.
type editBody struct {
	delivery.EditRequest
	Mode string `json:"mode,omitempty"`
}

// sendResponse is returned by POST /api/send. On failure Error is set and
// MessageIDs lists the chunks that were delivered before it.
type sendResponse struct {
	MessageIDs    []int  `json:"message_ids"`
	PlainFallback bool   `json:"plain_fallback,omitempty"`
	Error         string `json:"error,omitempty"`
}

type moduleJSON struct {
	ID        string   `json:"id"`
	Namespace string   `json:"namespace"`
	Name      string   `json:"name"`
	Requires  []string `json:"requires,omitempty"`
	Loaded    bool     `json:"loaded"`
}

// handleSend delivers a message through the shared Deliverer.
func (g *Gateway) handleSend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body sendBody
		if err := security.DecodeJSON(r.Body, g.config.MaxBodyBytes, &body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		mode, err := g.mode(body.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req := body.SendRequest
		req.Mode = mode

		out, err := g.channel.Deliverer().Send(r.Context(), req)
		resp := sendResponse{MessageIDs: out.MessageIDs, PlainFallback: out.PlainFallback}
		if resp.MessageIDs == nil {
			resp.MessageIDs = []int{}
		}
		g.audit.Log(security.AuditEvent{
			Type:       security.EventSend,
			ChatID:     req.ChatID,
			MessageIDs: out.MessageIDs,
			Remote:     r.RemoteAddr,
			Detail:     errorText(err),
		})
		if err != nil {
			resp.Error = err.Error()
			writeJSON(w, deliveryStatus(err), resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleEdit replaces the text of a message sent earlier.
func (g *Gateway) handleEdit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body editBody
		if err := security.DecodeJSON(r.Body, g.config.MaxBodyBytes, &body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		mode, err := g.mode(body.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req := body.EditRequest
		req.Mode = mode

		_, err = g.channel.Deliverer().Edit(r.Context(), req)
		g.audit.Log(security.AuditEvent{
			Type:       security.EventEdit,
			ChatID:     req.ChatID,
			MessageIDs: []int{req.MessageID},
			Remote:     r.RemoteAddr,
			Detail:     errorText(err),
		})
		if err != nil {
			writeError(w, deliveryStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// handleModules lists all compiled modules, their requirements and whether
// this process loaded them.
func (g *Gateway) handleModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var statuses []core.ModuleStatus
		if g.runtime != nil {
			statuses = g.runtime.ModuleStatuses()
		} else {
			for _, info := range core.GetModules() {
				statuses = append(statuses, core.ModuleStatus{Info: info})
			}
		}

		out := make([]moduleJSON, 0, len(statuses))
		for _, st := range statuses {
			m := moduleJSON{
				ID:        string(st.Info.ID),
				Namespace: st.Info.ID.Namespace(),
				Name:      st.Info.ID.Name(),
				Loaded:    st.Loaded,
			}
			for _, req := range st.Info.Requires {
				m.Requires = append(m.Requires, string(req))
			}
			out = append(out, m)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (g *Gateway) mode(name string) (delivery.Mode, error) {
	if name == "" {
		return g.channel.DefaultMode(), nil
	}
	mode, err := delivery.ParseMode(name)
	if err != nil {
		return delivery.ModeNone, fmt.Errorf("mode: %w", err)
	}
	return mode, nil
}

// deliveryStatus maps a Deliverer error to an HTTP status.
func deliveryStatus(err error) int {
	switch {
	case errors.Is(err, delivery.ErrInvalidTarget), errors.Is(err, delivery.ErrEmptyText),
		errors.Is(err, delivery.ErrCallbackDataTooLong):
		return http.StatusBadRequest
	case errors.Is(err, delivery.ErrRetriesExhausted):
		return http.StatusServiceUnavailable
	}
	var te *delivery.TransportError
	if errors.As(err, &te) && te.Kind == delivery.KindChatUnreachable {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
