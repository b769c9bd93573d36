package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Jason-Cooke/nylas-mail/internal/action"
)

// health handles GET /health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"windowId": s.windowID,
		"main":     s.main,
		"uptime":   time.Since(s.started).String(),
	})
}

// actionInfo is one row of the /actions listing.
type actionInfo struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
}

// listActions handles GET /actions. ?scope= filters by scope and
// ?pattern= filters names with a doublestar glob; rows keep
// registration order.
func (s *Server) listActions(w http.ResponseWriter, r *http.Request) {
	scopeFilter := r.URL.Query().Get("scope")
	if scopeFilter != "" && !action.Scope(scopeFilter).Valid() {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			fmt.Sprintf("unknown scope %q", scopeFilter))
		return
	}

	pattern := r.URL.Query().Get("pattern")
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			fmt.Sprintf("invalid pattern %q", pattern))
		return
	}

	infos := make([]actionInfo, 0, s.registry.Len())
	for _, ch := range s.registry.All() {
		if scopeFilter != "" && ch.Scope().String() != scopeFilter {
			continue
		}
		if pattern != "" {
			matched, _ := doublestar.Match(pattern, ch.Name())
			if !matched {
				continue
			}
		}
		infos = append(infos, actionInfo{Name: ch.Name(), Scope: ch.Scope().String()})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"windowId": s.windowID,
		"actions":  infos,
		"count":    len(infos),
	})
}

// firedEvent is what the /events tap streams per local firing.
type firedEvent struct {
	Action  string    `json:"action"`
	Scope   string    `json:"scope"`
	Payload any       `json:"payload,omitempty"`
	FiredAt time.Time `json:"firedAt"`
}

// events handles GET /events: an SSE stream of every action fired in
// this window. The tap subscribes to the channels registered at open
// time and releases them when the client goes away.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	events := make(chan firedEvent, tapBuffer)

	var subs []*action.Subscription
	for _, ch := range s.registry.All() {
		ch := ch
		sub := ch.Subscribe(func(payload any) {
			// Payloads that cannot cross JSON still show up in the tap
			if payload != nil {
				if _, err := json.Marshal(payload); err != nil {
					payload = fmt.Sprintf("%v", payload)
				}
			}
			evt := firedEvent{
				Action:  ch.Name(),
				Scope:   ch.Scope().String(),
				Payload: payload,
				FiredAt: time.Now(),
			}
			select {
			case events <- evt:
			default:
				s.log.Warn().Str("action", ch.Name()).Msg("tap consumer stalled, dropping event")
			}
		})
		subs = append(subs, sub)
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-events:
			if err := sse.writeEvent("message", evt); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
