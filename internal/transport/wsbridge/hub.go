package wsbridge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Jason-Cooke/nylas-mail/internal/action"
	"github.com/Jason-Cooke/nylas-mail/internal/logging"
)

// sendQueueSize bounds the per-window relay queue. A window that cannot
// drain this many envelopes is stalled; further envelopes are dropped
// with a warning rather than blocking the rest of the windows.
const sendQueueSize = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Windows connect from the local process, not browsers
		return true
	},
}

// Hub is the relay the main process hosts. Windows connect with
// GET /ipc?window=<id>&main=<bool>; frames they write are relayed to the
// main window or to every other window, per the frame kind.
type Hub struct {
	mu     sync.Mutex
	conns  map[string]*conn
	mainID string
	closed bool
	log    zerolog.Logger
}

// conn is one connected window.
type conn struct {
	windowID string
	main     bool
	ws       *websocket.Conn
	sendCh   chan action.Envelope
	done     chan struct{}
	dropped  atomic.Bool
	log      zerolog.Logger
}

// NewHub creates a relay with no windows attached.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*conn),
		log:   logging.Component("wsbridge"),
	}
}

// Handler returns the hub's HTTP surface: the /ipc upgrade endpoint and
// the /windows diagnostics listing.
func (h *Hub) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/ipc", h.handleIPC)
	r.Get("/windows", h.handleWindows)
	return r
}

func (h *Hub) handleIPC(w http.ResponseWriter, r *http.Request) {
	windowID := r.URL.Query().Get("window")
	if windowID == "" {
		writeError(w, http.StatusBadRequest, "window query parameter required")
		return
	}
	main := false
	if raw := r.URL.Query().Get("main"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid main flag %q", raw))
			return
		}
		main = parsed
	}

	c := &conn{
		windowID: windowID,
		main:     main,
		sendCh:   make(chan action.Envelope, sendQueueSize),
		done:     make(chan struct{}),
		log:      h.log.With().Str("window", windowID).Logger(),
	}

	// Reserve the slot before upgrading so two racing joins cannot both
	// claim the same window ID
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		writeError(w, http.StatusServiceUnavailable, "hub is shutting down")
		return
	}
	if _, ok := h.conns[windowID]; ok {
		h.mu.Unlock()
		writeError(w, http.StatusConflict, fmt.Sprintf("window %q already connected", windowID))
		return
	}
	if main && h.mainID != "" {
		h.mu.Unlock()
		writeError(w, http.StatusConflict, fmt.Sprintf("main window already connected as %q", h.mainID))
		return
	}
	h.conns[windowID] = c
	if main {
		h.mainID = windowID
	}
	h.mu.Unlock()

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its error response
		h.drop(c)
		return
	}
	c.ws = ws
	c.log.Info().Bool("main", main).Msg("window connected")

	go c.writeLoop(h)
	c.readLoop(h)
}

func (h *Hub) handleWindows(w http.ResponseWriter, r *http.Request) {
	type windowInfo struct {
		ID   string `json:"id"`
		Main bool   `json:"main"`
	}

	h.mu.Lock()
	infos := make([]windowInfo, 0, len(h.conns))
	for id, c := range h.conns {
		infos = append(infos, windowInfo{ID: id, Main: c.main})
	}
	h.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"windows": infos})
}

// readLoop consumes frames from one window and fans them out. It runs on
// the upgrade handler's goroutine and returns when the socket dies.
func (c *conn) readLoop(h *Hub) {
	defer h.drop(c)

	for {
		var f frame
		if err := c.ws.ReadJSON(&f); err != nil {
			return
		}

		switch f.Kind {
		case kindMain:
			h.relayToMain(f.Envelope)
		case kindBroadcast:
			h.relayBroadcast(f.Envelope, c)
		default:
			c.log.Warn().Str("kind", f.Kind).Str("action", f.Envelope.Name).
				Msg("dropping frame with unknown kind")
		}
	}
}

// writeLoop drains the send queue onto the socket. A write failure means
// the window is gone; it gets dropped so the relay stops queueing for it.
func (c *conn) writeLoop(h *Hub) {
	for {
		select {
		case env := <-c.sendCh:
			if err := c.ws.WriteJSON(env); err != nil {
				c.log.Warn().Err(err).Msg("write failed, dropping window")
				h.drop(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// enqueue hands an envelope to the window's writer without ever blocking
// the relay. Full queue means the window is stalled; the envelope is
// dropped and logged, matching the fire-and-forget contract.
func (c *conn) enqueue(env action.Envelope) {
	select {
	case c.sendCh <- env:
	default:
		c.log.Warn().Str("action", env.Name).Str("envelope", env.ID).
			Msg("send queue full, dropping envelope")
	}
}

func (h *Hub) relayToMain(env action.Envelope) {
	h.mu.Lock()
	target := h.conns[h.mainID]
	h.mu.Unlock()

	if target == nil {
		h.log.Warn().Str("action", env.Name).Str("origin", env.OriginWindowID).
			Msg("no main window connected, dropping envelope")
		return
	}
	target.enqueue(env)
}

func (h *Hub) relayBroadcast(env action.Envelope, from *conn) {
	h.mu.Lock()
	targets := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		if c != from {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.enqueue(env)
	}
}

// drop disconnects one window and frees its ID. Safe to call from the
// read loop, the write loop, and Close; only the first call acts.
func (h *Hub) drop(c *conn) {
	if !c.dropped.CompareAndSwap(false, true) {
		return
	}

	h.mu.Lock()
	if h.conns[c.windowID] == c {
		delete(h.conns, c.windowID)
		if h.mainID == c.windowID {
			h.mainID = ""
		}
	}
	h.mu.Unlock()

	close(c.done)
	if c.ws != nil {
		c.ws.Close()
	}
	c.log.Info().Msg("window disconnected")
}

// Windows returns the connected window IDs and which one is main.
func (h *Hub) Windows() (ids []string, mainID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids = make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, h.mainID
}

// Close disconnects every window and refuses new joins.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*conn)
	h.mainID = ""
	h.mu.Unlock()

	for _, c := range conns {
		h.drop(c)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
