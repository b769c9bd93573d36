// Package inproc carries envelopes between simulated windows inside one
// process. A Hub multiplexes any number of windows over a watermill
// gochannel pub/sub, one topic per window, giving single-process runs and
// tests the same marshal/unmarshal boundary the real IPC has.
package inproc

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/Jason-Cooke/nylas-mail/internal/action"
	"github.com/Jason-Cooke/nylas-mail/internal/logging"
)

// Hub connects simulated windows. Envelopes cross it as JSON bytes in
// watermill messages; each window's topic is consumed by one delivery
// goroutine, the simulated event loop.
type Hub struct {
	mu      sync.Mutex
	pubsub  *gochannel.GoChannel
	windows map[string]*Endpoint
	mainID  string
	closed  bool
	log     zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		windows: make(map[string]*Endpoint),
		log:     logging.Component("inproc"),
	}
}

func topicFor(windowID string) string {
	return "window." + windowID
}

// Join attaches a window to the hub and starts its delivery goroutine.
// Window IDs are unique and at most one window may join as main.
func (h *Hub) Join(ctx context.Context, windowID string, main bool) (*Endpoint, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("hub is closed")
	}
	if windowID == "" {
		return nil, fmt.Errorf("window ID must not be empty")
	}
	if _, ok := h.windows[windowID]; ok {
		return nil, fmt.Errorf("window %q already joined", windowID)
	}
	if main && h.mainID != "" {
		return nil, fmt.Errorf("main window already joined as %q", h.mainID)
	}

	ctx, cancel := context.WithCancel(ctx)
	msgs, err := h.pubsub.Subscribe(ctx, topicFor(windowID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribing topic for window %q: %w", windowID, err)
	}

	ep := &Endpoint{
		hub:      h,
		windowID: windowID,
		main:     main,
		cancel:   cancel,
		doneCh:   make(chan struct{}),
		log:      h.log.With().Str("window", windowID).Logger(),
	}
	h.windows[windowID] = ep
	if main {
		h.mainID = windowID
	}
	h.log.Debug().Str("window", windowID).Bool("main", main).Msg("window joined")

	go ep.deliver(msgs)
	return ep, nil
}

// Windows returns the IDs of the attached windows and which one is main.
func (h *Hub) Windows() (ids []string, mainID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids = make([]string, 0, len(h.windows))
	for id := range h.windows {
		ids = append(ids, id)
	}
	return ids, h.mainID
}

// sendToMain publishes the envelope to the main window's topic.
func (h *Hub) sendToMain(env action.Envelope) error {
	h.mu.Lock()
	mainID := h.mainID
	closed := h.closed
	h.mu.Unlock()

	if closed {
		return fmt.Errorf("hub is closed")
	}
	if mainID == "" {
		return fmt.Errorf("no main window attached")
	}
	return h.publish(topicFor(mainID), env)
}

// broadcast publishes the envelope to every window except the origin.
func (h *Hub) broadcast(env action.Envelope, originID string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("hub is closed")
	}
	topics := make([]string, 0, len(h.windows))
	for id := range h.windows {
		if id != originID {
			topics = append(topics, topicFor(id))
		}
	}
	h.mu.Unlock()

	for _, topic := range topics {
		if err := h.publish(topic, env); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hub) publish(topic string, env action.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	// The envelope ID doubles as the message UUID for log correlation
	return h.pubsub.Publish(topic, message.NewMessage(env.ID, data))
}

// leave detaches a window. Called by Endpoint.Close.
func (h *Hub) leave(windowID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.windows, windowID)
	if h.mainID == windowID {
		h.mainID = ""
	}
	h.log.Debug().Str("window", windowID).Msg("window left")
}

// Close detaches every window and shuts the pub/sub down. Endpoints
// obtained from this hub stop delivering.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	endpoints := make([]*Endpoint, 0, len(h.windows))
	for _, ep := range h.windows {
		endpoints = append(endpoints, ep)
	}
	h.windows = make(map[string]*Endpoint)
	h.mainID = ""
	h.mu.Unlock()

	for _, ep := range endpoints {
		ep.stop()
	}
	return h.pubsub.Close()
}
