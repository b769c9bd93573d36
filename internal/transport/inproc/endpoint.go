package inproc

import (
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/Jason-Cooke/nylas-mail/internal/action"
)

// Endpoint is one window's connection to the hub. It implements
// action.Transport, so a Router wires straight onto it.
type Endpoint struct {
	hub      *Hub
	windowID string
	main     bool

	mu      sync.Mutex
	handler func(env action.Envelope)

	cancel func()
	doneCh chan struct{}
	closed atomic.Bool
	log    zerolog.Logger
}

// WindowID returns the window identity this endpoint joined with.
func (e *Endpoint) WindowID() string {
	return e.windowID
}

// Main reports whether this endpoint joined as the main window.
func (e *Endpoint) Main() bool {
	return e.main
}

// SendToMain delivers the envelope to the main window's topic. Errors
// when no main window is attached.
func (e *Endpoint) SendToMain(env action.Envelope) error {
	return e.hub.sendToMain(env)
}

// BroadcastToOthers delivers the envelope to every window but this one.
func (e *Endpoint) BroadcastToOthers(env action.Envelope) error {
	return e.hub.broadcast(env, e.windowID)
}

// OnEnvelopeReceived installs the inbound handler. nil detaches it.
func (e *Endpoint) OnEnvelopeReceived(handler func(env action.Envelope)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

// deliver is the window's event loop: it consumes the topic one message
// at a time and replays each envelope into the handler.
func (e *Endpoint) deliver(msgs <-chan *message.Message) {
	defer close(e.doneCh)

	for msg := range msgs {
		env, err := action.DecodeEnvelope(msg.Payload)
		if err != nil {
			e.log.Warn().Err(err).Str("message", msg.UUID).Msg("dropping malformed message")
			msg.Ack()
			continue
		}

		e.mu.Lock()
		handler := e.handler
		e.mu.Unlock()

		if handler != nil {
			handler(env)
		}
		msg.Ack()
	}
}

// Close leaves the hub and stops the delivery goroutine. It blocks until
// the loop has drained, so no handler call survives Close.
func (e *Endpoint) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.hub.leave(e.windowID)
	e.stop()

	e.mu.Lock()
	e.handler = nil
	e.mu.Unlock()
}

// stop cancels the topic subscription and waits for the loop to exit.
func (e *Endpoint) stop() {
	e.cancel()
	<-e.doneCh
}
