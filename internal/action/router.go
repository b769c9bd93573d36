package action

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Jason-Cooke/nylas-mail/internal/logging"
)

// Transport carries envelopes between windows. Implementations deliver
// asynchronously and invoke the received-envelope handler from their own
// delivery goroutine, one envelope at a time.
type Transport interface {
	// SendToMain delivers the envelope to the main window only.
	SendToMain(env Envelope) error
	// BroadcastToOthers delivers the envelope to every window except
	// the sender.
	BroadcastToOthers(env Envelope) error
	// OnEnvelopeReceived installs the handler for inbound envelopes.
	// Passing nil detaches the current handler.
	OnEnvelopeReceived(handler func(env Envelope))
}

// Router binds a registry to one window's identity and transport. Fire
// runs the scope table exactly once, in the window where it was called;
// envelopes arriving from peers replay as plain local fires, so
// propagation can never loop.
type Router struct {
	registry  *Registry
	windowID  string
	main      bool
	transport Transport
	closed    atomic.Bool
	log       zerolog.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithTransport connects the router to a cross-window transport.
// Without one the router serves a standalone window: local fires work,
// forwarding is skipped.
func WithTransport(t Transport) RouterOption {
	return func(r *Router) {
		r.transport = t
	}
}

// NewRouter creates a router for the window identified by windowID.
// Exactly one window per application passes main=true; that window is
// where ScopeMainWindow actions execute.
func NewRouter(registry *Registry, windowID string, main bool, opts ...RouterOption) *Router {
	r := &Router{
		registry: registry,
		windowID: windowID,
		main:     main,
		log: logging.Component("router").With().
			Str("window", windowID).
			Bool("main", main).
			Logger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.transport != nil {
		r.transport.OnEnvelopeReceived(r.HandleEnvelope)
	}

	return r
}

// Fire dispatches the named action with payload according to its scope.
// Local listeners run synchronously on the calling goroutine before Fire
// returns; cross-window delivery is fire-and-forget. The only error Fire
// reports is an unregistered name. Transport trouble downstream of a
// valid fire is logged, never returned, and never rolls back local
// effects.
func (r *Router) Fire(name string, payload any) error {
	ch, err := r.registry.Resolve(name)
	if err != nil {
		return err
	}

	switch ch.scope {
	case ScopeWindow:
		ch.fire(payload)

	case ScopeMainWindow:
		if r.main {
			ch.fire(payload)
		} else {
			r.forward(ch, payload, "send_to_main")
		}

	case ScopeGlobal:
		ch.fire(payload)
		r.forward(ch, payload, "broadcast")
	}

	return nil
}

// forward packages payload into an envelope and hands it to the
// transport. Every failure on this path is logged and swallowed.
func (r *Router) forward(ch *Channel, payload any, op string) {
	if r.transport == nil {
		r.log.Debug().Str("action", ch.name).Msg("no transport, skipping forward")
		return
	}

	env, err := NewEnvelope(ch.name, payload, r.windowID)
	if err != nil {
		r.log.Error().Err(err).Str("action", ch.name).Msg("dropping unforwardable payload")
		return
	}

	var sendErr error
	switch op {
	case "send_to_main":
		sendErr = r.transport.SendToMain(env)
	case "broadcast":
		sendErr = r.transport.BroadcastToOthers(env)
	}
	if sendErr != nil {
		tErr := &TransportError{Op: op, Action: ch.name, Err: sendErr}
		r.log.Warn().Err(tErr).Str("envelope", env.ID).Msg("envelope lost in transit")
	}
}

// HandleEnvelope replays an envelope received from a peer window as a
// local fire. The scope table is deliberately not consulted here;
// consulting it would re-forward and loop. Envelopes that originated in
// this window are dropped, which keeps a transport that echoes
// broadcasts back to the sender from double-firing.
func (r *Router) HandleEnvelope(env Envelope) {
	if r.closed.Load() {
		return
	}
	if env.OriginWindowID == r.windowID {
		r.log.Debug().Str("envelope", env.ID).Msg("ignoring own envelope")
		return
	}

	ch, err := r.registry.Resolve(env.Name)
	if err != nil {
		r.log.Warn().Err(err).
			Str("envelope", env.ID).
			Str("origin", env.OriginWindowID).
			Msg("envelope for action this window never registered")
		return
	}

	payload, err := env.DecodePayload()
	if err != nil {
		r.log.Warn().Err(err).Str("envelope", env.ID).Msg("dropping undecodable envelope")
		return
	}

	ch.fire(payload)
}

// Close detaches the router from its transport. Inbound envelopes are
// dropped from now on; local fires keep working.
func (r *Router) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	if r.transport != nil {
		r.transport.OnEnvelopeReceived(nil)
	}
}

// WindowID returns the window identity the router was built with.
func (r *Router) WindowID() string {
	return r.windowID
}

// Main reports whether this router serves the main window.
func (r *Router) Main() bool {
	return r.main
}

// Registry returns the registry the router dispatches against.
func (r *Router) Registry() *Registry {
	return r.registry
}
