package action

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Jason-Cooke/nylas-mail/internal/logging"
)

// Listener is a function that receives action payloads.
type Listener func(payload any)

// listenerEntry wraps a listener with an ID so it can be removed later.
type listenerEntry struct {
	id uint64
	fn Listener
}

// Channel is the per-action list of listeners. Fires are synchronous:
// every listener runs on the firing goroutine, in subscription order. A
// panicking listener is recovered and logged without affecting the
// listeners after it.
type Channel struct {
	name  string
	scope Scope
	log   zerolog.Logger

	mu     sync.Mutex
	subs   []listenerEntry
	nextID uint64
}

func newChannel(name string, scope Scope) *Channel {
	return &Channel{
		name:  name,
		scope: scope,
		log:   logging.Component("action").With().Str("action", name).Logger(),
	}
}

// Name returns the registered action name.
func (c *Channel) Name() string {
	return c.name
}

// Scope returns the propagation scope the action was registered with.
func (c *Channel) Scope() Scope {
	return c.scope
}

// Subscribe appends fn to the listener list and returns a handle that
// removes it. The same function value may be subscribed more than once;
// each call gets its own handle and its own slot in the fire order.
func (c *Channel) Subscribe(fn Listener) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := atomic.AddUint64(&c.nextID, 1)
	c.subs = append(c.subs, listenerEntry{id: id, fn: fn})

	return &Subscription{channel: c, id: id}
}

// unsubscribe removes the listener registered under id. Unknown IDs are
// ignored so a handle can be released at most once.
func (c *Channel) unsubscribe(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, entry := range c.subs {
		if entry.id == id {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
}

// fire calls every listener with payload, synchronously and in
// subscription order. The listener list is snapshotted under the lock
// first, so a listener that subscribes or unsubscribes during the fire
// changes future fires only.
func (c *Channel) fire(payload any) {
	c.mu.Lock()
	snapshot := make([]listenerEntry, len(c.subs))
	copy(snapshot, c.subs)
	c.mu.Unlock()

	for _, entry := range snapshot {
		c.invoke(entry, payload)
	}
}

// invoke runs one listener with panic isolation.
func (c *Channel) invoke(entry listenerEntry, payload any) {
	defer func() {
		if r := recover(); r != nil {
			subErr := &SubscriberError{Action: c.name, SubscriberID: entry.id, Recovered: r}
			c.log.Error().Str("error", subErr.Error()).Uint64("subscriber", entry.id).Msg("listener panicked")
		}
	}()
	entry.fn(payload)
}

// ListenerCount returns the number of active subscriptions.
func (c *Channel) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}
