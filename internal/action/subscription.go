package action

import "sync/atomic"

// Subscription is the handle returned by Subscribe. Releasing it removes
// the listener from its channel; releasing it again is a no-op.
type Subscription struct {
	channel  *Channel
	id       uint64
	released atomic.Bool
}

// Unsubscribe removes the listener. Safe to call any number of times and
// safe to call from inside a listener during a fire; the current fire
// still completes against the listener set it started with.
func (s *Subscription) Unsubscribe() {
	if s == nil || !s.released.CompareAndSwap(false, true) {
		return
	}
	s.channel.unsubscribe(s.id)
}

// Active reports whether the subscription still holds a listener slot.
func (s *Subscription) Active() bool {
	return s != nil && !s.released.Load()
}

// Action returns the name of the action this subscription listens to.
func (s *Subscription) Action() string {
	return s.channel.name
}
