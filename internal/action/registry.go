package action

import (
	"fmt"
	"sync"

	"github.com/agnivade/levenshtein"
)

// Registry holds the full set of actions a window knows about. All
// registrations happen during startup, before any Fire; afterwards the
// registry is read-only and every lookup is a cheap RLock.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Channel
	order  []string
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Channel),
	}
}

// Register declares an action under name with the given scope and
// returns its channel. Registering the same name twice fails with
// DuplicateActionError regardless of scope, so every window that loads
// the same declarations ends up with an identical scope table.
func (r *Registry) Register(name string, scope Scope) (*Channel, error) {
	if name == "" {
		return nil, fmt.Errorf("action name must not be empty")
	}
	if !scope.Valid() {
		return nil, &InvalidScopeError{Name: name, Scope: scope}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		return nil, &DuplicateActionError{Name: name, Scope: existing.scope}
	}

	ch := newChannel(name, scope)
	r.byName[name] = ch
	r.order = append(r.order, name)
	return ch, nil
}

// MustRegister is Register for startup-time declarations, where a
// collision means the declaration files themselves are wrong.
func (r *Registry) MustRegister(name string, scope Scope) *Channel {
	ch, err := r.Register(name, scope)
	if err != nil {
		panic(err)
	}
	return ch
}

// Resolve looks up a channel by name. Unknown names fail with
// UnknownActionError carrying the closest registered name when one is
// similar enough to be a plausible typo.
func (r *Registry) Resolve(name string) (*Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.byName[name]
	if !ok {
		return nil, &UnknownActionError{Name: name, Closest: r.closest(name)}
	}
	return ch, nil
}

// Subscribe attaches fn to the named action. It is a convenience for
// call sites that hold a name rather than a channel handle.
func (r *Registry) Subscribe(name string, fn Listener) (*Subscription, error) {
	ch, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return ch.Subscribe(fn), nil
}

// Has checks if an action is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Names returns all action names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// ListByScope returns the channels registered under scope, in
// registration order.
func (r *Registry) ListByScope(scope Scope) []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var channels []*Channel
	for _, name := range r.order {
		if ch := r.byName[name]; ch.scope == scope {
			channels = append(channels, ch)
		}
	}
	return channels
}

// All returns every registered channel in registration order.
func (r *Registry) All() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]*Channel, 0, len(r.order))
	for _, name := range r.order {
		channels = append(channels, r.byName[name])
	}
	return channels
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// closest returns the registered name most similar to name, or "" when
// nothing clears the similarity bar. Callers must hold at least a read
// lock.
func (r *Registry) closest(name string) string {
	best := ""
	bestScore := 0.0
	for _, candidate := range r.order {
		if score := similarity(name, candidate); score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	// Below this the suggestion is more likely noise than a typo.
	if bestScore < 0.5 {
		return ""
	}
	return best
}

// similarity calculates normalized Levenshtein similarity between two
// names, 1.0 meaning identical.
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(max(len(a), len(b)))
}
