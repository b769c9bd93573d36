package action

// Scope declares how far a fire of an action propagates.
type Scope string

const (
	// ScopeWindow actions fire only in the window where Fire is called.
	ScopeWindow Scope = "window"
	// ScopeMainWindow actions execute only in the main window. Fires
	// from any other window are forwarded there without running locally.
	ScopeMainWindow Scope = "main"
	// ScopeGlobal actions fire in the calling window and are broadcast
	// to every other window.
	ScopeGlobal Scope = "global"
)

// Valid reports whether s is one of the declared propagation scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeWindow, ScopeMainWindow, ScopeGlobal:
		return true
	}
	return false
}

func (s Scope) String() string {
	return string(s)
}

// Scopes returns all valid scopes in propagation-breadth order.
func Scopes() []Scope {
	return []Scope{ScopeWindow, ScopeMainWindow, ScopeGlobal}
}
