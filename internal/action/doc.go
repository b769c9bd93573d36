/*
Package action implements a registry of named, scoped event channels and
the router that propagates fires across windows.

Actions decouple UI components from business-logic stores in a
multi-window desktop application. Each action is declared once with a
name and a propagation scope, producing a Channel that components
subscribe to and fire through a Router.

# Scopes

	ScopeWindow      the action stays inside the window that fires it
	ScopeMainWindow  the action executes only in the main window; a fire
	                 from any other window is forwarded there and does not
	                 run locally
	ScopeGlobal      the action runs in the firing window and is
	                 broadcast to every other window

# Basic usage

Declare actions at startup and keep the handles:

	reg := action.NewRegistry()
	pingPeer := reg.MustRegister("pingPeer", action.ScopeGlobal)
	queueJob := reg.MustRegister("queueJob", action.ScopeMainWindow)

Bind the registry to this window's identity and transport:

	router := action.NewRouter(reg, "window-b", false,
		action.WithTransport(client))
	defer router.Close()

Listen and fire:

	sub := pingPeer.Subscribe(func(payload any) {
		// runs synchronously, in registration order
	})
	defer sub.Unsubscribe()

	router.Fire("pingPeer", map[string]any{"count": 1})

# Delivery semantics

Fire notifies local listeners synchronously on the calling goroutine and
never blocks on I/O; cross-window delivery is asynchronous and
fire-and-forget. A listener that panics is recovered and logged without
affecting the remaining listeners or the firer. Listeners in the firing
window observe the exact payload value passed to Fire; listeners in peer
windows observe its JSON-decoded form, the same structural-clone boundary
the envelope crosses on the wire.

A received envelope is replayed with a direct channel fire that bypasses
the scope table, so forwarding can never loop: transport sends happen
only at the window where Fire was called.

# Errors

Registration collisions (DuplicateActionError) and fires against
unregistered names (UnknownActionError) are programmer errors and are
returned to the caller. Everything downstream of a successful local fire
(listener panics, envelope encoding failures, transport failures,
unknown names on the receive path) is logged and swallowed; local
effects are never rolled back.

Multiple independent registries may coexist; tests build one registry
and router per simulated window.
*/
package action
