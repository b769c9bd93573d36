package commands

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/Jason-Cooke/nylas-mail/internal/action"
)

// catalogEntry describes one action in the built-in demo catalog.
type catalogEntry struct {
	Name  string
	Scope action.Scope
}

// demoCatalog is the action set registered by the window and demo
// commands. A real application would register its own catalog; these
// names exist so every scope has something to fire.
var demoCatalog = []catalogEntry{
	{Name: "logNote", Scope: action.ScopeWindow},
	{Name: "queueJob", Scope: action.ScopeMainWindow},
	{Name: "pingPeer", Scope: action.ScopeGlobal},
}

// registerCatalog registers the demo catalog into reg and attaches a
// logging subscriber to each action so every delivery is visible. When
// observe is non-nil it also runs on each delivery.
func registerCatalog(reg *action.Registry, log zerolog.Logger, observe func(name string, payload any)) error {
	for _, entry := range demoCatalog {
		ch, err := reg.Register(entry.Name, entry.Scope)
		if err != nil {
			return err
		}
		name := entry.Name
		ch.Subscribe(func(payload any) {
			log.Info().Str("action", name).Interface("payload", payload).Msg("action delivered")
			if observe != nil {
				observe(name, payload)
			}
		})
	}
	return nil
}

// hubURL turns a config hub address into a dialable URL. Bare host:port
// values get the ws scheme; full URLs pass through.
func hubURL(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "ws://" + addr
}
