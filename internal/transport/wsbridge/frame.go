// Package wsbridge carries envelopes between OS window processes over
// WebSockets. The main process hosts a relay Hub; every window, the main
// one included, attaches a Client that implements action.Transport.
package wsbridge

import "github.com/Jason-Cooke/nylas-mail/internal/action"

// frame is what a window writes to the hub: an envelope plus the relay
// verb. Traffic from the hub to a window is a bare envelope.
type frame struct {
	Kind     string          `json:"kind"`
	Envelope action.Envelope `json:"envelope"`
}

const (
	kindMain      = "main"
	kindBroadcast = "broadcast"
)
