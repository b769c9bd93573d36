package action

import (
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Envelope is the wire form of a fire crossing a window boundary. The
// payload travels as raw JSON, so whatever a peer window observes is the
// JSON round-trip of the original value, never the value itself.
type Envelope struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	OriginWindowID string          `json:"originWindowId"`
}

// NewEnvelope packages a local fire for forwarding. Encoding the payload
// is the only step that can fail; a payload that does not survive JSON
// (channels, funcs, cycles) cannot cross a window boundary.
func NewEnvelope(name string, payload any, originWindowID string) (Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encoding payload for action %q: %w", name, err)
		}
		raw = encoded
	}

	return Envelope{
		ID:             ulid.Make().String(),
		Name:           name,
		Payload:        raw,
		OriginWindowID: originWindowID,
	}, nil
}

// DecodePayload reconstructs the payload value carried by the envelope.
// A nil or empty payload decodes to nil, matching a Fire with no
// payload.
func (e Envelope) DecodePayload() (any, error) {
	if len(e.Payload) == 0 {
		return nil, nil
	}
	var payload any
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decoding payload for action %q: %w", e.Name, err)
	}
	return payload, nil
}

// Encode serializes the envelope for the transport.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses an envelope received from the transport.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Name == "" {
		return Envelope{}, fmt.Errorf("envelope missing action name")
	}
	return env, nil
}
