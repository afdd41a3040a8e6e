// Package streaming defines the messages exchanged with an extraction
// archive server over WebSocket.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/vehicle-extractor/extension/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeHello      = "hello"
	TypeExtraction = "extraction"
	TypeGoodbye    = "goodbye"
	TypeAck        = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type  string `json:"type"`            // always "ack"
	For   string `json:"for"`             // the message type being acknowledged
	ID    string `json:"id,omitempty"`    // the envelope ID, when the message had one
	Error string `json:"error,omitempty"` // set when the server rejected the message
}

// HelloPayload opens a session. It is replayed after every reconnect.
type HelloPayload struct {
	SessionID string    `json:"sessionId"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"startedAt"`
}

// ExtractionPayload carries one archived extraction.
type ExtractionPayload struct {
	Extraction *core.Extraction `json:"extraction"`
}
