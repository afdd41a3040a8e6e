// Package websocket streams extractions to an archive server over WebSocket.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vehicle-extractor/extension/internal/storage"
	"github.com/vehicle-extractor/extension/pkg/core"
	"github.com/vehicle-extractor/extension/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL     string
	Secret  string
	Version string
	Logger  *slog.Logger
}

// Backend streams extractions to the archive server. Every extraction is
// acknowledged by the server before RecordExtraction returns.
type Backend struct {
	conn      *connection
	cfg       Config
	sessionID string
}

var _ storage.Backend = (*Backend)(nil)

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	return &Backend{
		conn:      newConnection(cfg.Logger),
		cfg:       cfg,
		sessionID: uuid.NewString(),
	}
}

// SessionID identifies this extension session to the server.
func (b *Backend) SessionID() string {
	return b.sessionID
}

// Init connects and opens the session with a hello message.
func (b *Backend) Init() error {
	hello, err := marshalEnvelope(streaming.TypeHello, "", streaming.HelloPayload{
		SessionID: b.sessionID,
		Version:   b.cfg.Version,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	b.conn.setHello(hello)

	if err := b.conn.dial(b.cfg.URL, b.cfg.Secret); err != nil {
		return err
	}
	return b.conn.sendAndWait(hello, streaming.TypeHello, "", ackTimeout)
}

// Close says goodbye and disconnects.
func (b *Backend) Close() error {
	if b.conn.current() != nil {
		if data, err := marshalEnvelope(streaming.TypeGoodbye, "", nil); err == nil {
			_ = b.conn.sendAndWait(data, streaming.TypeGoodbye, "", time.Second)
		}
	}
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType, id string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, ID: id, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// RecordExtraction sends e and waits for the server to acknowledge it.
func (b *Backend) RecordExtraction(e *core.Extraction) error {
	if e == nil {
		return nil
	}
	id := e.ID.String()
	data, err := marshalEnvelope(streaming.TypeExtraction, id, streaming.ExtractionPayload{Extraction: e})
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, streaming.TypeExtraction, id, ackTimeout)
}
