// Package websocket streams session data as JSON envelopes to a remote
// recorder over a WebSocket connection.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OCAP2/rigsync/pkg/core"
	"github.com/OCAP2/rigsync/pkg/streaming"
)

// DefaultAckTimeout bounds the wait for start_session and end_session acks.
const DefaultAckTimeout = 10 * time.Second

// Config holds WebSocket backend configuration.
type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration // ack timeout, DefaultAckTimeout when zero
}

// Backend streams session data over WebSocket.
// It implements storage.Backend but not storage.Exportable.
type Backend struct {
	conn *connection
	cfg  Config

	nextSessionID atomic.Uint64
	sessionID     atomic.Uint64
	lastFrame     atomic.Uint64
}

// New creates a new WebSocket storage backend. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAckTimeout
	}
	return &Backend{
		conn: newConnection(logger.With("component", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// observe keeps the highest frame seen for end_session.
func (b *Backend) observe(frame uint) {
	for {
		cur := b.lastFrame.Load()
		if uint64(frame) <= cur || b.lastFrame.CompareAndSwap(cur, uint64(frame)) {
			return
		}
	}
}

// StartSession assigns a session ID, sends the session and waits for the
// server ack. The message is replayed after every reconnect until EndSession.
func (b *Backend) StartSession(s *core.Session) error {
	s.ID = uint(b.nextSessionID.Add(1))
	b.sessionID.Store(uint64(s.ID))
	b.lastFrame.Store(0)

	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}
	b.conn.setCachedStart(data)

	return b.conn.sendAndWait(data, streaming.TypeStartSession, b.cfg.Timeout)
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession() error {
	payload := streaming.EndSessionPayload{
		SessionID: uint(b.sessionID.Load()),
		EndFrame:  uint(b.lastFrame.Load()),
	}
	data, err := marshalEnvelope(streaming.TypeEndSession, payload)
	if err == nil {
		err = b.conn.sendAndWait(data, streaming.TypeEndSession, b.cfg.Timeout)
	}

	// Clear cached state regardless of error.
	b.conn.setCachedStart(nil)
	b.sessionID.Store(0)
	return err
}

func (b *Backend) RecordCalibration(c *core.CalibrationRecord) error {
	b.observe(c.Frame)
	return b.sendEnvelope(streaming.TypeCalibration, c)
}

func (b *Backend) RecordPoseFrame(f *core.PoseFrame) error {
	b.observe(f.Frame)
	return b.sendEnvelope(streaming.TypePoseFrame, f)
}

func (b *Backend) RecordTargetEvent(e *core.TargetEvent) error {
	b.observe(e.Frame)
	return b.sendEnvelope(streaming.TypeTargetEvent, e)
}
