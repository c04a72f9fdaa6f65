package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATSEmitter publishes build events to NATS subjects under a common
// prefix: <prefix>.started and <prefix>.completed.
type NATSEmitter struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSEmitter connects to NATS and returns an emitter. prefix defaults
// to "peasant.builds" when empty.
func NewNATSEmitter(url, prefix string) (*NATSEmitter, error) {
	if prefix == "" {
		prefix = "peasant.builds"
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	slog.Info("NATS emitter initialized", "url", url, "prefix", prefix)
	return &NATSEmitter{conn: conn, prefix: prefix}, nil
}

// EmitBuildStarted publishes a started event.
func (e *NATSEmitter) EmitBuildStarted(ctx context.Context, ev BuildStarted) error {
	ev.EventID = uuid.NewString()
	return e.publish(e.prefix+".started", ev)
}

// EmitBuildCompleted publishes a completed event.
func (e *NATSEmitter) EmitBuildCompleted(ctx context.Context, ev BuildCompleted) error {
	ev.EventID = uuid.NewString()
	return e.publish(e.prefix+".completed", ev)
}

func (e *NATSEmitter) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := e.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (e *NATSEmitter) Close() {
	if err := e.conn.Drain(); err != nil {
		slog.Warn("Failed to drain NATS connection", "err", err)
	}
}
