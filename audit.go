package hooks

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditEvent defines a public type used by hooks APIs.
//
// AuditEvent records one observable decision made by an action: a denial, a
// redirect, an external call, a linking outcome. Events carry identifiers
// only, never tokens or assertion bodies.
type AuditEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	Trigger       string            `json:"trigger"`
	Action        string            `json:"action"`
	EventType     string            `json:"event_type"`
	UserID        string            `json:"user_id,omitempty"`
	ClientID      string            `json:"client_id,omitempty"`
	TransactionID string            `json:"transaction_id,omitempty"`
	IP            string            `json:"ip,omitempty"`
	Success       bool              `json:"success"`
	Error         string            `json:"error,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// AuditSink defines a public type used by hooks APIs.
//
// AuditSink receives decision events emitted by the runtime. Implementations
// must be safe for concurrent use.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink defines a public type used by hooks APIs.
//
// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink defines a public type used by hooks APIs.
//
// ChannelSink forwards events into a buffered channel for consumption by the
// embedding program.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink defines a public type used by hooks APIs.
//
// JSONWriterSink writes one JSON object per line to the wrapped writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
