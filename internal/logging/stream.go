package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LogEvent represents a structured log line published to the streaming hub.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// StreamHub stores recent log events in a bounded ring guarded by a mutex.
type StreamHub struct {
	mu       sync.Mutex
	capacity int
	buffer   []LogEvent
	nextSeq  uint64
}

// NewStreamHub constructs a bounded in-memory log buffer.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 512
	}
	return &StreamHub{capacity: capacity}
}

// Publish appends a new log event to the hub, evicting the oldest entry once
// the ring is full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
}

// Recent returns up to limit of the most recent events, oldest first.
func (h *StreamHub) Recent(limit int) []LogEvent {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > len(h.buffer) {
		limit = len(h.buffer)
	}
	out := make([]LogEvent, limit)
	copy(out, h.buffer[len(h.buffer)-limit:])
	return out
}

// Since returns events with sequence greater than seq, oldest first.
func (h *StreamHub) Since(seq uint64) []LogEvent {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	idx := len(h.buffer)
	for i, evt := range h.buffer {
		if evt.Sequence > seq {
			idx = i
			break
		}
	}
	out := make([]LogEvent, len(h.buffer)-idx)
	copy(out, h.buffer[idx:])
	return out
}

// streamHandler mirrors records into a StreamHub alongside the base handler.
type streamHandler struct {
	base  slog.Handler
	hub   *StreamHub
	attrs []slog.Attr
}

func newStreamHandler(base slog.Handler, hub *StreamHub) slog.Handler {
	return &streamHandler{base: base, hub: hub}
}

func (s *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.base.Enabled(ctx, level)
}

func (s *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	fields := make(map[string]string, record.NumAttrs()+len(s.attrs))
	for _, attr := range s.attrs {
		fields[attr.Key] = attr.Value.String()
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields[attr.Key] = attr.Value.String()
		return true
	})
	s.hub.Publish(LogEvent{
		Timestamp: record.Time.UTC(),
		Level:     record.Level.String(),
		Message:   record.Message,
		Fields:    fields,
	})
	return s.base.Handle(ctx, record)
}

func (s *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(s.attrs)+len(attrs))
	merged = append(merged, s.attrs...)
	merged = append(merged, attrs...)
	return &streamHandler{base: s.base.WithAttrs(attrs), hub: s.hub, attrs: merged}
}

func (s *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{base: s.base.WithGroup(name), hub: s.hub, attrs: s.attrs}
}
