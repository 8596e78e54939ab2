package audit

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Record is one step in a chain's audit trail.
type Record struct {
	TaskID          string    `json:"task_id"`
	StepIndex       int       `json:"step_index"`
	Handler         string    `json:"handler"`
	Outcome         string    `json:"outcome"`
	DurationMS      int64     `json:"duration_ms"`
	ContextKeyCount int       `json:"context_key_count"`
	Timestamp       time.Time `json:"timestamp"`
}

// Sink receives audit records in step order. Implementations must be safe
// for concurrent use: independent chains append interleaved.
type Sink interface {
	Append(rec Record) error
}

// NopSink discards everything.
type NopSink struct{}

// Append implements Sink.
func (NopSink) Append(Record) error { return nil }

// StreamSink writes newline-delimited JSON records to a writer.
type StreamSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStreamSink creates a StreamSink over w.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

// Append marshals the record and writes one line.
func (s *StreamSink) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	_, err = s.w.Write([]byte("\n"))
	return err
}

// MultiSink fans records out to several sinks; the first error wins but all
// sinks still receive the record.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Append implements Sink.
func (m *MultiSink) Append(rec Record) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Append(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
