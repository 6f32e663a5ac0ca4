// Package report carries diagnostics out of recording and replay
// sessions. Engine packages never log directly; they emit Events to a
// Reporter and the host decides where those go.
package report

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
	"github.com/SmitUplenchwar2687/Retrace/internal/input"
)

// Kind classifies an Event.
type Kind string

const (
	// KindSample: a dry-run replay reached a sample.
	KindSample Kind = "sample"
	// KindBehind: replay was already late for a sample and did not sleep.
	KindBehind Kind = "behind"
	// KindClockAnomaly: a recorded timestamp did not increase, or replay
	// lag exceeded the configured threshold.
	KindClockAnomaly Kind = "clock_anomaly"
	// KindState: a session changed state.
	KindState Kind = "state"
)

// Event is one diagnostic emitted by a session.
type Event struct {
	Kind    Kind          `json:"kind"`
	Session string        `json:"session,omitempty"`
	Index   int           `json:"index"`
	Sample  *input.Sample `json:"sample,omitempty"`
	// Elapsed is the session clock reading in seconds.
	Elapsed float64 `json:"elapsed"`
	// Lag is how late the sample was handled, in seconds. Positive means late.
	Lag     float64    `json:"lag"`
	Code    fault.Code `json:"code,omitempty"`
	Message string     `json:"message,omitempty"`
	State   string     `json:"state,omitempty"`
	Time    time.Time  `json:"time"`
}

// Reporter receives session events. Report must not block for long; it
// runs on the replay loop.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(Event) {})

// Multi fans each event out to every non-nil reporter in order.
func Multi(reporters ...Reporter) Reporter {
	var rs []Reporter
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	switch len(rs) {
	case 0:
		return Discard
	case 1:
		return rs[0]
	}
	return multi(rs)
}

type multi []Reporter

func (m multi) Report(e Event) {
	for _, r := range m {
		r.Report(e)
	}
}

// StreamReporter writes each event to w as newline-delimited JSON.
// Thread-safe for concurrent use.
type StreamReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// Stream creates a StreamReporter writing to w.
func Stream(w io.Writer) *StreamReporter {
	return &StreamReporter{enc: json.NewEncoder(w)}
}

func (s *StreamReporter) Report(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.err = s.enc.Encode(e)
}

// Err returns the first write error, after which the stream stops writing.
func (s *StreamReporter) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Collector keeps every event in memory.
// Thread-safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Report(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events returns a copy of the collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Kind returns the collected events of kind k, in order.
func (c *Collector) Kind(k Kind) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of collected events.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
