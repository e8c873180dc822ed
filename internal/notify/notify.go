// Package notify carries outbound events from the pipeline and monitor to
// notification sinks. Components return events; only the Dispatcher
// talks to the network.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Kind classifies an event.
type Kind string

const (
	KindStageFailed  Kind = "stage_failed"
	KindShortfall    Kind = "uniqueness_shortfall"
	KindMilestone    Kind = "milestone"
	KindAlert        Kind = "alert"
	KindJobCompleted Kind = "job_completed"
	KindJobError     Kind = "job_error"
)

// Event is one notification waiting to be delivered.
type Event struct {
	Kind     Kind           `json:"kind"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
	At       time.Time      `json:"at"`
}

// New builds an event stamped with the current time.
func New(kind Kind, title, message string, metadata map[string]any) Event {
	return Event{Kind: kind, Title: title, Message: message, Metadata: metadata, At: time.Now().UTC()}
}

// Sink delivers one event.
type Sink interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}

// Dispatcher fans events out to every sink. Delivery failures are logged
// and swallowed.
type Dispatcher struct {
	sinks   []Sink
	onError func(sink string, ev Event, err error)
}

// NewDispatcher creates a Dispatcher over sinks.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// OnError registers a callback for failed deliveries, used for metrics.
func (d *Dispatcher) OnError(fn func(sink string, ev Event, err error)) {
	d.onError = fn
}

// Dispatch delivers events in order and returns the number of successful
// deliveries across all sinks.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...Event) int {
	if d == nil {
		return 0
	}
	sent := 0
	for _, ev := range events {
		for _, s := range d.sinks {
			if err := s.Notify(ctx, ev); err != nil {
				zap.L().Warn("notify: delivery failed",
					zap.String("sink", s.Name()),
					zap.String("kind", string(ev.Kind)),
					zap.Error(err),
				)
				if d.onError != nil {
					d.onError(s.Name(), ev, err)
				}
				continue
			}
			sent++
		}
	}
	return sent
}

// LogSink writes events to the global zap logger.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Notify(_ context.Context, ev Event) error {
	fields := []zap.Field{
		zap.String("kind", string(ev.Kind)),
		zap.String("title", ev.Title),
		zap.Time("at", ev.At),
	}
	for k, v := range ev.Metadata {
		fields = append(fields, zap.Any(k, v))
	}
	zap.L().Info(ev.Message, fields...)
	return nil
}
