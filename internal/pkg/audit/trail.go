// Package audit is the append-only record of payment lifecycle events.
// Every event is redacted before any sink sees it and sink failures never
// reach the caller.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// EventType names a payment lifecycle event.
type EventType string

const (
	EventInitiated             EventType = "initiated"
	EventConfirmed             EventType = "confirmed"
	EventFailed                EventType = "failed"
	EventDuplicateConfirmation EventType = "duplicate_confirmation"
	EventPendingTimeout        EventType = "pending_timeout"
)

// Contextual field keys.
const (
	FieldGatewayReference = "gateway_reference"
	FieldActorID          = "actor_id"
	FieldReasonCode       = "reason_code"
	FieldStatus           = "status"
)

// Event is one audit entry. Timestamp is assigned by the Trail.
type Event struct {
	Type           EventType              `json:"type"`
	RegistrationID string                 `json:"registration_id"`
	PaymentID      string                 `json:"payment_id"`
	Fields         map[string]interface{} `json:"fields,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// Sink receives redacted events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Write(ctx context.Context, event Event) error { return f(ctx, event) }

// Trail fans redacted events out to its sinks.
type Trail struct {
	sinks []Sink
	now   func() time.Time
}

// NewTrail creates a trail writing to the given sinks.
func NewTrail(sinks ...Sink) *Trail {
	return &Trail{sinks: sinks, now: time.Now}
}

// WithClock overrides the timestamp source.
func (t *Trail) WithClock(now func() time.Time) *Trail {
	if now != nil {
		t.now = now
	}
	return t
}

// Record redacts fields, stamps the event and writes it to every sink.
// Errors and panics from sinks are logged and swallowed.
func (t *Trail) Record(ctx context.Context, eventType EventType, registrationID, paymentID string, fields map[string]interface{}) {
	if t == nil {
		return
	}
	event := Event{
		Type:           eventType,
		RegistrationID: registrationID,
		PaymentID:      paymentID,
		Fields:         Redact(fields),
		Timestamp:      t.now(),
	}
	for _, sink := range t.sinks {
		if err := writeSafely(ctx, sink, event); err != nil {
			log.Warnf("[Audit] sink failed for %s event on registration %s: %v", eventType, registrationID, err)
		}
	}
}

func writeSafely(ctx context.Context, sink Sink, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.Write(ctx, event)
}
