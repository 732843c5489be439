package audit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ConfDesk/app/models"
)

// LogSink writes events as JSON lines to the application log.
type LogSink struct{}

func (LogSink) Write(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	log.Infof("[Audit] %s", data)
	return nil
}

// GormSink persists events into payment_audit_events.
type GormSink struct {
	db *gorm.DB
}

// NewGormSink creates a database-backed sink.
func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

// AutoMigrate creates the audit table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.PaymentAuditEvent{})
}

func (s *GormSink) Write(ctx context.Context, event Event) error {
	fieldsJSON := ""
	if len(event.Fields) > 0 {
		data, err := json.Marshal(event.Fields)
		if err != nil {
			return err
		}
		fieldsJSON = string(data)
	}
	return s.db.WithContext(ctx).Create(&models.PaymentAuditEvent{
		EventType:      string(event.Type),
		RegistrationID: event.RegistrationID,
		PaymentID:      event.PaymentID,
		FieldsJSON:     fieldsJSON,
		RecordedAt:     event.Timestamp,
	}).Error
}

// MemorySink keeps events in memory, mainly for tests and local runs.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) Write(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of recorded events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// OfType returns the recorded events of one type.
func (s *MemorySink) OfType(eventType EventType) []Event {
	var out []Event
	for _, e := range s.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
