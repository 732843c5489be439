package models

import "time"

// PaymentAuditEvent is the persisted form of an audit trail entry. FieldsJSON
// is always written after redaction.
type PaymentAuditEvent struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	EventType      string    `gorm:"type:varchar(50);not null;index" json:"event_type"`
	RegistrationID string    `gorm:"type:varchar(64);not null;default:'';index" json:"registration_id"`
	PaymentID      string    `gorm:"type:varchar(64);not null;default:''" json:"payment_id"`
	FieldsJSON     string    `gorm:"type:text" json:"fields_json"`
	RecordedAt     time.Time `gorm:"index" json:"recorded_at"`
}
