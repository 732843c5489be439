package audit

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2/log"
)

// ErrorLogger is the redacting error logger handed to the payment service.
type ErrorLogger struct{}

// NewErrorLogger returns a logger that redacts fields like the audit trail.
func NewErrorLogger() *ErrorLogger {
	return &ErrorLogger{}
}

// LogError logs err for operation op with redacted context fields.
func (l *ErrorLogger) LogError(ctx context.Context, op string, err error, fields map[string]interface{}) {
	data, mErr := json.Marshal(Redact(fields))
	if mErr != nil {
		data = []byte("{}")
	}
	msg := "<nil>"
	if err != nil {
		msg = panLike.ReplaceAllString(err.Error(), RedactedValue)
	}
	log.Errorf("[Payments] %s failed: %s %s", op, msg, data)
}
