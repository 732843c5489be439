package payments

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock returns the current time. Tests inject a fixed or steppable clock.
type Clock func() time.Time

// NewGatewayReference returns a fresh stand-in gateway reference.
func NewGatewayReference() string {
	return "gw_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
