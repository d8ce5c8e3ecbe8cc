package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivityEvent is what the external activity log receives for each pin mutation.
type ActivityEvent struct {
	Action       PinChangeOp `json:"action"`
	PinID        uuid.UUID   `json:"pin_id"`
	PinTitle     string      `json:"pin_title"`
	OperatorID   string      `json:"operator_id"`
	OperatorName string      `json:"operator_name"`
	At           time.Time   `json:"at"`
}
