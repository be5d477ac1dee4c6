package contracts

import (
	"encoding/json"

	"stoplight/internal/domain/stoplight"
)

// ActivationMessage is what sessions publish to ExchangeStoplightFanout so that
// device listeners attached to other process instances receive activation changes.
// The event itself keeps the exact wire shape device firmware expects.
type ActivationMessage struct {
	SessionID string                    `json:"session_id"`
	Event     stoplight.ActivationEvent `json:"event"`
	Envelope
}

// EncodeActivationEvent renders the bare event exactly as device listeners consume
// it: {"activate":0|1,"groupID":N,"stoplightID":N}, no additional framing.
func EncodeActivationEvent(event stoplight.ActivationEvent) ([]byte, error) {
	return json.Marshal(event)
}
