package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderSubmitted   = "OrderSubmitted"
	EventOrderModerated   = "OrderModerated"
	EventDepositSubmitted = "DepositSubmitted"
	EventDepositModerated = "DepositModerated"
	EventRateReplaced     = "ExchangeRateReplaced"
)

// Envelope wraps every lifecycle event written to the audit topic.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a version 1 envelope. correlationID is
// the row id so all events of one order or deposit share a partition.
func NewEnvelope(eventType, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "topup-store",
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}
