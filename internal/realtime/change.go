// Package realtime fans row changes out to the users that own them.
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

const (
	ordersPrefix   = "orders:user:"
	depositsPrefix = "deposits:user:"
)

// OrdersChannel is the per-user channel carrying order row changes.
func OrdersChannel(userID string) string { return ordersPrefix + userID }

// DepositsChannel is the per-user channel carrying deposit row changes.
func DepositsChannel(userID string) string { return depositsPrefix + userID }

// UserChannels lists every channel a user may subscribe to.
func UserChannels(userID string) []string {
	return []string{OrdersChannel(userID), DepositsChannel(userID)}
}

// Change is the payload delivered for one row change.
type Change struct {
	EventType string          `json:"eventType"`
	New       json.RawMessage `json:"new"`
	Old       json.RawMessage `json:"old"`
}

// Message is a Change tagged with the channel it arrived on.
type Message struct {
	Channel string `json:"channel"`
	Payload Change `json:"payload"`
}

// NewChange marshals the row images. A nil image is encoded as an empty object.
func NewChange(eventType string, newRow, oldRow any) (Change, error) {
	switch eventType {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return Change{}, fmt.Errorf("unknown event type %q", eventType)
	}
	n, err := marshalRow(newRow)
	if err != nil {
		return Change{}, err
	}
	o, err := marshalRow(oldRow)
	if err != nil {
		return Change{}, err
	}
	return Change{EventType: eventType, New: n, Old: o}, nil
}

func marshalRow(row any) (json.RawMessage, error) {
	if row == nil {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("marshal row: %w", err)
	}
	return b, nil
}

// validChannel guards the pattern subscription against unrelated Redis traffic.
func validChannel(ch string) bool {
	return (strings.HasPrefix(ch, ordersPrefix) && len(ch) > len(ordersPrefix)) ||
		(strings.HasPrefix(ch, depositsPrefix) && len(ch) > len(depositsPrefix))
}
