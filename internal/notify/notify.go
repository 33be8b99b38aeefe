// Package notify delivers operator alerts over Telegram and WhatsApp. All
// credentials stay in server configuration.
package notify

import (
	"context"
	"errors"
	"fmt"
)

// Notifier sends one text alert.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Combine returns nil for no notifiers, the notifier itself for one, and a Multi otherwise.
func Combine(ns ...Notifier) Notifier {
	var kept Multi
	for _, n := range ns {
		if n != nil {
			kept = append(kept, n)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return kept
}

type sendError struct {
	channel string
	err     error
}

func (e *sendError) Error() string { return fmt.Sprintf("%s notify: %v", e.channel, e.err) }
func (e *sendError) Unwrap() error { return e.err }
