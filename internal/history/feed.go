// Package history keeps a user's request list current from pushed changes.
package history

import (
	"encoding/json"
	"fmt"
	"sync"

	"topup-store/internal/lifecycle"
	"topup-store/internal/realtime"
	"topup-store/internal/repo"
)

// Feed is a newest-first list of rows merged with realtime changes. It is
// safe for concurrent use.
type Feed[T any] struct {
	mu       sync.Mutex
	rows     []T
	id       func(T) string
	status   func(T) repo.Status
	notified map[string]bool
}

// NewFeed seeds a feed with rows as loaded from history.
func NewFeed[T any](rows []T, id func(T) string, status func(T) repo.Status) *Feed[T] {
	f := &Feed[T]{
		rows:     append([]T(nil), rows...),
		id:       id,
		status:   status,
		notified: make(map[string]bool),
	}
	for _, r := range rows {
		if lifecycle.IsFulfilled(status(r)) {
			f.notified[id(r)] = true
		}
	}
	return f
}

// NewOrderFeed builds a Feed over orders.
func NewOrderFeed(rows []repo.Order) *Feed[repo.Order] {
	return NewFeed(rows,
		func(o repo.Order) string { return o.ID },
		func(o repo.Order) repo.Status { return o.Status })
}

// NewDepositFeed builds a Feed over deposit requests.
func NewDepositFeed(rows []repo.DepositRequest) *Feed[repo.DepositRequest] {
	return NewFeed(rows,
		func(d repo.DepositRequest) string { return d.ID },
		func(d repo.DepositRequest) repo.Status { return d.Status })
}

// Rows returns a copy of the current list.
func (f *Feed[T]) Rows() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]T(nil), f.rows...)
}

// Apply merges c. It returns the row when this change moved it into a
// fulfilled status for the first time, and nil otherwise.
func (f *Feed[T]) Apply(c realtime.Change) (*T, error) {
	switch c.EventType {
	case realtime.EventDelete:
		var old T
		if err := json.Unmarshal(c.Old, &old); err != nil {
			return nil, fmt.Errorf("decode deleted row: %w", err)
		}
		f.remove(f.id(old))
		return nil, nil
	case realtime.EventInsert, realtime.EventUpdate:
	default:
		return nil, fmt.Errorf("unknown event type %q", c.EventType)
	}

	var row T
	if err := json.Unmarshal(c.New, &row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	id := f.id(row)
	if id == "" {
		return nil, fmt.Errorf("change row has no id")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.indexOf(id)
	var prev repo.Status
	if idx >= 0 {
		prev = f.status(f.rows[idx])
		f.rows[idx] = row
	} else {
		f.rows = append([]T{row}, f.rows...)
	}

	cur := f.status(row)
	if !lifecycle.IsFulfilled(cur) || f.notified[id] {
		return nil, nil
	}
	if idx >= 0 && lifecycle.IsFulfilled(prev) {
		f.notified[id] = true
		return nil, nil
	}
	f.notified[id] = true
	return &row, nil
}

func (f *Feed[T]) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx := f.indexOf(id); idx >= 0 {
		f.rows = append(f.rows[:idx], f.rows[idx+1:]...)
	}
}

func (f *Feed[T]) indexOf(id string) int {
	for i, r := range f.rows {
		if f.id(r) == id {
			return i
		}
	}
	return -1
}
