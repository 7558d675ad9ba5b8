// Package calendar integrates an external calendar as a best-effort busy
// source and mirror target for appointments. Failures here never block a
// booking that is valid locally.
package calendar

import (
	"context"
	"time"
)

// BusyInterval is a transient busy range reported by the external calendar.
// Advisory only; never persisted.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// Source is the external calendar contract consumed by the booking engine.
type Source interface {
	// BusyIntervals returns the busy ranges on the given calendar date.
	BusyIntervals(ctx context.Context, date time.Time) ([]BusyInterval, error)

	// CreateEvent mirrors an appointment and returns the external event id.
	CreateEvent(ctx context.Context, summary string, start, end time.Time) (string, error)

	// DeleteEvent removes a mirrored event.
	DeleteEvent(ctx context.Context, externalID string) error
}

// Disabled is a Source for deployments without calendar integration. Reads
// report no busy intervals; writes report nothing to mirror.
type Disabled struct{}

// BusyIntervals always reports an empty calendar.
func (Disabled) BusyIntervals(ctx context.Context, date time.Time) ([]BusyInterval, error) {
	return nil, nil
}

// CreateEvent reports no external id without error.
func (Disabled) CreateEvent(ctx context.Context, summary string, start, end time.Time) (string, error) {
	return "", nil
}

// DeleteEvent is a no-op.
func (Disabled) DeleteEvent(ctx context.Context, externalID string) error {
	return nil
}
