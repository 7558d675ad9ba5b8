package scheduling

import (
	"context"
	"time"

	"github.com/openclinic/booking-platform/internal/calendar"
	"github.com/openclinic/booking-platform/internal/observability/metrics"
	"github.com/openclinic/booking-platform/pkg/logging"
)

// Aggregator merges every exclusion source for a date into one interval set:
// non-cancelled appointments, blocked slots, and external busy intervals.
// The external fetch is bounded by a timeout and fail-open: on any adapter
// failure the aggregator logs and proceeds with local sources only.
type Aggregator struct {
	store        Store
	source       calendar.Source
	fetchTimeout time.Duration
	logger       *logging.Logger
	metrics      *metrics.BookingMetrics
}

// NewAggregator creates an exclusion aggregator. A nil source disables the
// external busy feed.
func NewAggregator(store Store, source calendar.Source, fetchTimeout time.Duration, logger *logging.Logger, m *metrics.BookingMetrics) *Aggregator {
	if logger == nil {
		logger = logging.Default()
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	return &Aggregator{
		store:        store,
		source:       source,
		fetchTimeout: fetchTimeout,
		logger:       logger,
		metrics:      m,
	}
}

// Exclusions returns the union of all exclusion intervals on the date. No
// merging or ordering is guaranteed; callers test overlap per interval.
func (a *Aggregator) Exclusions(ctx context.Context, date time.Time) ([]Interval, error) {
	appts, err := a.store.AppointmentsByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	blocks, err := a.store.BlockedSlotsByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	exclusions := make([]Interval, 0, len(appts)+len(blocks))
	for _, appt := range appts {
		exclusions = append(exclusions, appt.Interval())
	}
	for _, block := range blocks {
		exclusions = append(exclusions, block.Interval())
	}

	busy, ok := a.externalBusy(ctx, date)
	if ok {
		exclusions = append(exclusions, busy...)
	}
	return exclusions, nil
}

// externalBusy fetches busy intervals from the calendar source under the
// bounded timeout. The second return is false when the adapter failed and
// the caller should plan with local sources only.
func (a *Aggregator) externalBusy(ctx context.Context, date time.Time) ([]Interval, bool) {
	if a.source == nil {
		return nil, false
	}
	fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	busy, err := a.source.BusyIntervals(fetchCtx, date)
	if err != nil {
		a.logger.Warn("external calendar unavailable, planning with local sources only",
			"date", date.Format("2006-01-02"),
			"error", err,
		)
		a.metrics.ObserveCalendarFetch("error")
		return nil, false
	}
	a.metrics.ObserveCalendarFetch("ok")
	return clampBusyToDate(date, busy), true
}

// clampBusyToDate converts absolute busy ranges to time-of-day intervals on
// the date, clamping ranges that spill past midnight and dropping ranges
// entirely outside the day.
func clampBusyToDate(date time.Time, busy []calendar.BusyInterval) []Interval {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var out []Interval
	for _, b := range busy {
		start, end := b.Start.UTC(), b.End.UTC()
		if !end.After(dayStart) || !start.Before(dayEnd) {
			continue
		}
		if start.Before(dayStart) {
			start = dayStart
		}
		if end.After(dayEnd) {
			end = dayEnd
		}
		out = append(out, Interval{
			Start: NewTimeOfDay(start.Hour(), start.Minute()),
			End:   clampEnd(end, dayEnd),
		})
	}
	return out
}

// clampEnd maps an end instant to a time of day, treating midnight of the
// next day as 24:00 so the interval stays half-open within the date.
// Sub-minute tails round up so the busy range never shrinks.
func clampEnd(end, dayEnd time.Time) TimeOfDay {
	if !end.Before(dayEnd) {
		return NewTimeOfDay(24, 0)
	}
	t := NewTimeOfDay(end.Hour(), end.Minute())
	if end.Second() > 0 || end.Nanosecond() > 0 {
		t++
	}
	return t
}
