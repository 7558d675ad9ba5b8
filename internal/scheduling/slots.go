package scheduling

import (
	"iter"
	"time"
)

// CandidateSlots enumerates fixed-size candidate windows [t, t+duration)
// stepped at the slot grid from open time up to close time minus duration.
// The sequence is lazy and restartable. Closed or unconfigured days, and
// windows shorter than the service duration, yield nothing; an empty
// sequence is an expected outcome, not an error.
func CandidateSlots(hours *BusinessHour, duration time.Duration) iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		if hours == nil || hours.IsClosed || hours.OpenTime == nil || hours.CloseTime == nil {
			return
		}
		size := TimeOfDay(duration / time.Minute)
		if size <= 0 {
			return
		}
		open, close := *hours.OpenTime, *hours.CloseTime
		for start := open; start+size <= close; start += SlotGridMinutes {
			if !yield(Interval{Start: start, End: start + size}) {
				return
			}
		}
	}
}
