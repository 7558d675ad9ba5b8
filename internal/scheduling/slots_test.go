package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func tod(hour, minute int) *TimeOfDay {
	t := NewTimeOfDay(hour, minute)
	return &t
}

func collectSlots(hours *BusinessHour, duration time.Duration) []Interval {
	var out []Interval
	for slot := range CandidateSlots(hours, duration) {
		out = append(out, slot)
	}
	return out
}

func TestCandidateSlotsGrid(t *testing.T) {
	hours := &BusinessHour{DayOfWeek: "Monday", OpenTime: tod(9, 0), CloseTime: tod(10, 0)}

	got := collectSlots(hours, 30*time.Minute)

	want := []Interval{
		{NewTimeOfDay(9, 0), NewTimeOfDay(9, 30)},
		{NewTimeOfDay(9, 15), NewTimeOfDay(9, 45)},
		{NewTimeOfDay(9, 30), NewTimeOfDay(10, 0)},
	}
	assert.Equal(t, want, got)
}

func TestCandidateSlotsLastSlotEndsAtClose(t *testing.T) {
	hours := &BusinessHour{DayOfWeek: "Monday", OpenTime: tod(9, 0), CloseTime: tod(17, 0)}

	got := collectSlots(hours, 30*time.Minute)

	assert.Len(t, got, 31)
	last := got[len(got)-1]
	assert.Equal(t, NewTimeOfDay(16, 30), last.Start)
	assert.Equal(t, NewTimeOfDay(17, 0), last.End)
}

func TestCandidateSlotsEmptyCases(t *testing.T) {
	tests := []struct {
		name     string
		hours    *BusinessHour
		duration time.Duration
	}{
		{"nil hours", nil, 30 * time.Minute},
		{"closed day", &BusinessHour{IsClosed: true, OpenTime: tod(9, 0), CloseTime: tod(17, 0)}, 30 * time.Minute},
		{"missing open time", &BusinessHour{CloseTime: tod(17, 0)}, 30 * time.Minute},
		{"window shorter than duration", &BusinessHour{OpenTime: tod(9, 0), CloseTime: tod(9, 30)}, time.Hour},
		{"zero duration", &BusinessHour{OpenTime: tod(9, 0), CloseTime: tod(17, 0)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, collectSlots(tt.hours, tt.duration))
		})
	}
}

func TestCandidateSlotsRestartable(t *testing.T) {
	hours := &BusinessHour{OpenTime: tod(9, 0), CloseTime: tod(10, 0)}
	seq := CandidateSlots(hours, 30*time.Minute)

	first := func() []Interval {
		var out []Interval
		for s := range seq {
			out = append(out, s)
		}
		return out
	}
	assert.Equal(t, first(), first())
}
