package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment lifecycle states. Cancelled rows are retained for audit.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// External calendar mirroring states.
const (
	SyncNotSynced = "not_synced"
	SyncSynced    = "synced"
	SyncFailed    = "failed"
)

// SlotGridMinutes is the fixed quantum candidate slots are stepped at.
const SlotGridMinutes = 15

// LeadTime is the minimum advance notice between now and a bookable start.
const LeadTime = time.Hour

// ServiceType describes a bookable service. Duration drives slot sizing.
type ServiceType struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	DurationMinutes      int       `json:"duration_minutes"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
	Active               bool      `json:"active"`
}

// Duration returns the service duration as a time.Duration.
func (s *ServiceType) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// BusinessHour bounds bookable hours for one weekday, matched by weekday
// name rather than date. Nil open/close or IsClosed means no slots that day.
type BusinessHour struct {
	ID        uuid.UUID  `json:"id"`
	DayOfWeek string     `json:"day_of_week"`
	OpenTime  *TimeOfDay `json:"open_time,omitempty"`
	CloseTime *TimeOfDay `json:"close_time,omitempty"`
	IsClosed  bool       `json:"is_closed"`
}

// BlockedSlot is a one-off exclusion (staff break, holiday) independent of
// bookings.
type BlockedSlot struct {
	ID        uuid.UUID `json:"id"`
	Date      time.Time `json:"date"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
	Reason    string    `json:"reason"`
}

// Interval returns the exclusion as a half-open interval.
func (b *BlockedSlot) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

// Appointment is a booked slot. EndTime is always derived from the service
// duration, never caller-supplied.
type Appointment struct {
	ID                 uuid.UUID `json:"id"`
	PatientID          uuid.UUID `json:"patient_id"`
	ServiceTypeID      uuid.UUID `json:"service_type_id"`
	Date               time.Time `json:"date"`
	StartTime          TimeOfDay `json:"start_time"`
	EndTime            TimeOfDay `json:"end_time"`
	Status             string    `json:"status"`
	ExternalCalendarID string    `json:"external_calendar_id,omitempty"`
	SyncStatus         string    `json:"sync_status"`
	CreatedAt          time.Time `json:"created_at"`
}

// Interval returns the booked range as a half-open interval.
func (a *Appointment) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime}
}

// Slot is a bookable candidate returned by the availability engine.
type Slot struct {
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

// PatientRef is the engine's view of a patient: enough to validate the
// reference and address confirmations. The patients package owns the full
// record.
type PatientRef struct {
	ID       uuid.UUID
	FullName string
	Email    string
}
