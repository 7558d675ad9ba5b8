package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract the engine operates against. The
// postgres implementation lives in this package; tests substitute fakes.
type Store interface {
	// PatientByID resolves a patient reference. ErrPatientNotFound if absent.
	PatientByID(ctx context.Context, id uuid.UUID) (PatientRef, error)

	// ServiceTypeByID resolves an active service type. ErrServiceNotFound if
	// absent or inactive.
	ServiceTypeByID(ctx context.Context, id uuid.UUID) (*ServiceType, error)

	// ListServiceTypes returns all active service types.
	ListServiceTypes(ctx context.Context) ([]*ServiceType, error)

	// BusinessHourByWeekday returns the record for a weekday name ("Monday").
	// A nil result with nil error means the weekday is unconfigured (closed).
	BusinessHourByWeekday(ctx context.Context, weekday string) (*BusinessHour, error)

	// BlockedSlotsByDate returns all blocked slots on the date.
	BlockedSlotsByDate(ctx context.Context, date time.Time) ([]*BlockedSlot, error)

	// AppointmentsByDate returns all non-cancelled appointments on the date.
	AppointmentsByDate(ctx context.Context, date time.Time) ([]*Appointment, error)

	// AppointmentsByPatient returns a patient's appointments, newest first.
	AppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)

	// AppointmentByID resolves an appointment. ErrAppointmentNotFound if absent.
	AppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// CreateAppointment atomically re-checks the requested interval against
	// non-cancelled appointments (ErrSlotConflict) and blocked slots
	// (ErrSlotBlocked) and inserts the row. The check-then-insert sequence is
	// serialized per date so concurrent overlapping requests cannot both
	// commit. Fills ID and CreatedAt on success.
	CreateAppointment(ctx context.Context, appt *Appointment) error

	// CancelAppointment flips status to cancelled, retaining the row.
	CancelAppointment(ctx context.Context, id uuid.UUID) error

	// UpdateAppointmentSync records the external mirroring outcome.
	UpdateAppointmentSync(ctx context.Context, id uuid.UUID, externalID, syncStatus string) error
}
