package scheduling

import "errors"

var (
	// ErrServiceNotFound means the service type does not exist or is inactive.
	ErrServiceNotFound = errors.New("service type not found or inactive")

	// ErrPatientNotFound means the patient reference does not resolve.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrAppointmentNotFound means the appointment reference does not resolve.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrInvalidDate means a date string is not a valid YYYY-MM-DD calendar date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidTimeFormat means a time string matched none of the accepted layouts.
	ErrInvalidTimeFormat = errors.New("invalid time format")

	// ErrLeadTimeViolation means the requested start is inside the minimum lead time.
	ErrLeadTimeViolation = errors.New("appointments require at least 1 hour advance notice")

	// ErrSlotConflict means the requested interval overlaps an existing appointment.
	ErrSlotConflict = errors.New("time slot already booked")

	// ErrSlotBlocked means the requested interval overlaps a blocked slot or
	// falls outside business hours.
	ErrSlotBlocked = errors.New("time slot is blocked")

	// ErrExternalCalendarConflict means the external calendar reported a busy
	// interval overlapping the requested slot. Raised only when the calendar
	// query itself succeeded; adapter failures never surface.
	ErrExternalCalendarConflict = errors.New("time slot conflicts with an external calendar event")
)
