// Package scheduling implements the availability and booking engine: slot
// generation over business hours, exclusion aggregation across appointments,
// blocked slots and an external calendar, and the transactional booking
// commit that guarantees at most one booking per overlapping interval.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclinic/booking-platform/internal/calendar"
	"github.com/openclinic/booking-platform/internal/observability/metrics"
	"github.com/openclinic/booking-platform/pkg/logging"
)

// Notifier receives best-effort post-commit notifications. Implementations
// must never fail the booking flow; errors are theirs to log.
type Notifier interface {
	AppointmentBooked(ctx context.Context, appt *Appointment, patient PatientRef, service *ServiceType)
	AppointmentCancelled(ctx context.Context, appt *Appointment, patient PatientRef)
}

// Engine exposes the caller-facing scheduling operations. It is stateless
// between calls; every invocation is scoped to the request context.
type Engine struct {
	store         Store
	exclusions    *Aggregator
	source        calendar.Source
	notifier      Notifier
	logger        *logging.Logger
	metrics       *metrics.BookingMetrics
	mirrorTimeout time.Duration
	now           func() time.Time
}

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Store                 Store
	Calendar              calendar.Source
	Notifier              Notifier
	Logger                *logging.Logger
	Metrics               *metrics.BookingMetrics
	CalendarFetchTimeout  time.Duration
	CalendarMirrorTimeout time.Duration

	// Now overrides the clock; tests use it. Defaults to time.Now.
	Now func() time.Time
}

// NewEngine creates the scheduling engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Store == nil {
		panic("scheduling: store required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	mirrorTimeout := cfg.CalendarMirrorTimeout
	if mirrorTimeout <= 0 {
		mirrorTimeout = 5 * time.Second
	}
	return &Engine{
		store:         cfg.Store,
		exclusions:    NewAggregator(cfg.Store, cfg.Calendar, cfg.CalendarFetchTimeout, logger, cfg.Metrics),
		source:        cfg.Calendar,
		notifier:      cfg.Notifier,
		logger:        logger,
		metrics:       cfg.Metrics,
		mirrorTimeout: mirrorTimeout,
		now:           now,
	}
}

// ListAvailableSlots returns the bookable slots for a date and service in
// ascending start order. Closed or unconfigured days return an empty list,
// not an error. Read-only and advisory; booking re-validates at commit time.
func (e *Engine) ListAvailableSlots(ctx context.Context, date time.Time, serviceTypeID uuid.UUID) ([]Slot, error) {
	started := time.Now()
	defer func() {
		e.metrics.ObserveAvailabilityLatency(time.Since(started).Seconds())
	}()

	service, err := e.store.ServiceTypeByID(ctx, serviceTypeID)
	if err != nil {
		return nil, err
	}

	hours, err := e.store.BusinessHourByWeekday(ctx, date.Weekday().String())
	if err != nil {
		return nil, err
	}
	if hours == nil || hours.IsClosed {
		return []Slot{}, nil
	}

	exclusions, err := e.exclusions.Exclusions(ctx, date)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	minStart := now.Add(LeadTime)
	sameDay := SameDate(date, now)

	slots := []Slot{}
	for candidate := range CandidateSlots(hours, service.Duration()) {
		// Lead time only constrains same-day booking.
		if sameDay && candidate.Start.At(date).Before(minStart) {
			continue
		}
		if overlapsAny(candidate, exclusions) {
			continue
		}
		slots = append(slots, Slot{StartTime: candidate.Start, EndTime: candidate.End})
	}
	return slots, nil
}

// BookAppointment re-validates the requested slot against every exclusion
// source and commits the appointment. The local check-then-insert runs
// inside the store transaction; the external calendar is consulted before it
// and mirrored after it, both best-effort with bounded timeouts.
func (e *Engine) BookAppointment(ctx context.Context, patientID, serviceTypeID uuid.UUID, date time.Time, start TimeOfDay) (*Appointment, error) {
	patient, err := e.store.PatientByID(ctx, patientID)
	if err != nil {
		e.metrics.ObserveBooking("patient_not_found")
		return nil, err
	}
	service, err := e.store.ServiceTypeByID(ctx, serviceTypeID)
	if err != nil {
		e.metrics.ObserveBooking("service_not_found")
		return nil, err
	}

	end := start.Add(service.Duration())
	requested := Interval{Start: start, End: end}

	now := e.now().UTC()
	if start.At(date).Before(now.Add(LeadTime)) {
		e.metrics.ObserveBooking("lead_time")
		return nil, ErrLeadTimeViolation
	}

	if err := e.checkBusinessHours(ctx, date, requested); err != nil {
		e.metrics.ObserveBooking("outside_hours")
		return nil, err
	}

	// External busy intervals are fetched before the write transaction so no
	// local lock is ever held during external I/O. Adapter failure is
	// tolerated: booking proceeds on local sources only.
	if busy, ok := e.exclusions.externalBusy(ctx, date); ok {
		for _, interval := range busy {
			if requested.Overlaps(interval) {
				e.metrics.ObserveBooking("external_conflict")
				return nil, ErrExternalCalendarConflict
			}
		}
	}

	appt := &Appointment{
		PatientID:     patientID,
		ServiceTypeID: serviceTypeID,
		Date:          date,
		StartTime:     start,
		EndTime:       end,
		Status:        StatusPending,
		SyncStatus:    SyncNotSynced,
	}
	if err := e.store.CreateAppointment(ctx, appt); err != nil {
		switch {
		case errors.Is(err, ErrSlotConflict):
			e.metrics.ObserveBooking("conflict")
		case errors.Is(err, ErrSlotBlocked):
			e.metrics.ObserveBooking("blocked")
		default:
			e.metrics.ObserveBooking("error")
		}
		return nil, err
	}
	e.metrics.ObserveBooking("booked")

	e.mirrorAppointment(ctx, appt, patient, service)

	if e.notifier != nil {
		e.notifier.AppointmentBooked(ctx, appt, patient, service)
	}
	return appt, nil
}

// CancelAppointment flips the appointment to cancelled, retaining the row,
// and best-effort removes the mirrored calendar event. Cancelling an already
// cancelled appointment is a no-op.
func (e *Engine) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := e.store.AppointmentByID(ctx, id)
	if err != nil {
		e.metrics.ObserveCancellation("not_found")
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return appt, nil
	}

	if err := e.store.CancelAppointment(ctx, id); err != nil {
		e.metrics.ObserveCancellation("error")
		return nil, err
	}
	appt.Status = StatusCancelled
	e.metrics.ObserveCancellation("cancelled")

	if e.source != nil && appt.ExternalCalendarID != "" {
		mirrorCtx, cancel := context.WithTimeout(ctx, e.mirrorTimeout)
		defer cancel()
		if err := e.source.DeleteEvent(mirrorCtx, appt.ExternalCalendarID); err != nil {
			e.logger.Warn("failed to remove mirrored calendar event",
				"appointment_id", appt.ID,
				"external_id", appt.ExternalCalendarID,
				"error", err,
			)
			e.metrics.ObserveCalendarMirror("delete", "error")
		} else {
			e.metrics.ObserveCalendarMirror("delete", "ok")
		}
	}

	if e.notifier != nil {
		if patient, err := e.store.PatientByID(ctx, appt.PatientID); err == nil {
			e.notifier.AppointmentCancelled(ctx, appt, patient)
		}
	}
	return appt, nil
}

// ListServiceTypes returns the bookable services.
func (e *Engine) ListServiceTypes(ctx context.Context) ([]*ServiceType, error) {
	return e.store.ListServiceTypes(ctx)
}

// ListAppointmentsForPatient returns a patient's appointments, newest first.
func (e *Engine) ListAppointmentsForPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	if _, err := e.store.PatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	return e.store.AppointmentsByPatient(ctx, patientID)
}

// checkBusinessHours enforces that the requested interval lies within the
// weekday's open window.
func (e *Engine) checkBusinessHours(ctx context.Context, date time.Time, requested Interval) error {
	hours, err := e.store.BusinessHourByWeekday(ctx, date.Weekday().String())
	if err != nil {
		return err
	}
	if hours == nil || hours.IsClosed || hours.OpenTime == nil || hours.CloseTime == nil {
		return fmt.Errorf("%w: the clinic is closed on %s", ErrSlotBlocked, date.Weekday())
	}
	if requested.Start < *hours.OpenTime || requested.End > *hours.CloseTime {
		return fmt.Errorf("%w: outside business hours (%s-%s)", ErrSlotBlocked, hours.OpenTime, hours.CloseTime)
	}
	return nil
}

// mirrorAppointment pushes the committed appointment into the external
// calendar and records the sync outcome. Mirror failure marks the row
// sync_status=failed for a later reconciliation sweep; it never rolls back
// the local booking.
func (e *Engine) mirrorAppointment(ctx context.Context, appt *Appointment, patient PatientRef, service *ServiceType) {
	if e.source == nil {
		return
	}
	mirrorCtx, cancel := context.WithTimeout(ctx, e.mirrorTimeout)
	defer cancel()

	summary := fmt.Sprintf("%s - %s", service.Name, patient.FullName)
	externalID, err := e.source.CreateEvent(mirrorCtx, summary, appt.StartTime.At(appt.Date), appt.EndTime.At(appt.Date))
	if err != nil {
		e.logger.Warn("calendar mirror failed, flagging for reconciliation",
			"appointment_id", appt.ID,
			"error", err,
		)
		e.metrics.ObserveCalendarMirror("create", "error")
		appt.SyncStatus = SyncFailed
		e.recordSync(ctx, appt)
		return
	}
	if externalID == "" {
		return
	}
	e.metrics.ObserveCalendarMirror("create", "ok")
	appt.ExternalCalendarID = externalID
	appt.SyncStatus = SyncSynced
	e.recordSync(ctx, appt)
}

func (e *Engine) recordSync(ctx context.Context, appt *Appointment) {
	if err := e.store.UpdateAppointmentSync(ctx, appt.ID, appt.ExternalCalendarID, appt.SyncStatus); err != nil {
		e.logger.Error("failed to record sync status",
			"appointment_id", appt.ID,
			"sync_status", appt.SyncStatus,
			"error", err,
		)
	}
}

func overlapsAny(candidate Interval, exclusions []Interval) bool {
	for _, exclusion := range exclusions {
		if candidate.Overlaps(exclusion) {
			return true
		}
	}
	return false
}
