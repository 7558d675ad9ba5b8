package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openclinic/booking-platform/internal/scheduling"
	"github.com/openclinic/booking-platform/pkg/logging"
)

// Querier is the subset of pgxpool.Pool the service needs to record
// notification rows.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service sends best-effort appointment confirmations and records each
// attempt. It implements scheduling.Notifier; nothing here may fail the
// booking flow, so every error ends at the log.
type Service struct {
	email  EmailSender
	db     Querier
	logger *logging.Logger
}

// NewService creates a notification service. A nil email sender disables
// delivery but still records notification rows.
func NewService(email EmailSender, db Querier, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:  email,
		db:     db,
		logger: logger,
	}
}

// AppointmentBooked sends a booking confirmation to the patient.
func (s *Service) AppointmentBooked(ctx context.Context, appt *scheduling.Appointment, patient scheduling.PatientRef, service *scheduling.ServiceType) {
	subject := "Appointment confirmation"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour %s appointment is booked for %s from %s to %s.\n\nSee you then!",
		patient.FullName,
		service.Name,
		appt.Date.Format("Monday, January 2, 2006"),
		appt.StartTime, appt.EndTime,
	)
	s.deliver(ctx, appt.ID, patient, subject, body)
}

// AppointmentCancelled confirms a cancellation to the patient.
func (s *Service) AppointmentCancelled(ctx context.Context, appt *scheduling.Appointment, patient scheduling.PatientRef) {
	subject := "Appointment cancelled"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour appointment on %s at %s has been cancelled.",
		patient.FullName,
		appt.Date.Format("Monday, January 2, 2006"),
		appt.StartTime,
	)
	s.deliver(ctx, appt.ID, patient, subject, body)
}

func (s *Service) deliver(ctx context.Context, appointmentID uuid.UUID, patient scheduling.PatientRef, subject, body string) {
	if patient.Email == "" {
		s.logger.Debug("patient has no email, skipping notification", "appointment_id", appointmentID)
		return
	}

	status := "sent"
	if s.email == nil {
		status = "skipped"
	} else if err := s.email.Send(ctx, EmailMessage{
		To:      patient.Email,
		ToName:  patient.FullName,
		Subject: subject,
		Body:    body,
	}); err != nil {
		s.logger.Warn("notification delivery failed", "appointment_id", appointmentID, "error", err)
		status = "failed"
	}

	s.record(ctx, appointmentID, patient.Email, body, status)
}

func (s *Service) record(ctx context.Context, appointmentID uuid.UUID, recipient, message, status string) {
	if s.db == nil {
		return
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, appointment_id, channel, recipient, message, status)
		VALUES ($1, $2, 'email', $3, $4, $5)
	`, uuid.New(), appointmentID, recipient, message, status)
	if err != nil {
		s.logger.Error("failed to record notification", "appointment_id", appointmentID, "error", err)
	}
}
