package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// PgxPool is the subset of pgxpool.Pool the store needs. pgxmock satisfies
// it in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store over PostgreSQL.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("scheduling: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

// exclusionConstraint is the SQLSTATE raised by the appointments EXCLUDE
// constraint, the database-level backstop against double booking.
const exclusionConstraint = "23P01"

func (s *PostgresStore) PatientByID(ctx context.Context, id uuid.UUID) (PatientRef, error) {
	var patient PatientRef
	query := `
		SELECT id, full_name, COALESCE(email, '')
		FROM patients
		WHERE id = $1
	`
	err := s.pool.QueryRow(ctx, query, id).Scan(&patient.ID, &patient.FullName, &patient.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return PatientRef{}, ErrPatientNotFound
	}
	if err != nil {
		return PatientRef{}, fmt.Errorf("scheduling: load patient: %w", err)
	}
	return patient, nil
}

func (s *PostgresStore) ServiceTypeByID(ctx context.Context, id uuid.UUID) (*ServiceType, error) {
	var service ServiceType
	query := `
		SELECT id, name, duration_minutes, requires_confirmation, active
		FROM service_types
		WHERE id = $1 AND active
	`
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&service.ID, &service.Name, &service.DurationMinutes, &service.RequiresConfirmation, &service.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling: load service type: %w", err)
	}
	return &service, nil
}

func (s *PostgresStore) ListServiceTypes(ctx context.Context) ([]*ServiceType, error) {
	query := `
		SELECT id, name, duration_minutes, requires_confirmation, active
		FROM service_types
		WHERE active
		ORDER BY name
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list service types: %w", err)
	}
	defer rows.Close()

	var services []*ServiceType
	for rows.Next() {
		var service ServiceType
		if err := rows.Scan(&service.ID, &service.Name, &service.DurationMinutes, &service.RequiresConfirmation, &service.Active); err != nil {
			return nil, fmt.Errorf("scheduling: scan service type: %w", err)
		}
		services = append(services, &service)
	}
	return services, rows.Err()
}

func (s *PostgresStore) BusinessHourByWeekday(ctx context.Context, weekday string) (*BusinessHour, error) {
	var (
		hours      BusinessHour
		open, clos pgtype.Time
	)
	query := `
		SELECT id, day_of_week, open_time, close_time, is_closed
		FROM business_hours
		WHERE day_of_week = $1
	`
	err := s.pool.QueryRow(ctx, query, weekday).Scan(&hours.ID, &hours.DayOfWeek, &open, &clos, &hours.IsClosed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling: load business hours: %w", err)
	}
	hours.OpenTime = fromPGTimePtr(open)
	hours.CloseTime = fromPGTimePtr(clos)
	return &hours, nil
}

func (s *PostgresStore) BlockedSlotsByDate(ctx context.Context, date time.Time) ([]*BlockedSlot, error) {
	query := `
		SELECT id, date, start_time, end_time, COALESCE(reason, '')
		FROM blocked_slots
		WHERE date = $1
		ORDER BY start_time
	`
	rows, err := s.pool.Query(ctx, query, dateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("scheduling: list blocked slots: %w", err)
	}
	defer rows.Close()

	var blocks []*BlockedSlot
	for rows.Next() {
		var (
			block      BlockedSlot
			start, end pgtype.Time
		)
		if err := rows.Scan(&block.ID, &block.Date, &start, &end, &block.Reason); err != nil {
			return nil, fmt.Errorf("scheduling: scan blocked slot: %w", err)
		}
		block.StartTime = fromPGTime(start)
		block.EndTime = fromPGTime(end)
		blocks = append(blocks, &block)
	}
	return blocks, rows.Err()
}

func (s *PostgresStore) AppointmentsByDate(ctx context.Context, date time.Time) ([]*Appointment, error) {
	query := appointmentSelect + `
		WHERE appointment_date = $1 AND status <> 'cancelled'
		ORDER BY start_time
	`
	rows, err := s.pool.Query(ctx, query, dateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("scheduling: list appointments by date: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) AppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	query := appointmentSelect + `
		WHERE patient_id = $1
		ORDER BY appointment_date DESC, start_time DESC
	`
	rows, err := s.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list appointments by patient: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) AppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := appointmentSelect + `
		WHERE id = $1
	`
	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("scheduling: load appointment: %w", err)
	}
	defer rows.Close()

	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return nil, ErrAppointmentNotFound
	}
	return appts[0], nil
}

// CreateAppointment serializes the check-then-insert per date with a
// transaction-scoped advisory lock, re-checks both local exclusion sources,
// and inserts. The EXCLUDE constraint catches anything that slips past the
// re-check and is reported as a slot conflict.
func (s *PostgresStore) CreateAppointment(ctx context.Context, appt *Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("scheduling: begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	day := dateOnly(appt.Date)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, day.Format("2006-01-02")); err != nil {
		return fmt.Errorf("scheduling: acquire date lock: %w", err)
	}

	start, end := toPGTime(appt.StartTime), toPGTime(appt.EndTime)

	var conflict bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE appointment_date = $1 AND status <> 'cancelled'
			  AND start_time < $3 AND end_time > $2
		)
	`, day, start, end).Scan(&conflict)
	if err != nil {
		return fmt.Errorf("scheduling: conflict re-check: %w", err)
	}
	if conflict {
		return ErrSlotConflict
	}

	var blocked bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM blocked_slots
			WHERE date = $1 AND start_time < $3 AND end_time > $2
		)
	`, day, start, end).Scan(&blocked)
	if err != nil {
		return fmt.Errorf("scheduling: blocked re-check: %w", err)
	}
	if blocked {
		return ErrSlotBlocked
	}

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, service_type_id, appointment_date, start_time, end_time, status, sync_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, appt.ID, appt.PatientID, appt.ServiceTypeID, day, start, end, appt.Status, appt.SyncStatus).Scan(&appt.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionConstraint {
			return ErrSlotConflict
		}
		return fmt.Errorf("scheduling: insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("scheduling: commit booking tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) CancelAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments SET status = 'cancelled' WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("scheduling: cancel appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateAppointmentSync(ctx context.Context, id uuid.UUID, externalID, syncStatus string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET external_calendar_id = NULLIF($2, ''), sync_status = $3
		WHERE id = $1
	`, id, externalID, syncStatus)
	if err != nil {
		return fmt.Errorf("scheduling: update sync status: %w", err)
	}
	return nil
}

const appointmentSelect = `
		SELECT id, patient_id, service_type_id, appointment_date, start_time, end_time,
		       status, COALESCE(external_calendar_id, ''), sync_status, created_at
		FROM appointments
`

func scanAppointments(rows pgx.Rows) ([]*Appointment, error) {
	var appts []*Appointment
	for rows.Next() {
		var (
			appt       Appointment
			start, end pgtype.Time
		)
		err := rows.Scan(
			&appt.ID, &appt.PatientID, &appt.ServiceTypeID, &appt.Date, &start, &end,
			&appt.Status, &appt.ExternalCalendarID, &appt.SyncStatus, &appt.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
		}
		appt.StartTime = fromPGTime(start)
		appt.EndTime = fromPGTime(end)
		appts = append(appts, &appt)
	}
	return appts, rows.Err()
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func toPGTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{
		Microseconds: int64(t) * int64(time.Minute/time.Microsecond),
		Valid:        true,
	}
}

func fromPGTime(t pgtype.Time) TimeOfDay {
	return TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}

func fromPGTimePtr(t pgtype.Time) *TimeOfDay {
	if !t.Valid {
		return nil
	}
	v := fromPGTime(t)
	return &v
}
