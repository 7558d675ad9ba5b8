package patients

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients in the relational database.
type PostgresRepository struct {
	pool Querier
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(pool Querier) *PostgresRepository {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// uniqueViolation is the SQLSTATE for duplicate keys (here: phone_number).
const uniqueViolation = "23505"

// Create inserts a new patient row.
func (r *PostgresRepository) Create(ctx context.Context, req *CreatePatientRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	patient := &Patient{
		ID:                uuid.New(),
		FullName:          req.FullName,
		PhoneNumber:       req.PhoneNumber,
		Email:             req.Email,
		IsInsured:         req.IsInsured,
		InsuranceProvider: req.InsuranceProvider,
	}
	query := `
		INSERT INTO patients (id, full_name, phone_number, email, is_insured, insurance_provider)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''))
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		patient.ID,
		patient.FullName,
		patient.PhoneNumber,
		patient.Email,
		patient.IsInsured,
		patient.InsuranceProvider,
	).Scan(&patient.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicatePhone
		}
		return nil, fmt.Errorf("patients: insert failed: %w", err)
	}
	return patient, nil
}

// GetByID fetches a patient by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByPhone fetches a patient by phone number.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*Patient, error) {
	return r.get(ctx, `WHERE phone_number = $1`, phone)
}

func (r *PostgresRepository) get(ctx context.Context, where string, arg any) (*Patient, error) {
	query := `
		SELECT id, full_name, phone_number, COALESCE(email, ''), is_insured,
		       COALESCE(insurance_provider, ''), created_at
		FROM patients
	` + where
	var patient Patient
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&patient.ID,
		&patient.FullName,
		&patient.PhoneNumber,
		&patient.Email,
		&patient.IsInsured,
		&patient.InsuranceProvider,
		&patient.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patients: select failed: %w", err)
	}
	return &patient, nil
}
