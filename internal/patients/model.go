package patients

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient is a registered clinic patient. Phone number is the natural key
// the chat agent looks patients up by.
type Patient struct {
	ID                uuid.UUID `json:"id"`
	FullName          string    `json:"full_name"`
	PhoneNumber       string    `json:"phone_number"`
	Email             string    `json:"email,omitempty"`
	IsInsured         bool      `json:"is_insured"`
	InsuranceProvider string    `json:"insurance_provider,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// CreatePatientRequest represents the request body for registering a patient
type CreatePatientRequest struct {
	FullName          string `json:"full_name"`
	PhoneNumber       string `json:"phone_number"`
	Email             string `json:"email"`
	IsInsured         bool   `json:"is_insured"`
	InsuranceProvider string `json:"insurance_provider"`
}

// Validate validates the create patient request
func (r *CreatePatientRequest) Validate() error {
	if strings.TrimSpace(r.FullName) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.PhoneNumber) == "" {
		return ErrMissingPhone
	}
	return nil
}
