package patients

import "errors"

var (
	// ErrInvalidName is returned when the full name is missing
	ErrInvalidName = errors.New("full name is required")

	// ErrMissingPhone is returned when the phone number is missing
	ErrMissingPhone = errors.New("phone number is required")

	// ErrDuplicatePhone is returned when the phone number is already registered
	ErrDuplicatePhone = errors.New("a patient with this phone number already exists")

	// ErrPatientNotFound is returned when a patient is not found
	ErrPatientNotFound = errors.New("patient not found")
)
