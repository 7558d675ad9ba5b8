package patients

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory Repository for handler tests.
type fakeRepo struct {
	byID    map[uuid.UUID]*Patient
	byPhone map[string]*Patient
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byID:    make(map[uuid.UUID]*Patient),
		byPhone: make(map[string]*Patient),
	}
}

func (f *fakeRepo) Create(_ context.Context, req *CreatePatientRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, exists := f.byPhone[req.PhoneNumber]; exists {
		return nil, ErrDuplicatePhone
	}
	p := &Patient{
		ID:                uuid.New(),
		FullName:          req.FullName,
		PhoneNumber:       req.PhoneNumber,
		Email:             req.Email,
		IsInsured:         req.IsInsured,
		InsuranceProvider: req.InsuranceProvider,
		CreatedAt:         time.Now().UTC(),
	}
	f.byID[p.ID] = p
	f.byPhone[p.PhoneNumber] = p
	return p, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, ErrPatientNotFound
}

func (f *fakeRepo) GetByPhone(_ context.Context, phone string) (*Patient, error) {
	if p, ok := f.byPhone[phone]; ok {
		return p, nil
	}
	return nil, ErrPatientNotFound
}

func newPatientServer(t *testing.T) (*httptest.Server, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	h := NewHandler(repo, nil)
	r := chi.NewRouter()
	r.Post("/patients", h.Create)
	r.Get("/patients/lookup", h.Lookup)
	r.Get("/patients/{patientID}", h.Get)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo
}

func TestHandlerCreatePatient(t *testing.T) {
	srv, _ := newPatientServer(t)

	payload, _ := json.Marshal(CreatePatientRequest{
		FullName:    "Jane Roe",
		PhoneNumber: "+15551234567",
		Email:       "jane@example.com",
	})
	resp, err := http.Post(srv.URL+"/patients", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var patient Patient
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&patient))
	assert.Equal(t, "Jane Roe", patient.FullName)
	assert.NotEqual(t, uuid.Nil, patient.ID)
}

func TestHandlerCreatePatientErrors(t *testing.T) {
	srv, _ := newPatientServer(t)

	post := func(req CreatePatientRequest) int {
		payload, _ := json.Marshal(req)
		resp, err := http.Post(srv.URL+"/patients", "application/json", bytes.NewReader(payload))
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusBadRequest, post(CreatePatientRequest{PhoneNumber: "+15551234567"}))
	assert.Equal(t, http.StatusBadRequest, post(CreatePatientRequest{FullName: "Jane Roe"}))

	valid := CreatePatientRequest{FullName: "Jane Roe", PhoneNumber: "+15551234567"}
	require.Equal(t, http.StatusCreated, post(valid))
	assert.Equal(t, http.StatusConflict, post(valid))
}

func TestHandlerLookupPatient(t *testing.T) {
	srv, repo := newPatientServer(t)
	seeded, err := repo.Create(context.Background(), &CreatePatientRequest{
		FullName:    "Jane Roe",
		PhoneNumber: "+15551234567",
	})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/patients/lookup?phone=%2B15551234567")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var patient Patient
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&patient))
	assert.Equal(t, seeded.ID, patient.ID)

	resp2, err := http.Get(srv.URL + "/patients/lookup?phone=%2B15550000000")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)

	resp3, err := http.Get(srv.URL + "/patients/lookup")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestHandlerGetPatient(t *testing.T) {
	srv, repo := newPatientServer(t)
	seeded, err := repo.Create(context.Background(), &CreatePatientRequest{
		FullName:    "Jane Roe",
		PhoneNumber: "+15551234567",
	})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/patients/" + seeded.ID.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/patients/" + uuid.NewString())
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)

	resp3, err := http.Get(srv.URL + "/patients/not-a-uuid")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}
