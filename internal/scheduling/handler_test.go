package scheduling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, f *engineFixture) *httptest.Server {
	t.Helper()
	h := NewHandler(f.engine, nil)
	r := chi.NewRouter()
	r.Get("/availability", h.ListAvailability)
	r.Get("/services", h.ListServices)
	r.Post("/appointments", h.Book)
	r.Delete("/appointments/{appointmentID}", h.Cancel)
	r.Get("/patients/{patientID}/appointments", h.ListForPatient)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandlerListAvailability(t *testing.T) {
	f := newEngineFixture(t, testNow)
	srv := newTestServer(t, f)

	resp, err := http.Get(fmt.Sprintf("%s/availability?date=2026-09-01&service_type_id=%s", srv.URL, f.serviceID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body AvailabilityResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "2026-09-01", body.Date)
	assert.Len(t, body.Slots, 31)
	assert.Equal(t, NewTimeOfDay(9, 0), body.Slots[0].StartTime)
}

func TestHandlerListAvailabilityBadDate(t *testing.T) {
	f := newEngineFixture(t, testNow)
	srv := newTestServer(t, f)

	resp, err := http.Get(fmt.Sprintf("%s/availability?date=tomorrow&service_type_id=%s", srv.URL, f.serviceID))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerBook(t *testing.T) {
	f := newEngineFixture(t, testNow)
	srv := newTestServer(t, f)

	payload, _ := json.Marshal(BookRequest{
		PatientID:     f.patientID.String(),
		ServiceTypeID: f.serviceID.String(),
		Date:          "2026-09-01",
		StartTime:     "2:30 PM",
	})
	resp, err := http.Post(srv.URL+"/appointments", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var appt Appointment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&appt))
	assert.Equal(t, NewTimeOfDay(14, 30), appt.StartTime)
	assert.Equal(t, NewTimeOfDay(15, 0), appt.EndTime)
	assert.Equal(t, StatusPending, appt.Status)
}

func TestHandlerBookStatusMapping(t *testing.T) {
	f := newEngineFixture(t, testNow)
	srv := newTestServer(t, f)

	book := func(req BookRequest) int {
		payload, _ := json.Marshal(req)
		resp, err := http.Post(srv.URL+"/appointments", "application/json", bytes.NewReader(payload))
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	base := BookRequest{
		PatientID:     f.patientID.String(),
		ServiceTypeID: f.serviceID.String(),
		Date:          "2026-09-01",
		StartTime:     "10:00",
	}
	require.Equal(t, http.StatusCreated, book(base))

	// Overlapping re-book conflicts.
	conflict := base
	conflict.StartTime = "10:15"
	assert.Equal(t, http.StatusConflict, book(conflict))

	// Unknown patient.
	missing := base
	missing.PatientID = uuid.NewString()
	missing.StartTime = "11:00"
	assert.Equal(t, http.StatusNotFound, book(missing))

	// Lead time violation: now is 08:00, an 08:45 start is under an hour out.
	tooSoon := base
	tooSoon.StartTime = "8:45 AM"
	assert.Equal(t, http.StatusUnprocessableEntity, book(tooSoon))

	// 17:00 start spills past the 17:00 close.
	outside := base
	outside.StartTime = "17:00"
	assert.Equal(t, http.StatusConflict, book(outside))

	// Malformed time string.
	badTime := base
	badTime.StartTime = "half past two"
	assert.Equal(t, http.StatusBadRequest, book(badTime))
}

func TestHandlerCancel(t *testing.T) {
	f := newEngineFixture(t, testNow)
	srv := newTestServer(t, f)
	appt, err := f.engine.BookAppointment(t.Context(), f.patientID, f.serviceID, testDate, NewTimeOfDay(10, 0))
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/appointments/"+appt.ID.String(), nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cancelled Appointment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cancelled))
	assert.Equal(t, StatusCancelled, cancelled.Status)
}

func TestHandlerCancelUnknown(t *testing.T) {
	f := newEngineFixture(t, testNow)
	srv := newTestServer(t, f)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/appointments/"+uuid.NewString(), nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerListServices(t *testing.T) {
	f := newEngineFixture(t, testNow)
	srv := newTestServer(t, f)

	resp, err := http.Get(srv.URL + "/services")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Services []*ServiceType `json:"services"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Services, 1)
	assert.Equal(t, "Consultation", body.Services[0].Name)
}
