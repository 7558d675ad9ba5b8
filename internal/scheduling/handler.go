package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openclinic/booking-platform/pkg/logging"
)

// Handler exposes the scheduling engine over HTTP.
type Handler struct {
	engine *Engine
	logger *logging.Logger
}

// NewHandler creates a new scheduling handler.
func NewHandler(engine *Engine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// AvailabilityResponse is the response for GET /availability.
type AvailabilityResponse struct {
	Date          string `json:"date"`
	ServiceTypeID string `json:"service_type_id"`
	Slots         []Slot `json:"slots"`
}

// ListAvailability handles GET /availability?date=...&service_type_id=...
func (h *Handler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	date, err := ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	serviceID, err := uuid.Parse(r.URL.Query().Get("service_type_id"))
	if err != nil {
		http.Error(w, "invalid service_type_id", http.StatusBadRequest)
		return
	}

	slots, err := h.engine.ListAvailableSlots(r.Context(), date, serviceID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AvailabilityResponse{
		Date:          date.Format("2006-01-02"),
		ServiceTypeID: serviceID.String(),
		Slots:         slots,
	})
}

// BookRequest is the request body for POST /appointments.
type BookRequest struct {
	PatientID     string `json:"patient_id"`
	ServiceTypeID string `json:"service_type_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
}

// Book handles POST /appointments requests.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		http.Error(w, "invalid patient_id", http.StatusBadRequest)
		return
	}
	serviceID, err := uuid.Parse(req.ServiceTypeID)
	if err != nil {
		http.Error(w, "invalid service_type_id", http.StatusBadRequest)
		return
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start, err := ParseTimeOfDay(req.StartTime)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	appt, err := h.engine.BookAppointment(r.Context(), patientID, serviceID, date, start)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"date", appt.Date.Format("2006-01-02"),
		"start", appt.StartTime,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(appt)
}

// Cancel handles DELETE /appointments/{appointmentID} requests.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.CancelAppointment(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("appointment cancelled", "appointment_id", appt.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appt)
}

// ListForPatient handles GET /patients/{patientID}/appointments requests.
func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	appts, err := h.engine.ListAppointmentsForPatient(r.Context(), patientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if appts == nil {
		appts = []*Appointment{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"appointments": appts})
}

// ListServices handles GET /services requests.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.engine.ListServiceTypes(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if services == nil {
		services = []*ServiceType{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"services": services})
}

// writeError maps engine errors to HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrServiceNotFound),
		errors.Is(err, ErrPatientNotFound),
		errors.Is(err, ErrAppointmentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidTimeFormat):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrLeadTimeViolation):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrSlotConflict),
		errors.Is(err, ErrSlotBlocked),
		errors.Is(err, ErrExternalCalendarConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("scheduling request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
