package agent

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"

	"github.com/openclinic/booking-platform/internal/patients"
	"github.com/openclinic/booking-platform/internal/scheduling"
)

// ToolFunc executes one tool call. Domain failures come back as an "error"
// entry in the response map so the model can recover in conversation;
// returned errors are reserved for infrastructure problems.
type ToolFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

// ToolRegistry binds the model-facing tool declarations to their
// implementations over the engine and stores.
type ToolRegistry struct {
	engine   *scheduling.Engine
	patients patients.Repository
	logs     *LogStore
	tools    map[string]ToolFunc
}

// NewToolRegistry creates the registry with every tool wired.
func NewToolRegistry(engine *scheduling.Engine, patientRepo patients.Repository, logs *LogStore) *ToolRegistry {
	r := &ToolRegistry{
		engine:   engine,
		patients: patientRepo,
		logs:     logs,
	}
	r.tools = map[string]ToolFunc{
		"lookup_patient":     r.lookupPatient,
		"create_patient":     r.createPatient,
		"list_services":      r.listServices,
		"check_availability": r.checkAvailability,
		"book_appointment":   r.bookAppointment,
		"cancel_appointment": r.cancelAppointment,
		"list_appointments":  r.listAppointments,
	}
	return r
}

// Execute runs a named tool. Unknown names come back as a model-visible
// error so a hallucinated tool call cannot fail the request.
func (r *ToolRegistry) Execute(ctx context.Context, call ToolCall) (ToolResult, error) {
	fn, ok := r.tools[call.Name]
	if !ok {
		return ToolResult{Name: call.Name, Response: errResponse(fmt.Errorf("unknown tool %q", call.Name))}, nil
	}
	response, err := fn(ctx, call.Args)
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{Name: call.Name, Response: response}, nil
}

// Declarations returns the Gemini function declarations for every tool.
func (r *ToolRegistry) Declarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        "lookup_patient",
			Description: "Look up an existing patient by phone number.",
			Parameters: objectSchema(map[string]*genai.Schema{
				"phone_number": {Type: genai.TypeString, Description: "Patient phone number"},
			}, "phone_number"),
		},
		{
			Name:        "create_patient",
			Description: "Register a new patient with contact and insurance details.",
			Parameters: objectSchema(map[string]*genai.Schema{
				"full_name":          {Type: genai.TypeString},
				"phone_number":       {Type: genai.TypeString},
				"email":              {Type: genai.TypeString},
				"is_insured":         {Type: genai.TypeBoolean},
				"insurance_provider": {Type: genai.TypeString},
			}, "full_name", "phone_number"),
		},
		{
			Name:        "list_services",
			Description: "List the bookable services with their ids and durations.",
			Parameters:  objectSchema(map[string]*genai.Schema{}),
		},
		{
			Name:        "check_availability",
			Description: "List available appointment slots for a date and service.",
			Parameters: objectSchema(map[string]*genai.Schema{
				"date":            {Type: genai.TypeString, Description: "Calendar date, YYYY-MM-DD"},
				"service_type_id": {Type: genai.TypeString, Description: "Service type id"},
			}, "date", "service_type_id"),
		},
		{
			Name:        "book_appointment",
			Description: "Book an appointment once the patient confirms date and time.",
			Parameters: objectSchema(map[string]*genai.Schema{
				"patient_id":      {Type: genai.TypeString},
				"service_type_id": {Type: genai.TypeString},
				"date":            {Type: genai.TypeString, Description: "Calendar date, YYYY-MM-DD"},
				"start_time":      {Type: genai.TypeString, Description: "Start time, e.g. 14:30 or 2:30 PM"},
			}, "patient_id", "service_type_id", "date", "start_time"),
		},
		{
			Name:        "cancel_appointment",
			Description: "Cancel an existing appointment by id.",
			Parameters: objectSchema(map[string]*genai.Schema{
				"appointment_id": {Type: genai.TypeString},
			}, "appointment_id"),
		},
		{
			Name:        "list_appointments",
			Description: "List a patient's appointments.",
			Parameters: objectSchema(map[string]*genai.Schema{
				"patient_id": {Type: genai.TypeString},
			}, "patient_id"),
		},
	}
}

func (r *ToolRegistry) lookupPatient(ctx context.Context, args map[string]any) (map[string]any, error) {
	phone, _ := args["phone_number"].(string)
	patient, err := r.patients.GetByPhone(ctx, phone)
	if err != nil {
		return errResponse(err), nil
	}
	return patientResponse(patient), nil
}

func (r *ToolRegistry) createPatient(ctx context.Context, args map[string]any) (map[string]any, error) {
	req := &patients.CreatePatientRequest{
		FullName:          stringArg(args, "full_name"),
		PhoneNumber:       stringArg(args, "phone_number"),
		Email:             stringArg(args, "email"),
		InsuranceProvider: stringArg(args, "insurance_provider"),
	}
	req.IsInsured, _ = args["is_insured"].(bool)

	patient, err := r.patients.Create(ctx, req)
	if err != nil {
		return errResponse(err), nil
	}
	return patientResponse(patient), nil
}

func (r *ToolRegistry) listServices(ctx context.Context, args map[string]any) (map[string]any, error) {
	services, err := r.engine.ListServiceTypes(ctx)
	if err != nil {
		return errResponse(err), nil
	}
	list := make([]map[string]any, 0, len(services))
	for _, service := range services {
		list = append(list, map[string]any{
			"id":               service.ID.String(),
			"name":             service.Name,
			"duration_minutes": service.DurationMinutes,
		})
	}
	return map[string]any{"services": list}, nil
}

func (r *ToolRegistry) checkAvailability(ctx context.Context, args map[string]any) (map[string]any, error) {
	date, err := scheduling.ParseDate(stringArg(args, "date"))
	if err != nil {
		return errResponse(err), nil
	}
	serviceID, err := uuid.Parse(stringArg(args, "service_type_id"))
	if err != nil {
		return errResponse(fmt.Errorf("invalid service_type_id")), nil
	}

	slots, err := r.engine.ListAvailableSlots(ctx, date, serviceID)
	if err != nil {
		return errResponse(err), nil
	}
	list := make([]map[string]any, 0, len(slots))
	for _, slot := range slots {
		list = append(list, map[string]any{
			"start_time": slot.StartTime.String(),
			"end_time":   slot.EndTime.String(),
		})
	}
	return map[string]any{"date": date.Format("2006-01-02"), "slots": list}, nil
}

func (r *ToolRegistry) bookAppointment(ctx context.Context, args map[string]any) (map[string]any, error) {
	patientID, err := uuid.Parse(stringArg(args, "patient_id"))
	if err != nil {
		return errResponse(fmt.Errorf("invalid patient_id")), nil
	}
	serviceID, err := uuid.Parse(stringArg(args, "service_type_id"))
	if err != nil {
		return errResponse(fmt.Errorf("invalid service_type_id")), nil
	}
	date, err := scheduling.ParseDate(stringArg(args, "date"))
	if err != nil {
		return errResponse(err), nil
	}
	start, err := scheduling.ParseTimeOfDay(stringArg(args, "start_time"))
	if err != nil {
		return errResponse(err), nil
	}

	appt, err := r.engine.BookAppointment(ctx, patientID, serviceID, date, start)
	if err != nil {
		r.logs.Record(ctx, ActionLog{
			PatientID:      &patientID,
			UserMessage:    stringArg(args, "start_time"),
			AgentAction:    "book_appointment",
			SystemDecision: "failed",
		})
		return errResponse(err), nil
	}

	r.logs.Record(ctx, ActionLog{
		PatientID:      &patientID,
		UserMessage:    appt.Date.Format("2006-01-02") + " " + appt.StartTime.String(),
		AgentAction:    "book_appointment",
		SystemDecision: "booked",
	})
	return map[string]any{
		"appointment_id": appt.ID.String(),
		"status":         appt.Status,
		"date":           appt.Date.Format("2006-01-02"),
		"start_time":     appt.StartTime.String(),
		"end_time":       appt.EndTime.String(),
	}, nil
}

func (r *ToolRegistry) cancelAppointment(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, err := uuid.Parse(stringArg(args, "appointment_id"))
	if err != nil {
		return errResponse(fmt.Errorf("invalid appointment_id")), nil
	}

	appt, err := r.engine.CancelAppointment(ctx, id)
	if err != nil {
		r.logs.Record(ctx, ActionLog{
			UserMessage:    id.String(),
			AgentAction:    "cancel_appointment",
			SystemDecision: "failed",
		})
		return errResponse(err), nil
	}

	r.logs.Record(ctx, ActionLog{
		PatientID:      &appt.PatientID,
		UserMessage:    id.String(),
		AgentAction:    "cancel_appointment",
		SystemDecision: "cancelled",
	})
	return map[string]any{
		"appointment_id": appt.ID.String(),
		"status":         appt.Status,
	}, nil
}

func (r *ToolRegistry) listAppointments(ctx context.Context, args map[string]any) (map[string]any, error) {
	patientID, err := uuid.Parse(stringArg(args, "patient_id"))
	if err != nil {
		return errResponse(fmt.Errorf("invalid patient_id")), nil
	}

	appts, err := r.engine.ListAppointmentsForPatient(ctx, patientID)
	if err != nil {
		return errResponse(err), nil
	}
	list := make([]map[string]any, 0, len(appts))
	for _, appt := range appts {
		list = append(list, map[string]any{
			"appointment_id": appt.ID.String(),
			"date":           appt.Date.Format("2006-01-02"),
			"start_time":     appt.StartTime.String(),
			"end_time":       appt.EndTime.String(),
			"status":         appt.Status,
		})
	}
	return map[string]any{"appointments": list}, nil
}

func patientResponse(patient *patients.Patient) map[string]any {
	return map[string]any{
		"id":           patient.ID.String(),
		"full_name":    patient.FullName,
		"phone_number": patient.PhoneNumber,
		"email":        patient.Email,
		"is_insured":   patient.IsInsured,
	}
}

func errResponse(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func objectSchema(properties map[string]*genai.Schema, required ...string) *genai.Schema {
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   required,
	}
}
