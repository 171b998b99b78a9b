package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/doctorry/platform/internal/appointment/domain"
	"github.com/doctorry/platform/internal/doctor"
	"github.com/doctorry/platform/internal/patient"
	"github.com/doctorry/platform/internal/shared/auth"
	"github.com/doctorry/platform/internal/shared/errors"
	"github.com/doctorry/platform/internal/shared/events"
	"github.com/doctorry/platform/internal/shared/metrics"
	"github.com/doctorry/platform/internal/shared/types"
)

// DoctorDirectory is the slice of the doctor registry the appointment
// module needs.
type DoctorDirectory interface {
	Get(ctx context.Context, id types.ID) (*doctor.Doctor, error)
	ListActiveBySpecialization(ctx context.Context, specialization string) ([]doctor.Doctor, error)
}

// PatientDirectory resolves patient summaries
type PatientDirectory interface {
	Get(ctx context.Context, id types.ID) (*patient.Patient, error)
}

// Handler provides HTTP handlers for the appointment module
type Handler struct {
	repo     domain.Repository
	doctors  DoctorDirectory
	patients PatientDirectory
	bus      events.EventBus

	// injectable for tests
	now func() time.Time
}

// NewHandler creates a new appointment handler
func NewHandler(repo domain.Repository, doctors DoctorDirectory, patients PatientDirectory, bus events.EventBus) *Handler {
	return &Handler{
		repo:     repo,
		doctors:  doctors,
		patients: patients,
		bus:      bus,
		now:      time.Now,
	}
}

// Routes registers the appointment routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/book", h.BookAppointment)
	r.Get("/doctors/{specialization}", h.DoctorsWithSlots)
	r.Get("/my-appointments", h.MyAppointments)
	r.Get("/doctor-appointments", h.DoctorAppointments)

	r.Route("/{appointmentID}", func(r chi.Router) {
		r.Get("/", h.GetAppointment)
		r.Patch("/status", h.UpdateStatus)
		r.Patch("/cancel", h.CancelAppointment)
		r.Patch("/notes", h.AddNotes)
		r.Get("/call", h.GetCallRoom)
	})

	return r
}

// --- Request/Response types ---

type BookRequest struct {
	DoctorID         types.ID                `json:"doctor_id"`
	AppointmentDate  string                  `json:"appointment_date"`
	AppointmentTime  string                  `json:"appointment_time"`
	ConsultationType domain.ConsultationType `json:"consultation_type"`
	Symptoms         string                  `json:"symptoms"`
}

type UpdateStatusRequest struct {
	Status domain.Status `json:"status"`
}

type AddNotesRequest struct {
	Notes        string `json:"notes"`
	Prescription string `json:"prescription"`
}

// DoctorWithSlots is a bookable doctor with the slots still open on the
// requested date.
type DoctorWithSlots struct {
	ID              types.ID `json:"id"`
	Name            string   `json:"name"`
	Specialization  string   `json:"specialization"`
	Qualifications  string   `json:"qualifications,omitempty"`
	ExperienceYears int      `json:"experience_years"`
	ConsultationFee float64  `json:"consultation_fee"`
	AvailableSlots  []string `json:"available_slots"`
}

// PartySummary is an embedded patient or doctor summary
type PartySummary struct {
	ID             types.ID `json:"id"`
	Name           string   `json:"name"`
	Specialization string   `json:"specialization,omitempty"`
}

type AppointmentResponse struct {
	*domain.Appointment
	Doctor  *PartySummary `json:"doctor,omitempty"`
	Patient *PartySummary `json:"patient,omitempty"`
}

type CallRoomResponse struct {
	RoomID           string                  `json:"room_id"`
	ConsultationType domain.ConsultationType `json:"consultation_type"`
	Status           domain.Status           `json:"status"`
}

// --- Handlers ---

// BookAppointment books a slot with a doctor
func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil || user.UserType != auth.UserTypePatient {
		writeError(w, errors.Forbidden("only patients can book appointments"))
		return
	}

	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	date, err := time.Parse("2006-01-02", req.AppointmentDate)
	if err != nil {
		writeError(w, errors.BadRequest("appointment_date must be YYYY-MM-DD"))
		return
	}

	slot, err := domain.NormalizeSlot(req.AppointmentTime)
	if err != nil {
		writeError(w, errors.BadRequest("appointment_time must be an HH:MM label"))
		return
	}

	doc, err := h.doctors.Get(r.Context(), req.DoctorID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !doc.IsActive() {
		writeError(w, errors.NotFound("doctor", req.DoctorID.String()))
		return
	}

	grid := domain.DailySlots(windowsToDomain(doc.Availability), date)
	if !domain.ContainsSlot(grid, slot) {
		writeError(w, errors.BadRequest("slot is not on the doctor's schedule for that day"))
		return
	}
	if !domain.SlotTime(date, slot).After(h.now()) {
		writeError(w, errors.BadRequest("slot is in the past"))
		return
	}

	booked, err := h.repo.BookedSlots(r.Context(), doc.ID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, b := range booked {
		if taken, err := domain.NormalizeSlot(b); err == nil && taken == slot {
			metrics.RecordBookingConflict()
			writeError(w, errors.Conflict("this slot is already booked"))
			return
		}
	}

	appt, err := domain.NewAppointment(user.ID, doc.ID, date, slot, req.ConsultationType, req.Symptoms, doc.ConsultationFee)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	// The slot index is the real guard; a concurrent booking of the same
	// slot fails here with a conflict.
	if err := h.repo.Save(r.Context(), appt); err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.HTTPStatus == http.StatusConflict {
			metrics.RecordBookingConflict()
		}
		writeError(w, err)
		return
	}

	metrics.RecordAppointmentBooked(doc.Specialization)
	h.publishEvents(r.Context(), appt, user)

	writeJSON(w, http.StatusCreated, appt)
}

// DoctorsWithSlots lists active doctors of a specialization with their
// open slots on a date.
func (h *Handler) DoctorsWithSlots(w http.ResponseWriter, r *http.Request) {
	specialization := chi.URLParam(r, "specialization")

	now := h.now()
	date := now
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, errors.BadRequest("date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	doctors, err := h.doctors.ListActiveBySpecialization(r.Context(), specialization)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordSlotQuery(specialization)

	result := make([]DoctorWithSlots, 0, len(doctors))
	for _, doc := range doctors {
		grid := domain.DailySlots(windowsToDomain(doc.Availability), date)

		booked, err := h.repo.BookedSlots(r.Context(), doc.ID, date)
		if err != nil {
			writeError(w, err)
			return
		}

		result = append(result, DoctorWithSlots{
			ID:              doc.ID,
			Name:            doc.FullName(),
			Specialization:  doc.Specialization,
			Qualifications:  doc.Qualifications,
			ExperienceYears: doc.ExperienceYears,
			ConsultationFee: doc.ConsultationFee,
			AvailableSlots:  domain.AvailableSlots(grid, booked, date, now),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"doctors": result,
		"date":    date.Format("2006-01-02"),
	})
}

// MyAppointments lists the authenticated patient's appointments
func (h *Handler) MyAppointments(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil || user.UserType != auth.UserTypePatient {
		writeError(w, errors.Forbidden("patient account required"))
		return
	}

	appointments, total, err := h.repo.FindByPatient(r.Context(), user.ID, listFilterFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": appointments,
		"total":        total,
	})
}

// DoctorAppointments lists the authenticated doctor's appointments
func (h *Handler) DoctorAppointments(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil || user.UserType != auth.UserTypeDoctor {
		writeError(w, errors.Forbidden("doctor account required"))
		return
	}

	appointments, total, err := h.repo.FindByDoctor(r.Context(), user.ID, listFilterFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": appointments,
		"total":        total,
	})
}

// GetAppointment returns an appointment with embedded party summaries
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, _, ok := h.loadForParty(w, r)
	if !ok {
		return
	}

	resp := AppointmentResponse{Appointment: appt}

	if doc, err := h.doctors.Get(r.Context(), appt.DoctorID); err == nil {
		resp.Doctor = &PartySummary{ID: doc.ID, Name: doc.FullName(), Specialization: doc.Specialization}
	}
	if pat, err := h.patients.Get(r.Context(), appt.PatientID); err == nil {
		resp.Patient = &PartySummary{ID: pat.ID, Name: pat.FullName()}
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus applies a status transition
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	appt, user, ok := h.loadForParty(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if !domain.ValidStatus(req.Status) {
		writeError(w, errors.BadRequest("unknown status"))
		return
	}

	from := appt.Status
	if err := appt.TransitionTo(req.Status, user.ID); err != nil {
		writeError(w, transitionError(err))
		return
	}

	if err := h.repo.Update(r.Context(), appt); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordStatusChange(string(from), string(appt.Status))
	if appt.Status == domain.StatusCompleted && appt.CallDuration != nil {
		metrics.RecordCallDuration(*appt.CallDuration)
	}
	h.publishEvents(r.Context(), appt, user)

	writeJSON(w, http.StatusOK, appt)
}

// CancelAppointment cancels a non-terminal appointment and frees the slot
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	appt, user, ok := h.loadForParty(w, r)
	if !ok {
		return
	}

	from := appt.Status
	if err := appt.Cancel(user.ID, "cancelled by "+user.UserType); err != nil {
		writeError(w, transitionError(err))
		return
	}

	if err := h.repo.Update(r.Context(), appt); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordStatusChange(string(from), string(domain.StatusCancelled))
	h.publishEvents(r.Context(), appt, user)

	writeJSON(w, http.StatusOK, appt)
}

// AddNotes records consultation notes and a prescription. Doctor only.
func (h *Handler) AddNotes(w http.ResponseWriter, r *http.Request) {
	appt, user, ok := h.loadForParty(w, r)
	if !ok {
		return
	}
	if user.ID != appt.DoctorID {
		writeError(w, errors.Forbidden("only the doctor can add consultation notes"))
		return
	}

	var req AddNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	appt.AddNotes(req.Notes, req.Prescription, user.ID)

	if err := h.repo.Update(r.Context(), appt); err != nil {
		writeError(w, err)
		return
	}

	h.publishEvents(r.Context(), appt, user)

	writeJSON(w, http.StatusOK, appt)
}

// GetCallRoom returns the call room binding for the parties. The server
// only brokers the identifier; signaling and media stay client-side.
func (h *Handler) GetCallRoom(w http.ResponseWriter, r *http.Request) {
	appt, _, ok := h.loadForParty(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, CallRoomResponse{
		RoomID:           appt.CallRoomID,
		ConsultationType: appt.ConsultationType,
		Status:           appt.Status,
	})
}

// --- Helpers ---

// loadForParty loads the appointment and enforces that the caller is the
// patient or the doctor on it. Admins pass too.
func (h *Handler) loadForParty(w http.ResponseWriter, r *http.Request) (*domain.Appointment, *auth.User, bool) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return nil, nil, false
	}

	id, err := types.ParseID(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid appointment ID"))
		return nil, nil, false
	}

	appt, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, nil, false
	}

	if !appt.IsParty(user.ID) && !user.IsAdmin() {
		writeError(w, errors.Forbidden("no access to this appointment"))
		return nil, nil, false
	}

	return appt, user, true
}

func listFilterFromQuery(r *http.Request) domain.ListFilter {
	filter := domain.ListFilter{
		OrderDesc: r.URL.Query().Get("order") == "desc",
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.Status(s)
		filter.Status = &status
	}
	return filter
}

// transitionError maps a rejected transition to a conflict carrying the
// attempted edge.
func transitionError(err error) error {
	if te, ok := err.(*domain.TransitionError); ok {
		return errors.ConflictWithDetails("status transition not allowed", map[string]string{
			"from": string(te.From),
			"to":   string(te.To),
		})
	}
	return err
}

func windowsToDomain(windows []doctor.AvailabilityWindow) []domain.Window {
	result := make([]domain.Window, 0, len(windows))
	for _, w := range windows {
		result = append(result, domain.Window{
			Weekday: time.Weekday(w.Weekday),
			Start:   w.StartTime,
			End:     w.EndTime,
			Enabled: w.Enabled,
		})
	}
	return result
}

func (h *Handler) publishEvents(ctx context.Context, appt *domain.Appointment, user *auth.User) {
	if h.bus == nil {
		return
	}

	for _, e := range appt.GetDomainEvents() {
		event := events.NewEvent("appointment."+e.Type, "appointment", map[string]any{
			"appointment_id":     appt.ID,
			"appointment_number": appt.AppointmentNumber,
			"patient_id":         appt.PatientID,
			"doctor_id":          appt.DoctorID,
			"event":              e.AppointmentEvent,
		}).WithActor(user.ID, user.UserType)

		h.bus.Publish(ctx, event)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
