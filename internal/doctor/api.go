package doctor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/doctorry/platform/internal/shared/auth"
	"github.com/doctorry/platform/internal/shared/errors"
	"github.com/doctorry/platform/internal/shared/events"
	"github.com/doctorry/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the doctor registry
type Handler struct {
	repo *Repository
	bus  events.EventBus
}

// NewHandler creates a new doctor handler
func NewHandler(repo *Repository, bus events.EventBus) *Handler {
	return &Handler{repo: repo, bus: bus}
}

// Routes registers the doctor routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListDoctors)
	r.Post("/", h.CreateDoctor)
	r.Get("/specializations", h.ListSpecializations)

	r.Route("/{doctorID}", func(r chi.Router) {
		r.Get("/", h.GetDoctor)
		r.Put("/", h.UpdateDoctor)
		r.Put("/availability", h.SetAvailability)
	})

	return r
}

// --- Request types ---

type CreateDoctorRequest struct {
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Specialization  string  `json:"specialization"`
	Qualifications  string  `json:"qualifications"`
	Bio             string  `json:"bio"`
	ExperienceYears int     `json:"experience_years"`
	ConsultationFee float64 `json:"consultation_fee"`
}

type UpdateDoctorRequest struct {
	FirstName       *string  `json:"first_name,omitempty"`
	LastName        *string  `json:"last_name,omitempty"`
	Specialization  *string  `json:"specialization,omitempty"`
	Qualifications  *string  `json:"qualifications,omitempty"`
	Bio             *string  `json:"bio,omitempty"`
	ExperienceYears *int     `json:"experience_years,omitempty"`
	ConsultationFee *float64 `json:"consultation_fee,omitempty"`
	Status          *Status  `json:"status,omitempty"`
}

type SetAvailabilityRequest struct {
	Windows []AvailabilityWindow `json:"windows"`
}

// --- Handlers ---

// ListDoctors lists doctors with optional filters
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Specialization: r.URL.Query().Get("specialization"),
		Search:         r.URL.Query().Get("search"),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		status := Status(s)
		filter.Status = &status
	}

	doctors, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"doctors": doctors,
		"total":   total,
	})
}

// GetDoctor retrieves a doctor profile
func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid doctor ID"))
		return
	}

	d, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// CreateDoctor creates a doctor profile. Admin only: doctors do not
// self-register, they are onboarded.
func (h *Handler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil || !user.IsAdmin() {
		writeError(w, errors.Forbidden("only administrators can create doctors"))
		return
	}

	var req CreateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	details := map[string]string{}
	if req.Email == "" {
		details["email"] = "email is required"
	}
	if len(req.Password) < 8 {
		details["password"] = "password must be at least 8 characters"
	}
	if req.FirstName == "" || req.LastName == "" {
		details["name"] = "first and last name are required"
	}
	if req.Specialization == "" {
		details["specialization"] = "specialization is required"
	}
	if len(details) > 0 {
		writeError(w, errors.Validation("validation failed", details))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	now := time.Now()
	d := &Doctor{
		ID:              types.NewID(),
		DoctorNumber:    GenerateDoctorNumber(),
		Email:           req.Email,
		PasswordHash:    hash,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Specialization:  req.Specialization,
		Qualifications:  req.Qualifications,
		Bio:             req.Bio,
		ExperienceYears: req.ExperienceYears,
		ConsultationFee: req.ConsultationFee,
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.repo.Create(r.Context(), d); err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, "doctor.created", d)

	writeJSON(w, http.StatusCreated, d)
}

// UpdateDoctor updates a doctor profile. Allowed for the doctor themselves
// or an admin.
func (h *Handler) UpdateDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid doctor ID"))
		return
	}

	user := auth.GetUser(r.Context())
	if user == nil || (!user.IsAdmin() && user.ID != id) {
		writeError(w, errors.Forbidden("cannot update another doctor's profile"))
		return
	}

	d, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.FirstName != nil {
		d.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		d.LastName = *req.LastName
	}
	if req.Specialization != nil {
		d.Specialization = *req.Specialization
	}
	if req.Qualifications != nil {
		d.Qualifications = *req.Qualifications
	}
	if req.Bio != nil {
		d.Bio = *req.Bio
	}
	if req.ExperienceYears != nil {
		d.ExperienceYears = *req.ExperienceYears
	}
	if req.ConsultationFee != nil {
		d.ConsultationFee = *req.ConsultationFee
	}
	if req.Status != nil {
		// Only admins can activate or deactivate profiles
		if !user.IsAdmin() {
			writeError(w, errors.Forbidden("only administrators can change doctor status"))
			return
		}
		d.Status = *req.Status
	}

	if err := h.repo.Update(r.Context(), d); err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, "doctor.updated", d)

	writeJSON(w, http.StatusOK, d)
}

// SetAvailability replaces a doctor's weekly availability windows
func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid doctor ID"))
		return
	}

	user := auth.GetUser(r.Context())
	if user == nil || (!user.IsAdmin() && user.ID != id) {
		writeError(w, errors.Forbidden("cannot change another doctor's availability"))
		return
	}

	var req SetAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	for i, win := range req.Windows {
		if win.Weekday < 0 || win.Weekday > 6 {
			writeError(w, errors.BadRequest("weekday must be between 0 (Sunday) and 6 (Saturday)"))
			return
		}
		if !validTimeLabel(win.StartTime) || !validTimeLabel(win.EndTime) {
			writeError(w, errors.BadRequest("window times must be HH:MM labels"))
			return
		}
		if win.StartTime >= win.EndTime {
			writeError(w, errors.BadRequest("window start must be before end"))
			return
		}
		req.Windows[i].DoctorID = id
	}

	if err := h.repo.ReplaceAvailability(r.Context(), id, req.Windows); err != nil {
		writeError(w, err)
		return
	}

	windows, err := h.repo.GetAvailability(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, "doctor.availability_changed", map[string]any{
		"doctor_id": id,
		"windows":   windows,
	})

	writeJSON(w, http.StatusOK, map[string]any{"windows": windows})
}

// ListSpecializations lists the specializations of active doctors
func (h *Handler) ListSpecializations(w http.ResponseWriter, r *http.Request) {
	specs, err := h.repo.Specializations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"specializations": specs})
}

// validTimeLabel checks the zero-padded HH:MM form used for windows
func validTimeLabel(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, c := range []byte{s[0], s[1], s[3], s[4]} {
		if c < '0' || c > '9' {
			return false
		}
	}
	hh := int(s[0]-'0')*10 + int(s[1]-'0')
	mm := int(s[3]-'0')*10 + int(s[4]-'0')
	return hh <= 23 && mm <= 59
}

func (h *Handler) publish(r *http.Request, eventType string, data any) {
	if h.bus == nil {
		return
	}

	event := events.NewEvent(eventType, "doctor", data)
	if user := auth.GetUser(r.Context()); user != nil {
		event = event.WithActor(user.ID, user.UserType)
	}

	h.bus.Publish(r.Context(), event)
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
