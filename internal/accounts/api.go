package accounts

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/doctorry/platform/internal/doctor"
	"github.com/doctorry/platform/internal/patient"
	"github.com/doctorry/platform/internal/shared/auth"
	"github.com/doctorry/platform/internal/shared/config"
	"github.com/doctorry/platform/internal/shared/errors"
	"github.com/doctorry/platform/internal/shared/events"
	"github.com/doctorry/platform/internal/shared/types"
)

// Handler provides registration and login endpoints
type Handler struct {
	cfg      config.AuthConfig
	patients *patient.Repository
	doctors  *doctor.Repository
	bus      events.EventBus
}

// NewHandler creates a new accounts handler
func NewHandler(cfg config.AuthConfig, patients *patient.Repository, doctors *doctor.Repository, bus events.EventBus) *Handler {
	return &Handler{cfg: cfg, patients: patients, doctors: doctors, bus: bus}
}

// Routes registers the auth routes. These are mounted outside the JWT
// middleware.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/patients/register", h.RegisterPatient)
	r.Post("/login", h.Login)

	return r
}

type RegisterPatientRequest struct {
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Phone       string     `json:"phone"`
	Gender      string     `json:"gender"`
	BloodGroup  string     `json:"blood_group"`
	Allergies   string     `json:"allergies"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"user_type"` // patient or doctor
}

type AuthResponse struct {
	Token    string   `json:"token"`
	UserID   types.ID `json:"user_id"`
	UserType string   `json:"user_type"`
	Name     string   `json:"name"`
}

// RegisterPatient creates a patient account and logs it in
func (h *Handler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	details := map[string]string{}
	if !strings.Contains(req.Email, "@") {
		details["email"] = "a valid email is required"
	}
	if len(req.Password) < 8 {
		details["password"] = "password must be at least 8 characters"
	}
	if req.FirstName == "" || req.LastName == "" {
		details["name"] = "first and last name are required"
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
	p := &patient.Patient{
		ID:            types.NewID(),
		PatientNumber: patient.GeneratePatientNumber(),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:  hash,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		DateOfBirth:   req.DateOfBirth,
		Phone:         req.Phone,
		Gender:        req.Gender,
		BloodGroup:    req.BloodGroup,
		Allergies:     req.Allergies,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.patients.Create(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}

	token, err := auth.IssueToken(h.cfg, p.ID, auth.UserTypePatient, p.FullName(), nil)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	h.publish(r, "auth.registered", p.ID, auth.UserTypePatient)

	writeJSON(w, http.StatusCreated, AuthResponse{
		Token:    token,
		UserID:   p.ID,
		UserType: auth.UserTypePatient,
		Name:     p.FullName(),
	})
}

// Login authenticates a patient or doctor. Failures are deliberately
// indistinguishable: callers cannot probe which emails exist.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.UserType == "" {
		req.UserType = auth.UserTypePatient
	}

	var (
		userID types.ID
		name   string
		hash   string
	)

	switch req.UserType {
	case auth.UserTypePatient:
		p, err := h.patients.GetByEmail(r.Context(), req.Email)
		if err != nil {
			writeError(w, errors.Unauthorized("invalid credentials"))
			return
		}
		userID, name, hash = p.ID, p.FullName(), p.PasswordHash

	case auth.UserTypeDoctor:
		d, err := h.doctors.GetByEmail(r.Context(), req.Email)
		if err != nil {
			writeError(w, errors.Unauthorized("invalid credentials"))
			return
		}
		if !d.IsActive() {
			writeError(w, errors.Unauthorized("invalid credentials"))
			return
		}
		userID, name, hash = d.ID, d.FullName(), d.PasswordHash

	default:
		writeError(w, errors.BadRequest("user_type must be patient or doctor"))
		return
	}

	if !auth.CheckPassword(hash, req.Password) {
		h.publish(r, "auth.login_failed", userID, req.UserType)
		writeError(w, errors.Unauthorized("invalid credentials"))
		return
	}

	token, err := auth.IssueToken(h.cfg, userID, req.UserType, name, nil)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	h.publish(r, "auth.login", userID, req.UserType)

	writeJSON(w, http.StatusOK, AuthResponse{
		Token:    token,
		UserID:   userID,
		UserType: req.UserType,
		Name:     name,
	})
}

func (h *Handler) publish(r *http.Request, eventType string, userID types.ID, userType string) {
	if h.bus == nil {
		return
	}

	event := events.NewEvent(eventType, "accounts", map[string]any{
		"user_id":   userID,
		"user_type": userType,
	}).WithActor(userID, userType)

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
