package patient

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/doctorry/platform/internal/shared/auth"
	"github.com/doctorry/platform/internal/shared/errors"
	"github.com/doctorry/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the patient registry
type Handler struct {
	repo *Repository
}

// NewHandler creates a new patient handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the patient routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListPatients)
	r.Get("/me", h.GetOwnProfile)

	r.Route("/{patientID}", func(r chi.Router) {
		r.Get("/", h.GetPatient)
		r.Put("/", h.UpdatePatient)
	})

	return r
}

type UpdatePatientRequest struct {
	FirstName   *string    `json:"first_name,omitempty"`
	LastName    *string    `json:"last_name,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Gender      *string    `json:"gender,omitempty"`
	BloodGroup  *string    `json:"blood_group,omitempty"`
	Allergies   *string    `json:"allergies,omitempty"`
}

// ListPatients lists patients. Admin only.
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil || !user.IsAdmin() {
		writeError(w, errors.Forbidden("only administrators can list patients"))
		return
	}

	patients, total, err := h.repo.List(r.Context(), ListFilter{
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patients": patients,
		"total":    total,
	})
}

// GetOwnProfile returns the authenticated patient's profile
func (h *Handler) GetOwnProfile(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil || user.UserType != auth.UserTypePatient {
		writeError(w, errors.Forbidden("patient account required"))
		return
	}

	p, err := h.repo.Get(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// GetPatient retrieves a patient. Allowed for the patient themselves,
// doctors and admins.
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	if user.ID != id && user.UserType != auth.UserTypeDoctor && !user.IsAdmin() {
		writeError(w, errors.Forbidden("no access to this patient"))
		return
	}

	p, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// UpdatePatient updates a patient profile. Self or admin.
func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	user := auth.GetUser(r.Context())
	if user == nil || (user.ID != id && !user.IsAdmin()) {
		writeError(w, errors.Forbidden("cannot update another patient's profile"))
		return
	}

	p, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.FirstName != nil {
		p.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		p.LastName = *req.LastName
	}
	if req.DateOfBirth != nil {
		p.DateOfBirth = req.DateOfBirth
	}
	if req.Phone != nil {
		p.Phone = *req.Phone
	}
	if req.Gender != nil {
		p.Gender = *req.Gender
	}
	if req.BloodGroup != nil {
		p.BloodGroup = *req.BloodGroup
	}
	if req.Allergies != nil {
		p.Allergies = *req.Allergies
	}

	if err := h.repo.Update(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
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
