package patient

import (
	"fmt"
	"time"

	"github.com/doctorry/platform/internal/shared/types"
)

// Patient represents a registered patient
type Patient struct {
	ID            types.ID `json:"id"`
	PatientNumber string   `json:"patient_number"`
	Email         string   `json:"email"`
	PasswordHash  string   `json:"-"`

	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	BloodGroup  string     `json:"blood_group,omitempty"`
	Allergies   string     `json:"allergies,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the patient's full name
func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// GeneratePatientNumber generates a human-readable patient number.
// Format: PAT-YEAR-SEQUENCE (e.g., PAT-2026-000137)
func GeneratePatientNumber() string {
	year := time.Now().Year()
	seq := time.Now().UnixNano() % 1000000
	return fmt.Sprintf("PAT-%d-%06d", year, seq)
}
