package doctor

import (
	"fmt"
	"time"

	"github.com/doctorry/platform/internal/shared/types"
)

// Status defines the status of a doctor profile
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Doctor represents a practicing doctor on the platform
type Doctor struct {
	ID           types.ID `json:"id"`
	DoctorNumber string   `json:"doctor_number"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"-"`

	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Specialization  string  `json:"specialization"`
	Qualifications  string  `json:"qualifications,omitempty"`
	Bio             string  `json:"bio,omitempty"`
	ExperienceYears int     `json:"experience_years"`
	ConsultationFee float64 `json:"consultation_fee"`

	Status Status `json:"status"`

	// Set for profiles imported from a partner hospital system
	SourceSystem string `json:"source_system,omitempty"`
	SourceCode   string `json:"source_code,omitempty"`

	Availability []AvailabilityWindow `json:"availability,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the doctor's full name
func (d Doctor) FullName() string {
	return d.FirstName + " " + d.LastName
}

// IsActive reports whether the doctor can be booked
func (d Doctor) IsActive() bool {
	return d.Status == StatusActive
}

// AvailabilityWindow is a weekly consultation window.
// Weekday follows time.Weekday numbering (0 = Sunday).
type AvailabilityWindow struct {
	ID        types.ID `json:"id"`
	DoctorID  types.ID `json:"doctor_id"`
	Weekday   int      `json:"weekday"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Enabled   bool     `json:"enabled"`
}

// GenerateDoctorNumber generates a human-readable doctor number.
// Format: DOC-YEAR-SEQUENCE (e.g., DOC-2026-000042)
func GenerateDoctorNumber() string {
	year := time.Now().Year()
	seq := time.Now().UnixNano() % 1000000
	return fmt.Sprintf("DOC-%d-%06d", year, seq)
}
