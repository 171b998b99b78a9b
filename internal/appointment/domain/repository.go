package domain

import (
	"context"
	"time"

	"github.com/doctorry/platform/internal/shared/types"
)

// Repository defines the interface for appointment persistence
type Repository interface {
	// Save inserts the appointment. The insert is guarded by the slot
	// uniqueness constraint; a taken slot returns a conflict error.
	Save(ctx context.Context, a *Appointment) error
	FindByID(ctx context.Context, id types.ID) (*Appointment, error)
	FindByNumber(ctx context.Context, appointmentNumber string) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error

	// Query operations
	FindByPatient(ctx context.Context, patientID types.ID, filter ListFilter) ([]Appointment, int, error)
	FindByDoctor(ctx context.Context, doctorID types.ID, filter ListFilter) ([]Appointment, int, error)

	// BookedSlots returns the normalized slot labels of non-cancelled
	// appointments for a doctor on a date.
	BookedSlots(ctx context.Context, doctorID types.ID, date time.Time) ([]string, error)

	// FindConfirmedByDate returns confirmed appointments on a date, for
	// reminder sweeps.
	FindConfirmedByDate(ctx context.Context, date time.Time) ([]Appointment, error)

	// Event operations
	AddEvent(ctx context.Context, appointmentID types.ID, e *AppointmentEvent) error
	GetEvents(ctx context.Context, appointmentID types.ID, limit, offset int) ([]AppointmentEvent, error)
}

// ListFilter defines filters for listing appointments
type ListFilter struct {
	Status    *Status    `json:"status,omitempty"`
	DateFrom  *time.Time `json:"date_from,omitempty"`
	DateTo    *time.Time `json:"date_to,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
	OrderDesc bool       `json:"order_desc,omitempty"`
}
