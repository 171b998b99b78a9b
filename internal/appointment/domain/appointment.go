package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/doctorry/platform/internal/shared/types"
)

// Status defines the status of an appointment
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// ConsultationType defines how the consultation is held
type ConsultationType string

const (
	ConsultationVideo ConsultationType = "video"
	ConsultationAudio ConsultationType = "audio"
	ConsultationChat  ConsultationType = "chat"
)

// PaymentStatus defines the payment state of an appointment
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// DefaultDuration is the consultation length in minutes
const DefaultDuration = 30

// transitions is the allowed forward edge for each status. Cancelled and
// no_show are handled separately: they are reachable from any non-terminal
// state.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed},
	StatusConfirmed:  {StatusInProgress},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusNoShow:     {},
}

// ValidStatus reports whether s is a known appointment status
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// CanTransition reports whether the edge from -> to is allowed
func CanTransition(from, to Status) bool {
	if to == StatusCancelled || to == StatusNoShow {
		return !from.IsTerminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Appointment is the aggregate root for consultation scheduling
type Appointment struct {
	ID                types.ID `json:"id"`
	AppointmentNumber string   `json:"appointment_number"`

	PatientID types.ID `json:"patient_id"`
	DoctorID  types.ID `json:"doctor_id"`

	AppointmentDate time.Time `json:"appointment_date"`
	AppointmentTime string    `json:"appointment_time"`
	Duration        int       `json:"duration"`

	Status           Status           `json:"status"`
	ConsultationType ConsultationType `json:"consultation_type"`

	Symptoms     string `json:"symptoms,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Prescription string `json:"prescription,omitempty"`

	// Video call binding
	CallRoomID    string     `json:"call_room_id"`
	CallStartedAt *time.Time `json:"call_started_at,omitempty"`
	CallEndedAt   *time.Time `json:"call_ended_at,omitempty"`
	CallDuration  *int       `json:"call_duration,omitempty"`

	PaymentStatus PaymentStatus `json:"payment_status"`
	Amount        float64       `json:"amount"`

	Events []AppointmentEvent `json:"events,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	// Domain events (not persisted, published after save)
	domainEvents []Event
}

// NewAppointment books a new appointment. Booking confirms immediately:
// there is no separate confirmation step in the patient flow, so the
// aggregate starts at confirmed with the booked slot and a fresh call room.
func NewAppointment(
	patientID, doctorID types.ID,
	date time.Time,
	slot string,
	consultationType ConsultationType,
	symptoms string,
	fee float64,
) (*Appointment, error) {
	if patientID.IsZero() {
		return nil, fmt.Errorf("patient is required")
	}
	if doctorID.IsZero() {
		return nil, fmt.Errorf("doctor is required")
	}

	normalized, err := NormalizeSlot(slot)
	if err != nil {
		return nil, err
	}

	if consultationType == "" {
		consultationType = ConsultationVideo
	}
	switch consultationType {
	case ConsultationVideo, ConsultationAudio, ConsultationChat:
	default:
		return nil, fmt.Errorf("unknown consultation type: %s", consultationType)
	}

	now := time.Now()
	a := &Appointment{
		ID:                types.NewID(),
		AppointmentNumber: generateAppointmentNumber(),
		PatientID:         patientID,
		DoctorID:          doctorID,
		AppointmentDate:   truncateToDate(date),
		AppointmentTime:   normalized,
		Duration:          DefaultDuration,
		Status:            StatusConfirmed,
		ConsultationType:  consultationType,
		Symptoms:          symptoms,
		CallRoomID:        generateCallRoomID(),
		PaymentStatus:     PaymentPending,
		Amount:            fee,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	a.addEvent(EventTypeBooked, patientID, "Appointment booked", map[string]any{
		"doctor_id": doctorID,
		"date":      a.AppointmentDate.Format("2006-01-02"),
		"time":      a.AppointmentTime,
	})

	return a, nil
}

// TransitionTo moves the appointment to a new status, enforcing the
// transition table and applying call side effects.
func (a *Appointment) TransitionTo(to Status, actorID types.ID) error {
	if !ValidStatus(to) {
		return fmt.Errorf("unknown status: %s", to)
	}
	if !CanTransition(a.Status, to) {
		return &TransitionError{From: a.Status, To: to}
	}

	now := time.Now()
	from := a.Status
	a.Status = to
	a.UpdatedAt = now

	switch to {
	case StatusInProgress:
		if a.CallStartedAt == nil {
			a.CallStartedAt = &now
		}
	case StatusCompleted:
		a.CallEndedAt = &now
		if a.CallStartedAt != nil {
			minutes := int(math.Round(now.Sub(*a.CallStartedAt).Minutes()))
			if minutes < 0 {
				minutes = 0
			}
			a.CallDuration = &minutes
		}
	case StatusCancelled:
		a.CancelledAt = &now
	}

	a.addEvent(EventTypeStatusChanged, actorID, fmt.Sprintf("Status changed from %s to %s", from, to), map[string]any{
		"old_status": from,
		"new_status": to,
	})

	return nil
}

// Cancel cancels a non-terminal appointment
func (a *Appointment) Cancel(actorID types.ID, reason string) error {
	if a.Status.IsTerminal() {
		return &TransitionError{From: a.Status, To: StatusCancelled}
	}

	now := time.Now()
	from := a.Status
	a.Status = StatusCancelled
	a.CancelledAt = &now
	a.UpdatedAt = now

	a.addEvent(EventTypeCancelled, actorID, reason, map[string]any{
		"old_status": from,
	})

	return nil
}

// AddNotes sets the doctor's consultation notes and prescription
func (a *Appointment) AddNotes(notes, prescription string, actorID types.ID) {
	a.Notes = notes
	a.Prescription = prescription
	a.UpdatedAt = time.Now()

	a.addEvent(EventTypeNotesAdded, actorID, "Consultation notes added", nil)
}

// MarkPaid records a successful payment
func (a *Appointment) MarkPaid(actorID types.ID) error {
	if a.PaymentStatus == PaymentPaid {
		return fmt.Errorf("appointment is already paid")
	}
	a.PaymentStatus = PaymentPaid
	a.UpdatedAt = time.Now()

	a.addEvent(EventTypePaid, actorID, "Payment received", map[string]any{
		"amount": a.Amount,
	})
	return nil
}

// IsParty reports whether userID is the patient or the doctor on this
// appointment.
func (a *Appointment) IsParty(userID types.ID) bool {
	return userID == a.PatientID || userID == a.DoctorID
}

// GetDomainEvents returns and clears pending domain events
func (a *Appointment) GetDomainEvents() []Event {
	events := a.domainEvents
	a.domainEvents = nil
	return events
}

// addEvent appends a timeline event and queues it for publishing
func (a *Appointment) addEvent(eventType EventType, actorID types.ID, description string, data map[string]any) {
	event := AppointmentEvent{
		ID:            types.NewID(),
		AppointmentID: a.ID,
		Type:          eventType,
		ActorID:       actorID,
		Description:   description,
		Data:          data,
		Timestamp:     time.Now(),
	}

	a.Events = append(a.Events, event)
	a.domainEvents = append(a.domainEvents, Event{
		Type:             string(eventType),
		AppointmentID:    a.ID,
		AppointmentEvent: event,
	})
}

// TransitionError reports a rejected status transition
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition appointment from %s to %s", e.From, e.To)
}

// generateAppointmentNumber generates a human-readable appointment number.
// Format: APT-YEAR-SEQUENCE (e.g., APT-2026-000001)
func generateAppointmentNumber() string {
	year := time.Now().Year()
	seq := time.Now().UnixNano() % 1000000
	return fmt.Sprintf("APT-%d-%06d", year, seq)
}

// generateCallRoomID generates a room identifier for the video call
func generateCallRoomID() string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("room-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("room-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}

// truncateToDate strips the time-of-day component
func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
