package domain

import (
	"time"

	"github.com/doctorry/platform/internal/shared/types"
)

// EventType defines types of appointment timeline events
type EventType string

const (
	EventTypeBooked        EventType = "booked"
	EventTypeStatusChanged EventType = "status_changed"
	EventTypeCancelled     EventType = "cancelled"
	EventTypeNotesAdded    EventType = "notes_added"
	EventTypePaid          EventType = "paid"
	EventTypeReminderSent  EventType = "reminder_sent"
)

// AppointmentEvent represents an event in the appointment timeline
type AppointmentEvent struct {
	ID            types.ID       `json:"id"`
	AppointmentID types.ID       `json:"appointment_id"`
	Type          EventType      `json:"type"`
	ActorID       types.ID       `json:"actor_id"`
	Description   string         `json:"description"`
	Data          map[string]any `json:"data,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Event is a domain event for publishing
type Event struct {
	Type             string           `json:"type"`
	AppointmentID    types.ID         `json:"appointment_id"`
	AppointmentEvent AppointmentEvent `json:"appointment_event"`
}
