package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/doctorry/platform/internal/shared/events"
	"github.com/doctorry/platform/internal/shared/types"
)

// Subscriber turns appointment events into push notifications for the
// other party.
type Subscriber struct {
	bus     events.EventBus
	service *Service
}

// NewSubscriber creates a new notification subscriber
func NewSubscriber(bus events.EventBus, service *Service) *Subscriber {
	return &Subscriber{bus: bus, service: service}
}

// Start subscribes to appointment events
func (s *Subscriber) Start(ctx context.Context) error {
	return s.bus.Subscribe(ctx, "appointment.*", "notification-service", s.handleEvent)
}

// eventPayload is the shape appointment handlers publish
type eventPayload struct {
	AppointmentID     types.ID `json:"appointment_id"`
	AppointmentNumber string   `json:"appointment_number"`
	PatientID         types.ID `json:"patient_id"`
	DoctorID          types.ID `json:"doctor_id"`
}

func (s *Subscriber) handleEvent(ctx context.Context, event events.Event) error {
	var payload eventPayload
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Printf("notification subscriber: unexpected event payload for %s: %v", event.Type, err)
		return nil
	}

	subject, body := messageFor(event.Type, payload.AppointmentNumber)
	if subject == "" {
		return nil
	}

	// The actor already knows what they did; notify the other party.
	// Users with no push subscriptions are skipped by the fan-out.
	recipient := payload.PatientID
	if event.ActorID == payload.PatientID {
		recipient = payload.DoctorID
	}
	if recipient.IsZero() {
		return nil
	}

	return s.service.NotifyUser(ctx, recipient, subject, body, map[string]any{
		"appointment_id":     payload.AppointmentID,
		"appointment_number": payload.AppointmentNumber,
		"event_type":         event.Type,
	})
}

func messageFor(eventType, appointmentNumber string) (subject, body string) {
	switch eventType {
	case "appointment.booked":
		return "Appointment booked",
			fmt.Sprintf("Appointment %s is confirmed.", appointmentNumber)
	case "appointment.cancelled":
		return "Appointment cancelled",
			fmt.Sprintf("Appointment %s was cancelled.", appointmentNumber)
	case "appointment.status_changed":
		return "Appointment updated",
			fmt.Sprintf("Appointment %s changed status.", appointmentNumber)
	default:
		return "", ""
	}
}
