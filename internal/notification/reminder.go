package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	appointments "github.com/doctorry/platform/internal/appointment/domain"
)

// AppointmentSource is the slice of the scheduling module the reminder
// sweep needs.
type AppointmentSource interface {
	FindConfirmedByDate(ctx context.Context, date time.Time) ([]appointments.Appointment, error)
}

// Reminder sweeps tomorrow's confirmed appointments once a day and pushes
// a reminder to both parties.
type Reminder struct {
	appointments AppointmentSource
	service      *Service
	cron         *cron.Cron
	spec         string
}

// NewReminder creates a reminder job with a cron spec, e.g. "0 18 * * *"
// for a daily evening sweep.
func NewReminder(source AppointmentSource, service *Service, spec string) *Reminder {
	return &Reminder{
		appointments: source,
		service:      service,
		cron:         cron.New(),
		spec:         spec,
	}
}

// Start schedules the sweep
func (r *Reminder) Start() error {
	_, err := r.cron.AddFunc(r.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := r.Sweep(ctx); err != nil {
			log.Printf("reminder sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder sweep: %w", err)
	}

	r.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running sweep
func (r *Reminder) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Sweep pushes reminders for every confirmed appointment tomorrow
func (r *Reminder) Sweep(ctx context.Context) error {
	tomorrow := time.Now().AddDate(0, 0, 1)
	date := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())

	confirmed, err := r.appointments.FindConfirmedByDate(ctx, date)
	if err != nil {
		return err
	}

	for _, appt := range confirmed {
		body := fmt.Sprintf("You have a %s consultation tomorrow at %s.",
			appt.ConsultationType, appt.AppointmentTime)
		data := map[string]any{
			"appointment_id":     appt.ID,
			"appointment_number": appt.AppointmentNumber,
			"appointment_time":   appt.AppointmentTime,
		}

		if err := r.service.NotifyUser(ctx, appt.PatientID, "Appointment reminder", body, data); err != nil {
			log.Printf("failed to remind patient %s: %v", appt.PatientID, err)
		}
		if err := r.service.NotifyUser(ctx, appt.DoctorID, "Appointment reminder", body, data); err != nil {
			log.Printf("failed to remind doctor %s: %v", appt.DoctorID, err)
		}
	}

	return nil
}
