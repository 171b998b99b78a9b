package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/doctorry/platform/internal/shared/types"
)

// TestNewAppointment tests booking a new appointment
func TestNewAppointment(t *testing.T) {
	patientID := types.NewID()
	doctorID := types.NewID()
	date := time.Date(2026, 9, 15, 14, 30, 0, 0, time.UTC)

	a, err := NewAppointment(patientID, doctorID, date, "10:00", ConsultationVideo, "persistent cough", 45.0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if a.ID.IsZero() {
		t.Error("Expected non-zero ID")
	}
	if a.Status != StatusConfirmed {
		t.Errorf("Expected status %s, got %s", StatusConfirmed, a.Status)
	}
	if a.AppointmentTime != "10:00" {
		t.Errorf("Expected time 10:00, got %s", a.AppointmentTime)
	}
	if !a.AppointmentDate.Equal(time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected date truncated to midnight, got %v", a.AppointmentDate)
	}
	if a.Duration != DefaultDuration {
		t.Errorf("Expected duration %d, got %d", DefaultDuration, a.Duration)
	}
	if a.CallRoomID == "" {
		t.Error("Expected call room to be assigned at booking")
	}
	if !strings.HasPrefix(a.CallRoomID, "room-") {
		t.Errorf("Expected room- prefix, got %s", a.CallRoomID)
	}
	if a.PaymentStatus != PaymentPending {
		t.Errorf("Expected payment status %s, got %s", PaymentPending, a.PaymentStatus)
	}
	if a.Amount != 45.0 {
		t.Errorf("Expected amount 45.0, got %f", a.Amount)
	}
	if !strings.HasPrefix(a.AppointmentNumber, "APT-") {
		t.Errorf("Expected APT- prefix, got %s", a.AppointmentNumber)
	}

	// Should have a booking event
	if len(a.Events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(a.Events))
	}
	if a.Events[0].Type != EventTypeBooked {
		t.Errorf("Expected event type %s, got %s", EventTypeBooked, a.Events[0].Type)
	}
	if len(a.GetDomainEvents()) != 1 {
		t.Error("Expected 1 pending domain event")
	}
	if len(a.GetDomainEvents()) != 0 {
		t.Error("Expected domain events to be cleared after retrieval")
	}
}

// TestNewAppointmentValidation tests validation when booking
func TestNewAppointmentValidation(t *testing.T) {
	patientID := types.NewID()
	doctorID := types.NewID()
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name             string
		patientID        types.ID
		doctorID         types.ID
		slot             string
		consultationType ConsultationType
		expectError      bool
	}{
		{"Zero patient ID", types.ID(""), doctorID, "10:00", ConsultationVideo, true},
		{"Zero doctor ID", patientID, types.ID(""), "10:00", ConsultationVideo, true},
		{"Invalid slot", patientID, doctorID, "not-a-slot", ConsultationVideo, true},
		{"Unknown consultation type", patientID, doctorID, "10:00", ConsultationType("telepathy"), true},
		{"Unpadded slot", patientID, doctorID, "9:30", ConsultationVideo, false},
		{"Empty type defaults to video", patientID, doctorID, "10:00", "", false},
		{"Valid booking", patientID, doctorID, "10:00", ConsultationAudio, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAppointment(tt.patientID, tt.doctorID, date, tt.slot, tt.consultationType, "", 30.0)

			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
			if err == nil && tt.consultationType == "" && a.ConsultationType != ConsultationVideo {
				t.Errorf("Expected default type video, got %s", a.ConsultationType)
			}
		})
	}
}

// TestStatusTransitions tests the full allowed lifecycle
func TestStatusTransitions(t *testing.T) {
	a := bookTestAppointment(t)
	doctorID := a.DoctorID

	// confirmed -> in_progress
	if err := a.TransitionTo(StatusInProgress, doctorID); err != nil {
		t.Fatalf("Failed to start consultation: %v", err)
	}
	if a.Status != StatusInProgress {
		t.Errorf("Expected status %s, got %s", StatusInProgress, a.Status)
	}
	if a.CallStartedAt == nil {
		t.Error("Expected CallStartedAt to be stamped when consultation starts")
	}

	// in_progress -> completed
	if err := a.TransitionTo(StatusCompleted, doctorID); err != nil {
		t.Fatalf("Failed to complete consultation: %v", err)
	}
	if a.Status != StatusCompleted {
		t.Errorf("Expected status %s, got %s", StatusCompleted, a.Status)
	}
	if a.CallEndedAt == nil {
		t.Error("Expected CallEndedAt to be stamped on completion")
	}
	if a.CallDuration == nil {
		t.Fatal("Expected CallDuration to be derived on completion")
	}
	if *a.CallDuration < 0 {
		t.Errorf("Expected non-negative duration, got %d", *a.CallDuration)
	}
}

// TestInvalidTransitions tests that the transition table is enforced
func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		ok   bool
	}{
		{"scheduled to confirmed", StatusScheduled, StatusConfirmed, true},
		{"scheduled to in_progress", StatusScheduled, StatusInProgress, false},
		{"scheduled to completed", StatusScheduled, StatusCompleted, false},
		{"confirmed to in_progress", StatusConfirmed, StatusInProgress, true},
		{"confirmed to completed", StatusConfirmed, StatusCompleted, false},
		{"confirmed to scheduled", StatusConfirmed, StatusScheduled, false},
		{"in_progress to completed", StatusInProgress, StatusCompleted, true},
		{"in_progress to confirmed", StatusInProgress, StatusConfirmed, false},
		{"completed to in_progress", StatusCompleted, StatusInProgress, false},
		{"scheduled to cancelled", StatusScheduled, StatusCancelled, true},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true},
		{"in_progress to cancelled", StatusInProgress, StatusCancelled, true},
		{"completed to cancelled", StatusCompleted, StatusCancelled, false},
		{"cancelled to cancelled", StatusCancelled, StatusCancelled, false},
		{"no_show to cancelled", StatusNoShow, StatusCancelled, false},
		{"confirmed to no_show", StatusConfirmed, StatusNoShow, true},
		{"completed to no_show", StatusCompleted, StatusNoShow, false},
		{"cancelled to in_progress", StatusCancelled, StatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.ok {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
			}
		})
	}
}

// TestTransitionToRejectsIllegalEdge tests the error returned on a bad edge
func TestTransitionToRejectsIllegalEdge(t *testing.T) {
	a := bookTestAppointment(t)

	err := a.TransitionTo(StatusCompleted, a.DoctorID)
	if err == nil {
		t.Fatal("Expected error when skipping in_progress")
	}

	var transErr *TransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("Expected TransitionError, got %T", err)
	}
	if transErr.From != StatusConfirmed || transErr.To != StatusCompleted {
		t.Errorf("Unexpected edge in error: %s -> %s", transErr.From, transErr.To)
	}

	if err := a.TransitionTo(Status("resurrected"), a.DoctorID); err == nil {
		t.Error("Expected error for unknown status")
	}
}

// TestCancel tests cancellation rules
func TestCancel(t *testing.T) {
	t.Run("Cancel confirmed appointment", func(t *testing.T) {
		a := bookTestAppointment(t)

		if err := a.Cancel(a.PatientID, "feeling better"); err != nil {
			t.Fatalf("Failed to cancel: %v", err)
		}
		if a.Status != StatusCancelled {
			t.Errorf("Expected status %s, got %s", StatusCancelled, a.Status)
		}
		if a.CancelledAt == nil {
			t.Error("Expected CancelledAt to be set")
		}
	})

	t.Run("Cannot cancel completed appointment", func(t *testing.T) {
		a := bookTestAppointment(t)
		a.TransitionTo(StatusInProgress, a.DoctorID)
		a.TransitionTo(StatusCompleted, a.DoctorID)

		if err := a.Cancel(a.PatientID, "too late"); err == nil {
			t.Error("Expected error when cancelling completed appointment")
		}
	})

	t.Run("Cannot cancel twice", func(t *testing.T) {
		a := bookTestAppointment(t)
		a.Cancel(a.PatientID, "first")

		if err := a.Cancel(a.PatientID, "second"); err == nil {
			t.Error("Expected error when cancelling already cancelled appointment")
		}
	})
}

// TestCallDurationWithoutStart tests that completion without a recorded
// call start leaves the duration unset.
func TestCallDurationWithoutStart(t *testing.T) {
	a := bookTestAppointment(t)

	// Force the edge directly; in_progress normally stamps CallStartedAt,
	// so simulate an appointment whose start was never recorded.
	a.Status = StatusInProgress
	a.CallStartedAt = nil

	if err := a.TransitionTo(StatusCompleted, a.DoctorID); err != nil {
		t.Fatalf("Failed to complete: %v", err)
	}
	if a.CallDuration != nil {
		t.Errorf("Expected no duration without a call start, got %d", *a.CallDuration)
	}
	if a.CallEndedAt == nil {
		t.Error("Expected CallEndedAt to be stamped regardless")
	}
}

// TestCallDurationRounding tests duration derivation from the call window
func TestCallDurationRounding(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"Half hour", 30 * time.Minute, 30},
		{"Rounds up", 29*time.Minute + 45*time.Second, 30},
		{"Rounds down", 10*time.Minute + 20*time.Second, 10},
		{"Sub-minute call", 20 * time.Second, 0},
		{"Clock skew clamps to zero", -2 * time.Minute, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := bookTestAppointment(t)
			a.Status = StatusInProgress
			started := time.Now().Add(-tt.elapsed)
			a.CallStartedAt = &started

			if err := a.TransitionTo(StatusCompleted, a.DoctorID); err != nil {
				t.Fatalf("Failed to complete: %v", err)
			}
			if a.CallDuration == nil {
				t.Fatal("Expected duration to be set")
			}
			if *a.CallDuration != tt.want {
				t.Errorf("Expected duration %d, got %d", tt.want, *a.CallDuration)
			}
		})
	}
}

// TestNotesAndPayment tests notes and payment bookkeeping
func TestNotesAndPayment(t *testing.T) {
	a := bookTestAppointment(t)

	a.AddNotes("viral pharyngitis, rest and fluids", "paracetamol 500mg", a.DoctorID)
	if a.Notes == "" || a.Prescription == "" {
		t.Error("Expected notes and prescription to be recorded")
	}

	if err := a.MarkPaid(a.PatientID); err != nil {
		t.Fatalf("Failed to mark paid: %v", err)
	}
	if a.PaymentStatus != PaymentPaid {
		t.Errorf("Expected payment status %s, got %s", PaymentPaid, a.PaymentStatus)
	}
	if err := a.MarkPaid(a.PatientID); err == nil {
		t.Error("Expected error when paying twice")
	}
}

// TestIsParty tests party checks
func TestIsParty(t *testing.T) {
	a := bookTestAppointment(t)

	if !a.IsParty(a.PatientID) {
		t.Error("Expected patient to be a party")
	}
	if !a.IsParty(a.DoctorID) {
		t.Error("Expected doctor to be a party")
	}
	if a.IsParty(types.NewID()) {
		t.Error("Expected stranger not to be a party")
	}
}

func bookTestAppointment(t *testing.T) *Appointment {
	t.Helper()

	a, err := NewAppointment(
		types.NewID(),
		types.NewID(),
		time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		"10:00",
		ConsultationVideo,
		"headache",
		40.0,
	)
	if err != nil {
		t.Fatalf("Failed to book appointment: %v", err)
	}
	a.GetDomainEvents() // drain booking event
	return a
}
