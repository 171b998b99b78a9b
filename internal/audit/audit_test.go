package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/doctorry/platform/internal/shared/events"
	"github.com/doctorry/platform/internal/shared/types"
)

// TestNewEntry tests audit entry creation and hashing
func TestNewEntry(t *testing.T) {
	entry := NewEntry(
		ActorTypePatient,
		"patient-1",
		"appointment.booked",
		"appointment",
		"appt-1",
		map[string]any{"slot": "10:00"},
		"",
	)

	if entry.ID.IsZero() {
		t.Error("Expected non-zero ID")
	}
	if entry.Hash == "" {
		t.Error("Expected hash to be computed")
	}
	if len(entry.Hash) != 64 {
		t.Errorf("Expected hex SHA-256 hash, got length %d", len(entry.Hash))
	}
	if !entry.VerifyHash() {
		t.Error("Expected a fresh entry to verify")
	}
	if entry.Timestamp.Location() != time.UTC {
		t.Error("Expected timestamps in UTC")
	}
}

// TestVerifyHashDetectsTampering tests that any mutation breaks the hash
func TestVerifyHashDetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Entry)
	}{
		{"Action changed", func(e *Entry) { e.Action = "appointment.cancelled" }},
		{"Actor changed", func(e *Entry) { e.ActorID = "someone-else" }},
		{"Actor type changed", func(e *Entry) { e.ActorType = ActorTypeAdmin }},
		{"Resource changed", func(e *Entry) { e.ResourceID = "appt-2" }},
		{"Changes edited", func(e *Entry) { e.Changes["slot"] = "11:00" }},
		{"Timestamp shifted", func(e *Entry) { e.Timestamp = e.Timestamp.Add(time.Second) }},
		{"Chain link swapped", func(e *Entry) { e.PrevHash = strings.Repeat("0", 64) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := NewEntry(
				ActorTypePatient,
				"patient-1",
				"appointment.booked",
				"appointment",
				"appt-1",
				map[string]any{"slot": "10:00"},
				"prev-hash",
			)
			if !entry.VerifyHash() {
				t.Fatal("Entry should verify before tampering")
			}

			tt.mutate(entry)
			if entry.VerifyHash() {
				t.Error("Expected tampered entry to fail verification")
			}
		})
	}
}

// TestHashChaining tests that each entry commits to its predecessor
func TestHashChaining(t *testing.T) {
	first := NewEntry(ActorTypeSystem, "", "auth.login", "auth", "", nil, "")
	second := NewEntry(ActorTypeSystem, "", "auth.login", "auth", "", nil, first.Hash)

	if second.PrevHash != first.Hash {
		t.Error("Expected second entry to link to first")
	}
	if second.Hash == first.Hash {
		t.Error("Expected distinct hashes")
	}

	// Relinking to a different predecessor invalidates the hash
	second.PrevHash = ""
	if second.VerifyHash() {
		t.Error("Expected broken link to fail verification")
	}
}

// TestCanonicalJSON tests deterministic serialization
func TestCanonicalJSON(t *testing.T) {
	a, err := canonicalJSON(map[string]any{"b": 2, "a": 1, "c": []any{"x", map[string]any{"z": 1, "y": 2}}})
	if err != nil {
		t.Fatalf("canonicalJSON failed: %v", err)
	}

	want := `{"a":1,"b":2,"c":["x",{"y":2,"z":1}]}`
	if string(a) != want {
		t.Errorf("canonicalJSON = %s, want %s", a, want)
	}

	// Same data built in a different order serializes identically
	b, err := canonicalJSON(map[string]any{"c": []any{"x", map[string]any{"y": 2, "z": 1}}, "a": 1, "b": 2})
	if err != nil {
		t.Fatalf("canonicalJSON failed: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("Expected identical canonical output, got %s vs %s", a, b)
	}
}

// TestEventToEntry tests mapping bus events into audit entries
func TestEventToEntry(t *testing.T) {
	sub := NewSubscriber(nil, events.NoopBus{})
	actorID := types.NewID()
	resourceID := types.NewID()

	t.Run("Appointment event", func(t *testing.T) {
		event := events.NewEvent("appointment.booked", "appointment", map[string]any{
			"appointment_id": resourceID.String(),
		}).WithActor(actorID, "patient").WithCorrelation("corr-9")

		entry := sub.eventToEntry(event)

		if entry.Action != "appointment.booked" {
			t.Errorf("Expected action from event type, got %s", entry.Action)
		}
		if entry.ResourceType != "appointment" {
			t.Errorf("Expected resource type appointment, got %s", entry.ResourceType)
		}
		if entry.ResourceID != resourceID.String() {
			t.Errorf("Expected resource ID from payload, got %s", entry.ResourceID)
		}
		if entry.ActorType != ActorTypePatient {
			t.Errorf("Expected patient actor, got %s", entry.ActorType)
		}
		if entry.CorrelationID != "corr-9" {
			t.Errorf("Expected correlation carried over, got %s", entry.CorrelationID)
		}
	})

	t.Run("Event without actor defaults to system", func(t *testing.T) {
		event := events.NewEvent("auth.login_failed", "auth", map[string]any{"email": "x@example.org"})

		entry := sub.eventToEntry(event)
		if entry.ActorType != ActorTypeSystem {
			t.Errorf("Expected system actor, got %s", entry.ActorType)
		}
	})
}
