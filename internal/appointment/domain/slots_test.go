package domain

import (
	"testing"
	"time"
)

// TestNormalizeSlot tests slot label validation and zero-padding
func TestNormalizeSlot(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		want        string
		expectError bool
	}{
		{"Already padded", "09:00", "09:00", false},
		{"Unpadded hour", "9:00", "09:00", false},
		{"Unpadded both", "9:5", "09:05", false},
		{"Whitespace trimmed", " 14:30 ", "14:30", false},
		{"Midnight", "0:00", "00:00", false},
		{"Late evening", "23:30", "23:30", false},
		{"Hour out of range", "24:00", "", true},
		{"Minute out of range", "10:60", "", true},
		{"Negative hour", "-1:00", "", true},
		{"Missing minute", "10", "", true},
		{"Too many parts", "10:00:00", "", true},
		{"Not a number", "ten:00", "", true},
		{"Empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSlot(tt.in)

			if tt.expectError {
				if err == nil {
					t.Errorf("NormalizeSlot(%q) expected error, got %q", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeSlot(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeSlot(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestDailySlotsDefaultGrid tests the grid for a doctor with no declared
// windows: 09:00 through 17:30 on every day of the week.
func TestDailySlotsDefaultGrid(t *testing.T) {
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC) // a Tuesday

	slots := DailySlots(nil, date)

	if len(slots) != 18 {
		t.Fatalf("Expected 18 default slots, got %d: %v", len(slots), slots)
	}
	if slots[0] != "09:00" {
		t.Errorf("Expected first slot 09:00, got %s", slots[0])
	}
	if slots[len(slots)-1] != "17:30" {
		t.Errorf("Expected last slot 17:30, got %s", slots[len(slots)-1])
	}

	// End of window is exclusive
	if ContainsSlot(slots, "18:00") {
		t.Error("Expected 18:00 to be excluded from the grid")
	}

	// Same default grid on a weekend
	sunday := time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC)
	if got := DailySlots(nil, sunday); len(got) != 18 {
		t.Errorf("Expected default grid on Sunday, got %d slots", len(got))
	}
}

// TestDailySlotsWithWindows tests grids derived from declared windows
func TestDailySlotsWithWindows(t *testing.T) {
	tuesday := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	t.Run("Only matching weekday windows apply", func(t *testing.T) {
		windows := []Window{
			{Weekday: time.Tuesday, Start: "10:00", End: "12:00", Enabled: true},
			{Weekday: time.Wednesday, Start: "14:00", End: "16:00", Enabled: true},
		}

		slots := DailySlots(windows, tuesday)
		want := []string{"10:00", "10:30", "11:00", "11:30"}
		assertSlots(t, slots, want)
	})

	t.Run("Disabled windows are skipped", func(t *testing.T) {
		windows := []Window{
			{Weekday: time.Tuesday, Start: "10:00", End: "12:00", Enabled: false},
		}

		if slots := DailySlots(windows, tuesday); len(slots) != 0 {
			t.Errorf("Expected no slots from disabled window, got %v", slots)
		}
	})

	t.Run("Overlapping windows deduplicate", func(t *testing.T) {
		windows := []Window{
			{Weekday: time.Tuesday, Start: "09:00", End: "11:00", Enabled: true},
			{Weekday: time.Tuesday, Start: "10:00", End: "12:00", Enabled: true},
		}

		slots := DailySlots(windows, tuesday)
		want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
		assertSlots(t, slots, want)
	})

	t.Run("Off-grid start aligns forward", func(t *testing.T) {
		windows := []Window{
			{Weekday: time.Tuesday, Start: "09:15", End: "11:00", Enabled: true},
		}

		slots := DailySlots(windows, tuesday)
		want := []string{"09:30", "10:00", "10:30"}
		assertSlots(t, slots, want)
	})

	t.Run("Afternoon-only window", func(t *testing.T) {
		windows := []Window{
			{Weekday: time.Tuesday, Start: "15:00", End: "16:30", Enabled: true},
		}

		slots := DailySlots(windows, tuesday)
		want := []string{"15:00", "15:30", "16:00"}
		assertSlots(t, slots, want)
	})
}

// TestAvailableSlots tests filtering the grid down to bookable slots
func TestAvailableSlots(t *testing.T) {
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	grid := DailySlots(nil, date)
	dayBefore := date.Add(-24 * time.Hour)

	t.Run("Booked slots are removed", func(t *testing.T) {
		available := AvailableSlots(grid, []string{"09:00", "9:30"}, date, dayBefore)

		if ContainsSlot(available, "09:00") {
			t.Error("Expected 09:00 to be filtered out")
		}
		if ContainsSlot(available, "09:30") {
			t.Error("Expected unpadded booked label 9:30 to filter 09:30")
		}
		if !ContainsSlot(available, "10:00") {
			t.Error("Expected 10:00 to remain available")
		}
	})

	t.Run("Past slots are removed", func(t *testing.T) {
		now := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)

		available := AvailableSlots(grid, nil, date, now)

		if ContainsSlot(available, "11:30") {
			t.Error("Expected 11:30 to be in the past")
		}
		// A slot exactly at now is not bookable
		if ContainsSlot(available, "12:00") {
			t.Error("Expected slot at current time to be excluded")
		}
		if !ContainsSlot(available, "12:30") {
			t.Error("Expected 12:30 to be available")
		}
	})

	t.Run("Result capped at ten", func(t *testing.T) {
		available := AvailableSlots(grid, nil, date, dayBefore)

		if len(available) != MaxSlotsReturned {
			t.Errorf("Expected %d slots, got %d", MaxSlotsReturned, len(available))
		}
		if available[0] != "09:00" {
			t.Errorf("Expected earliest slot first, got %s", available[0])
		}
	})

	t.Run("Fully booked day yields empty list", func(t *testing.T) {
		available := AvailableSlots(grid, grid, date, dayBefore)

		if len(available) != 0 {
			t.Errorf("Expected no slots, got %v", available)
		}
	})
}

// TestSlotTime tests combining a date with a slot label
func TestSlotTime(t *testing.T) {
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	got := SlotTime(date, "14:30")
	want := time.Date(2026, 9, 15, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("SlotTime = %v, want %v", got, want)
	}

	if !SlotTime(date, "garbage").IsZero() {
		t.Error("Expected zero time for invalid label")
	}
}

func assertSlots(t *testing.T, got, want []string) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("Expected %d slots %v, got %d: %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Slot %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
