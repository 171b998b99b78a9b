package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SlotInterval is the spacing between bookable slots
const SlotInterval = 30 * time.Minute

// MaxSlotsReturned caps the number of slots offered per doctor per day
const MaxSlotsReturned = 10

// Default working hours for doctors with no declared windows.
// 09:00 inclusive to 18:00 exclusive.
const (
	defaultWindowStart = "09:00"
	defaultWindowEnd   = "18:00"
)

// Window is a weekly availability window declared by a doctor
type Window struct {
	Weekday time.Weekday `json:"weekday"`
	Start   string       `json:"start"`
	End     string       `json:"end"`
	Enabled bool         `json:"enabled"`
}

// NormalizeSlot validates a slot label and returns it zero-padded HH:MM.
// "9:00" and "09:00" normalize to the same label.
func NormalizeSlot(slot string) (string, error) {
	parts := strings.Split(strings.TrimSpace(slot), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid slot label: %q", slot)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid slot label: %q", slot)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid slot label: %q", slot)
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// slotMinutes converts a normalized label to minutes since midnight
func slotMinutes(slot string) (int, error) {
	normalized, err := NormalizeSlot(slot)
	if err != nil {
		return 0, err
	}
	hour, _ := strconv.Atoi(normalized[:2])
	minute, _ := strconv.Atoi(normalized[3:])
	return hour*60 + minute, nil
}

// DailySlots computes the half-hour slot grid for a doctor on a given date.
// Labels fall inside the doctor's enabled windows for that weekday, start
// inclusive and end exclusive. A doctor with no declared windows gets the
// default 09:00-18:00 grid every day.
func DailySlots(windows []Window, date time.Time) []string {
	if len(windows) == 0 {
		windows = []Window{
			{Weekday: date.Weekday(), Start: defaultWindowStart, End: defaultWindowEnd, Enabled: true},
		}
	}

	step := int(SlotInterval.Minutes())
	seen := make(map[int]bool)
	var minutes []int

	for _, w := range windows {
		if !w.Enabled || w.Weekday != date.Weekday() {
			continue
		}
		start, err := slotMinutes(w.Start)
		if err != nil {
			continue
		}
		end, err := slotMinutes(w.End)
		if err != nil {
			continue
		}
		// Align the first label to the half-hour grid
		for m := ((start + step - 1) / step) * step; m < end; m += step {
			if !seen[m] {
				seen[m] = true
				minutes = append(minutes, m)
			}
		}
	}

	sort.Ints(minutes)

	slots := make([]string, 0, len(minutes))
	for _, m := range minutes {
		slots = append(slots, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return slots
}

// AvailableSlots filters a slot grid down to what a patient can book:
// booked labels are removed, labels not strictly in the future are removed,
// and the result is capped at MaxSlotsReturned.
func AvailableSlots(grid []string, booked []string, date time.Time, now time.Time) []string {
	taken := make(map[string]bool, len(booked))
	for _, b := range booked {
		if normalized, err := NormalizeSlot(b); err == nil {
			taken[normalized] = true
		}
	}

	available := make([]string, 0, len(grid))
	for _, slot := range grid {
		if taken[slot] {
			continue
		}
		if !SlotTime(date, slot).After(now) {
			continue
		}
		available = append(available, slot)
		if len(available) == MaxSlotsReturned {
			break
		}
	}
	return available
}

// SlotTime combines a date and a slot label into a point in time
func SlotTime(date time.Time, slot string) time.Time {
	m, err := slotMinutes(slot)
	if err != nil {
		return time.Time{}
	}
	return time.Date(date.Year(), date.Month(), date.Day(), m/60, m%60, 0, 0, date.Location())
}

// ContainsSlot reports whether the grid contains the normalized label
func ContainsSlot(grid []string, slot string) bool {
	normalized, err := NormalizeSlot(slot)
	if err != nil {
		return false
	}
	for _, s := range grid {
		if s == normalized {
			return true
		}
	}
	return false
}
