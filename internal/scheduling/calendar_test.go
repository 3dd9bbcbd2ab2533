package scheduling

import (
	"errors"
	"testing"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in   string
		want Month
	}{
		{"3", 3},
		{"03", 3},
		{"12", 12},
		{"Março", 3},
		{"marco", 3},
		{"MARÇO", 3},
		{" Janeiro ", 1},
		{"dezembro", 12},
	}
	for _, tt := range tests {
		got, err := ParseMonth(tt.in)
		if err != nil {
			t.Errorf("ParseMonth(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMonth(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "0", "13", "March", "-1"} {
		if _, err := ParseMonth(bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ParseMonth(%q) expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestMonthName(t *testing.T) {
	if Month(3).Name() != "Março" {
		t.Errorf("expected Março, got %q", Month(3).Name())
	}
	if Month(0).Name() != "" || Month(13).Name() != "" {
		t.Error("invalid months should have no name")
	}
}

func TestParseClock(t *testing.T) {
	tests := map[string]string{
		"09:30":    "09:30",
		"9:30":     "09:30",
		"09:30:00": "09:30",
		"23:59":    "23:59",
	}
	for in, want := range tests {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Errorf("ParseClock(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	for _, bad := range []string{"", "24:00", "0930", "9h30", "09:60", "09:30:59", "09:30:01"} {
		if _, err := ParseClock(bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ParseClock(%q) expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestParseSelectedDate(t *testing.T) {
	tests := []struct {
		in               string
		year, month, day int
	}{
		{"2024-03-10", 2024, 3, 10},
		{"2024-03-10T00:00:00-03:00", 2024, 3, 10},
		{"2024-03-10T23:30:00Z", 2024, 3, 10},
		{"2024-03-10T09:30:00", 2024, 3, 10},
	}
	for _, tt := range tests {
		y, m, d, err := ParseSelectedDate(tt.in)
		if err != nil {
			t.Errorf("ParseSelectedDate(%q) error: %v", tt.in, err)
			continue
		}
		if y != tt.year || int(m) != tt.month || d != tt.day {
			t.Errorf("ParseSelectedDate(%q) = %d-%d-%d", tt.in, y, m, d)
		}
	}

	for _, bad := range []string{"", "10/03/2024", "2024-02-30", "tomorrow"} {
		if _, _, _, err := ParseSelectedDate(bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ParseSelectedDate(%q) expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := map[string]AppointmentStatus{
		"":           StatusPending,
		"Pendente":   StatusPending,
		"pending":    StatusPending,
		"Confirmed":  StatusConfirmed,
		"confirmado": StatusConfirmed,
		"Cancelado":  StatusCancelled,
		"canceled":   StatusCancelled,
	}
	for in, want := range tests {
		got, err := ParseStatus(in)
		if err != nil || got != want {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseStatus("done"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSlotKey(t *testing.T) {
	a := Appointment{ProviderID: 5, Year: 2024, Month: 3, Day: 10, Time: "09:30"}
	if got := a.SlotKey(); got != "5:2024-03-10:09:30" {
		t.Errorf("unexpected slot key %q", got)
	}
}
