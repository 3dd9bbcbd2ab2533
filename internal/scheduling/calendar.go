package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Month is a calendar month numbered 1..12. It is stored numerically and only
// rendered as a Portuguese name for clients.
type Month int

var monthNames = [12]string{
	"Janeiro", "Fevereiro", "Março",
	"Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro",
	"Outubro", "Novembro", "Dezembro",
}

func (m Month) Valid() bool {
	return m >= 1 && m <= 12
}

// Name returns the Portuguese month name, or "" for an invalid month.
func (m Month) Name() string {
	if !m.Valid() {
		return ""
	}
	return monthNames[m-1]
}

// ParseMonth accepts "3", "03", "Março", "marco" and similar.
func ParseMonth(raw string) (Month, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: month is required", ErrInvalidInput)
	}

	if n, err := strconv.Atoi(s); err == nil {
		m := Month(n)
		if !m.Valid() {
			return 0, fmt.Errorf("%w: month %d out of range", ErrInvalidInput, n)
		}
		return m, nil
	}

	key := foldMonth(s)
	for i, name := range monthNames {
		if foldMonth(name) == key {
			return Month(i + 1), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown month %q", ErrInvalidInput, raw)
}

func foldMonth(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "ç", "c")
}

var clockLayouts = []string{"15:04", "15:04:05"}

// ParseClock normalizes a wall-clock time to HH:MM. HH:MM:SS is accepted
// only with zero seconds.
func ParseClock(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Second() != 0 {
				return "", fmt.Errorf("%w: time %q must fall on a whole minute", ErrInvalidInput, raw)
			}
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidInput, raw)
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

// ParseSelectedDate reads the calendar date a patient picked. Timestamps keep
// the date in their own offset so a client's local midnight stays on the same day.
func ParseSelectedDate(raw string) (year int, month Month, day int, err error) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, perr := time.Parse(layout, s); perr == nil {
			return t.Year(), Month(t.Month()), t.Day(), nil
		}
	}
	return 0, 0, 0, fmt.Errorf("%w: selectedDate %q is not a valid date", ErrInvalidInput, raw)
}

// validDate reports whether day exists in the given month and year.
func validDate(year int, month Month, day int) bool {
	if year < 1900 || year > 9999 || !month.Valid() || day < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day && t.Month() == time.Month(month)
}

// ParseStatus maps a client label to a status. Empty means pending. The
// Portuguese labels sent by the web frontend are accepted too.
func ParseStatus(raw string) (AppointmentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pending", "pendente":
		return StatusPending, nil
	case "confirmed", "confirmado":
		return StatusConfirmed, nil
	case "cancelled", "canceled", "cancelado":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
}
