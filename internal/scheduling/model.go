package scheduling

import (
	"fmt"
	"time"
)

// DefaultAppointmentMinutes applies when a provider never configured a duration.
const DefaultAppointmentMinutes = 30

// MaxAppointmentMinutes caps a configured appointment duration at a full workday.
const MaxAppointmentMinutes = 480

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Live reports whether an appointment in this status occupies its slot.
func (s AppointmentStatus) Live() bool {
	return s != StatusCancelled
}

type Provider struct {
	ID                 int64
	Name               string
	AppointmentMinutes *int
}

type Patient struct {
	ID   int64
	Name string
}

type AvailabilityWindow struct {
	ID         int64
	ProviderID int64
	Year       int
	Month      Month
	Day        int
	StartTime  string // HH:MM
	EndTime    string // HH:MM
	CreatedAt  time.Time
}

// ProviderWindow is a window joined with the provider's appointment duration.
type ProviderWindow struct {
	AvailabilityWindow
	DurationMinutes int
}

type OccupiedSlot struct {
	Day   int
	Month Month
	Year  int
	Time  string
}

type Appointment struct {
	ID         int64
	PatientID  int64
	ProviderID int64
	Year       int
	Month      Month
	Day        int
	Time       string // HH:MM, matches a slot start
	Status     AppointmentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SlotKey identifies the (provider, date, time) an appointment occupies.
func (a Appointment) SlotKey() string {
	return slotKey(a.ProviderID, a.Year, a.Month, a.Day, a.Time)
}

func slotKey(providerID int64, year int, month Month, day int, clock string) string {
	return fmt.Sprintf("%d:%04d-%02d-%02d:%s", providerID, year, int(month), day, clock)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}

// WindowInput is what a provider submits to open a window. Month is already
// numeric; name conversion happens at the HTTP boundary.
type WindowInput struct {
	ProviderID int64
	Year       int
	Month      Month
	Day        int
	StartTime  string
	EndTime    string
}

type BookingInput struct {
	PatientID    int64
	ProviderID   int64
	SelectedDate string
	Time         string
	Status       string // optional, defaults to pending
}
