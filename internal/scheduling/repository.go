package scheduling

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrWindowExists        = errors.New("availability window already registered")
	ErrSlotUnavailable     = errors.New("slot unavailable")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetProviderByID(ctx context.Context, id int64) (*Provider, error)
	GetPatientByID(ctx context.Context, id int64) (*Patient, error)

	// InsertWindow fills w.ID and w.CreatedAt, or returns ErrWindowExists
	// without writing when the same tuple is already registered.
	InsertWindow(ctx context.Context, w *AvailabilityWindow) error
	ListWindowsByProvider(ctx context.Context, providerID int64) ([]ProviderWindow, error)

	ListOccupiedSlots(ctx context.Context, providerID int64) ([]OccupiedSlot, error)

	// InsertAppointment writes a only if no live appointment holds the slot,
	// otherwise it returns ErrSlotUnavailable. Check and write are one atomic step.
	InsertAppointment(ctx context.Context, a *Appointment) error
	GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error)
	// UpdateAppointmentStatus moves an appointment to `to` only while its
	// status is one of from; otherwise ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id int64, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error)

	// Pending worker
	FindStalePending(ctx context.Context, createdBefore time.Time) ([]Appointment, error)

	SetAppointmentMinutes(ctx context.Context, providerID int64, minutes int) (int64, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
