package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/nutri-scheduling/internal/config"
	redisclient "github.com/hackgods/nutri-scheduling/internal/redis"
)

const (
	EventWindowRegistered     = "WINDOW_REGISTERED"
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

var (
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    logger.With().Str("component", "scheduling").Logger(),
		now:    time.Now,
	}
}

// RegisterWindow opens an availability window for a provider. An identical
// (provider, date, start, end) tuple is rejected with ErrWindowExists.
func (s *Service) RegisterWindow(ctx context.Context, in WindowInput) (*AvailabilityWindow, error) {
	w, err := in.normalize()
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetProviderByID(ctx, w.ProviderID); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	if err := s.repo.InsertWindow(ctx, w); err != nil {
		if errors.Is(err, ErrWindowExists) || errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("insert window: %w", err)
	}

	s.logEvent(ctx, nil, EventWindowRegistered, map[string]any{
		"window_id":   w.ID,
		"provider_id": w.ProviderID,
		"date":        fmt.Sprintf("%04d-%02d-%02d", w.Year, int(w.Month), w.Day),
		"start":       w.StartTime,
		"end":         w.EndTime,
	})

	return w, nil
}

func (in WindowInput) normalize() (*AvailabilityWindow, error) {
	if in.ProviderID <= 0 {
		return nil, fmt.Errorf("%w: providerId is required", ErrInvalidInput)
	}
	if !validDate(in.Year, in.Month, in.Day) {
		return nil, fmt.Errorf("%w: %04d-%02d-%02d is not a valid date", ErrInvalidInput, in.Year, int(in.Month), in.Day)
	}

	start, err := ParseClock(in.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := ParseClock(in.EndTime)
	if err != nil {
		return nil, err
	}
	// HH:MM compares correctly as a string
	if start >= end {
		return nil, fmt.Errorf("%w: startTime %s must be before endTime %s", ErrInvalidInput, start, end)
	}

	return &AvailabilityWindow{
		ProviderID: in.ProviderID,
		Year:       in.Year,
		Month:      in.Month,
		Day:        in.Day,
		StartTime:  start,
		EndTime:    end,
	}, nil
}

// ListWindows returns the provider's windows ordered by date and start time,
// each carrying the provider's appointment duration.
func (s *Service) ListWindows(ctx context.Context, providerID int64) ([]ProviderWindow, error) {
	if providerID <= 0 {
		return nil, fmt.Errorf("%w: providerId is required", ErrInvalidInput)
	}

	windows, err := s.repo.ListWindowsByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	if windows == nil {
		windows = []ProviderWindow{}
	}
	return windows, nil
}

// ListOccupiedSlots returns every slot held by a non-cancelled appointment.
func (s *Service) ListOccupiedSlots(ctx context.Context, providerID int64) ([]OccupiedSlot, error) {
	if providerID <= 0 {
		return nil, fmt.Errorf("%w: providerId is required", ErrInvalidInput)
	}

	slots, err := s.repo.ListOccupiedSlots(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list occupied slots: %w", err)
	}
	if slots == nil {
		slots = []OccupiedSlot{}
	}
	return slots, nil
}

// CreateAppointment books a slot for a patient. The slot lock keeps racing
// requests out of the critical section and the repository's conditional
// insert guarantees a single live appointment even if the lock is lost.
func (s *Service) CreateAppointment(ctx context.Context, in BookingInput) (*Appointment, error) {
	appt, err := in.toAppointment()
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, appt.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetProviderByID(ctx, appt.ProviderID); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	book := func(lockCtx context.Context) error {
		if err := s.repo.InsertAppointment(lockCtx, appt); err != nil {
			if errors.Is(err, ErrSlotUnavailable) ||
				errors.Is(err, ErrPatientNotFound) ||
				errors.Is(err, ErrProviderNotFound) {
				return err
			}
			return fmt.Errorf("insert appointment: %w", err)
		}

		s.logEvent(lockCtx, &appt.ID, EventAppointmentCreated, map[string]any{
			"patient_id":  appt.PatientID,
			"provider_id": appt.ProviderID,
			"slot":        appt.SlotKey(),
			"status":      appt.Status,
		})
		return nil
	}

	err = s.locker.WithSlotLock(ctx, appt.SlotKey(), book)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		// appointments_live_slot still rejects a second live booking
		s.log.Warn().Err(err).Str("slot", appt.SlotKey()).Msg("slot lock unavailable, booking without it")
		err = book(ctx)
	}
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return appt, nil
}

func (in BookingInput) toAppointment() (*Appointment, error) {
	if in.PatientID <= 0 {
		return nil, fmt.Errorf("%w: patientId is required", ErrInvalidInput)
	}
	if in.ProviderID <= 0 {
		return nil, fmt.Errorf("%w: providerId is required", ErrInvalidInput)
	}

	year, month, day, err := ParseSelectedDate(in.SelectedDate)
	if err != nil {
		return nil, err
	}
	clock, err := ParseClock(in.Time)
	if err != nil {
		return nil, err
	}
	status, err := ParseStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if !status.Live() {
		return nil, fmt.Errorf("%w: an appointment cannot be created as %s", ErrInvalidInput, status)
	}

	return &Appointment{
		PatientID:  in.PatientID,
		ProviderID: in.ProviderID,
		Year:       year,
		Month:      month,
		Day:        day,
		Time:       clock,
		Status:     status,
	}, nil
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ConfirmAppointment moves a pending appointment to confirmed
func (s *Service) ConfirmAppointment(ctx context.Context, id int64) (*Appointment, error) {
	return s.transition(ctx, id, []AppointmentStatus{StatusPending}, StatusConfirmed, EventAppointmentConfirmed, "client")
}

// CancelAppointment frees the slot held by a pending or confirmed appointment.
func (s *Service) CancelAppointment(ctx context.Context, id int64) (*Appointment, error) {
	return s.transition(ctx, id, []AppointmentStatus{StatusPending, StatusConfirmed}, StatusCancelled, EventAppointmentCancelled, "client")
}

func (s *Service) transition(ctx context.Context, id int64, from []AppointmentStatus, to AppointmentStatus, event, reason string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !statusIn(appt.Status, from) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, appt.Status, to)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// row exists, so its status changed under us
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidStatusTransition)
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, &updated.ID, event, map[string]any{
		"from":   appt.Status,
		"reason": reason,
	})

	return updated, nil
}

func statusIn(s AppointmentStatus, set []AppointmentStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// CancelStalePending is intended to be called by the worker periodically.
// It returns how many appointments were cancelled.
func (s *Service) CancelStalePending(ctx context.Context) (int, error) {
	if s.cfg.PendingTTL <= 0 {
		return 0, nil
	}

	cutoff := s.now().Add(-s.cfg.PendingTTL)
	stale, err := s.repo.FindStalePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale pending appointments: %w", err)
	}

	cancelled := 0
	for _, appt := range stale {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, []AppointmentStatus{StatusPending}, StatusCancelled)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.log.Error().Err(err).Int64("appointment_id", appt.ID).Msg("failed to cancel stale appointment")
			}
			continue
		}
		cancelled++
		s.logEvent(ctx, &appt.ID, EventAppointmentCancelled, map[string]any{
			"from":   StatusPending,
			"reason": "pending_ttl",
		})
	}

	return cancelled, nil
}

// SetAppointmentDuration updates the minutes a provider's slots last.
func (s *Service) SetAppointmentDuration(ctx context.Context, providerID int64, minutes int) error {
	if providerID <= 0 {
		return fmt.Errorf("%w: providerId is required", ErrInvalidInput)
	}
	if minutes <= 0 || minutes > MaxAppointmentMinutes {
		return fmt.Errorf("%w: minutes must be between 1 and %d", ErrInvalidInput, MaxAppointmentMinutes)
	}

	n, err := s.repo.SetAppointmentMinutes(ctx, providerID, minutes)
	if err != nil {
		return fmt.Errorf("set appointment minutes: %w", err)
	}
	if n == 0 {
		return ErrProviderNotFound
	}
	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID *int64, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to insert event log")
	}
}
