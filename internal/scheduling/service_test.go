package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/nutri-scheduling/internal/config"
	redisclient "github.com/hackgods/nutri-scheduling/internal/redis"
)

func newTestService(repo Repository, locker redisclient.Locker) *Service {
	return NewService(repo, locker, config.Config{}, zerolog.Nop())
}

func window(providerID int64, year int, month Month, day int, start, end string) WindowInput {
	return WindowInput{ProviderID: providerID, Year: year, Month: month, Day: day, StartTime: start, EndTime: end}
}

func booking(patientID, providerID int64, date, clock string) BookingInput {
	return BookingInput{PatientID: patientID, ProviderID: providerID, SelectedDate: date, Time: clock}
}

// ----- availability -----

func TestRegisterWindow_DuplicateRejected(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	svc := newTestService(repo, passLocker{})
	ctx := context.Background()

	w, err := svc.RegisterWindow(ctx, window(5, 2024, 3, 10, "09:00", "12:00"))
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	if w.ID == 0 {
		t.Fatal("expected window id")
	}

	_, err = svc.RegisterWindow(ctx, window(5, 2024, 3, 10, "09:00", "12:00"))
	if !errors.Is(err, ErrWindowExists) {
		t.Fatalf("expected ErrWindowExists, got %v", err)
	}
	if repo.windowCount() != 1 {
		t.Fatalf("expected 1 window persisted, got %d", repo.windowCount())
	}
}

func TestRegisterWindow_NormalizesClock(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	svc := newTestService(repo, passLocker{})

	w, err := svc.RegisterWindow(context.Background(), window(5, 2024, 3, 10, "09:00:00", "12:00:00"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if w.StartTime != "09:00" || w.EndTime != "12:00" {
		t.Errorf("expected HH:MM, got %s-%s", w.StartTime, w.EndTime)
	}

	// same window in the other notation is still a duplicate
	_, err = svc.RegisterWindow(context.Background(), window(5, 2024, 3, 10, "09:00", "12:00"))
	if !errors.Is(err, ErrWindowExists) {
		t.Fatalf("expected ErrWindowExists, got %v", err)
	}
}

func TestRegisterWindow_Validation(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	svc := newTestService(repo, passLocker{})

	tests := []struct {
		name string
		in   WindowInput
	}{
		{"missing provider", window(0, 2024, 3, 10, "09:00", "12:00")},
		{"missing year", window(5, 0, 3, 10, "09:00", "12:00")},
		{"bad month", window(5, 2024, 13, 10, "09:00", "12:00")},
		{"missing day", window(5, 2024, 3, 0, "09:00", "12:00")},
		{"day past month end", window(5, 2023, 2, 29, "09:00", "12:00")},
		{"bad start", window(5, 2024, 3, 10, "9h", "12:00")},
		{"missing end", window(5, 2024, 3, 10, "09:00", "")},
		{"start equals end", window(5, 2024, 3, 10, "09:00", "09:00")},
		{"start after end", window(5, 2024, 3, 10, "12:00", "09:00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterWindow(context.Background(), tt.in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if repo.windowCount() != 0 {
		t.Fatalf("invalid input must not write, got %d windows", repo.windowCount())
	}
}

func TestRegisterWindow_LeapDay(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	svc := newTestService(repo, passLocker{})

	if _, err := svc.RegisterWindow(context.Background(), window(5, 2024, 2, 29, "09:00", "10:00")); err != nil {
		t.Fatalf("2024-02-29 is valid: %v", err)
	}
}

func TestRegisterWindow_UnknownProvider(t *testing.T) {
	svc := newTestService(newMemRepo(), passLocker{})

	_, err := svc.RegisterWindow(context.Background(), window(99, 2024, 3, 10, "09:00", "12:00"))
	if !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestRegisterWindow_StorageError(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	repo.insertErr = errStorage
	svc := newTestService(repo, passLocker{})

	_, err := svc.RegisterWindow(context.Background(), window(5, 2024, 3, 10, "09:00", "12:00"))
	if !errors.Is(err, errStorage) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
	if errors.Is(err, ErrWindowExists) || errors.Is(err, ErrInvalidInput) {
		t.Fatalf("storage error must not look like a client error: %v", err)
	}
}

func TestListWindows_OrderedWithDuration(t *testing.T) {
	repo := newMemRepo()
	minutes := 45
	repo.addProvider(5, &minutes)
	repo.addProvider(6, nil)
	svc := newTestService(repo, passLocker{})
	ctx := context.Background()

	inputs := []WindowInput{
		window(5, 2024, 4, 1, "08:00", "09:00"),
		window(5, 2024, 3, 10, "14:00", "16:00"),
		window(5, 2023, 12, 31, "10:00", "11:00"),
		window(5, 2024, 3, 10, "09:00", "12:00"),
		window(6, 2024, 1, 1, "09:00", "10:00"),
	}
	for _, in := range inputs {
		if _, err := svc.RegisterWindow(ctx, in); err != nil {
			t.Fatalf("register %+v: %v", in, err)
		}
	}

	windows, err := svc.ListWindows(ctx, 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(windows) != 4 {
		t.Fatalf("expected 4 windows for provider 5, got %d", len(windows))
	}

	want := []string{"2023-12-31 10:00", "2024-03-10 09:00", "2024-03-10 14:00", "2024-04-01 08:00"}
	for i, w := range windows {
		got := time.Date(w.Year, time.Month(w.Month), w.Day, 0, 0, 0, 0, time.UTC).Format("2006-01-02") + " " + w.StartTime
		if got != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got)
		}
		if w.DurationMinutes != 45 {
			t.Errorf("expected duration 45, got %d", w.DurationMinutes)
		}
	}

	other, err := svc.ListWindows(ctx, 6)
	if err != nil {
		t.Fatalf("list provider 6: %v", err)
	}
	if len(other) != 1 || other[0].DurationMinutes != DefaultAppointmentMinutes {
		t.Fatalf("expected default duration for unset provider, got %+v", other)
	}
}

func TestListWindows_EmptyAndMissingProvider(t *testing.T) {
	svc := newTestService(newMemRepo(), passLocker{})

	windows, err := svc.ListWindows(context.Background(), 77)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if windows == nil || len(windows) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", windows)
	}

	if _, err := svc.ListWindows(context.Background(), 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing provider, got %v", err)
	}
}

// ----- booking -----

func TestCreateAppointment_AppearsInOccupied(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	repo.addPatient(1)
	svc := newTestService(repo, passLocker{})
	ctx := context.Background()

	if _, err := svc.RegisterWindow(ctx, window(5, 2024, 3, 10, "09:00", "12:00")); err != nil {
		t.Fatalf("register: %v", err)
	}

	appt, err := svc.CreateAppointment(ctx, booking(1, 5, "2024-03-10", "09:30"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if appt.Status != StatusPending {
		t.Errorf("expected default pending, got %s", appt.Status)
	}

	occupied, err := svc.ListOccupiedSlots(ctx, 5)
	if err != nil {
		t.Fatalf("occupied: %v", err)
	}
	if len(occupied) != 1 {
		t.Fatalf("expected 1 occupied slot, got %d", len(occupied))
	}
	got := occupied[0]
	if got.Day != 10 || got.Month != 3 || got.Month.Name() != "Março" || got.Year != 2024 || got.Time != "09:30" {
		t.Fatalf("unexpected occupied slot %+v", got)
	}

	events := repo.eventTypes()
	if len(events) != 2 || events[1] != EventAppointmentCreated {
		t.Errorf("expected window + created events, got %v", events)
	}
}

func TestCreateAppointment_DoubleBookingConflicts(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	repo.addPatient(1)
	repo.addPatient(2)
	svc := newTestService(repo, passLocker{})
	ctx := context.Background()

	if _, err := svc.CreateAppointment(ctx, booking(1, 5, "2024-03-10", "09:30")); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	_, err := svc.CreateAppointment(ctx, booking(2, 5, "2024-03-10T09:30:00Z", "09:30:00"))
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if repo.appointmentCount() != 1 {
		t.Fatalf("expected row count unchanged at 1, got %d", repo.appointmentCount())
	}

	// another provider or another time is free
	repo.addProvider(6, nil)
	if _, err := svc.CreateAppointment(ctx, booking(2, 6, "2024-03-10", "09:30")); err != nil {
		t.Fatalf("other provider: %v", err)
	}
	if _, err := svc.CreateAppointment(ctx, booking(2, 5, "2024-03-10", "10:00")); err != nil {
		t.Fatalf("other time: %v", err)
	}
}

func TestCreateAppointment_RebookAfterCancel(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	repo.addPatient(1)
	repo.addPatient(2)
	svc := newTestService(repo, passLocker{})
	ctx := context.Background()

	first, err := svc.CreateAppointment(ctx, booking(1, 5, "2024-03-10", "09:30"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	cancelled, err := svc.CancelAppointment(ctx, first.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	occupied, _ := svc.ListOccupiedSlots(ctx, 5)
	if len(occupied) != 0 {
		t.Fatalf("cancelled appointment must not occupy, got %+v", occupied)
	}

	second, err := svc.CreateAppointment(ctx, booking(2, 5, "2024-03-10", "09:30"))
	if err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a new appointment row")
	}
	if repo.appointmentCount() != 2 {
		t.Fatalf("expected cancelled row kept plus new row, got %d", repo.appointmentCount())
	}
}

func TestCreateAppointment_Validation(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	repo.addPatient(1)
	svc := newTestService(repo, passLocker{})

	tests := []struct {
		name string
		in   BookingInput
	}{
		{"missing patient", booking(0, 5, "2024-03-10", "09:30")},
		{"missing provider", booking(1, 0, "2024-03-10", "09:30")},
		{"missing date", booking(1, 5, "", "09:30")},
		{"garbage date", booking(1, 5, "not-a-date", "09:30")},
		{"impossible date", booking(1, 5, "2024-02-30", "09:30")},
		{"missing time", booking(1, 5, "2024-03-10", "")},
		{"bad time", booking(1, 5, "2024-03-10", "25:00")},
		{"unknown status", BookingInput{PatientID: 1, ProviderID: 5, SelectedDate: "2024-03-10", Time: "09:30", Status: "maybe"}},
		{"created cancelled", BookingInput{PatientID: 1, ProviderID: 5, SelectedDate: "2024-03-10", Time: "09:30", Status: "Cancelado"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAppointment(context.Background(), tt.in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if repo.appointmentCount() != 0 {
		t.Fatalf("invalid input must not write, got %d", repo.appointmentCount())
	}
}

func TestCreateAppointment_CallerStatus(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	repo.addPatient(1)
	svc := newTestService(repo, passLocker{})

	appt, err := svc.CreateAppointment(context.Background(), BookingInput{
		PatientID: 1, ProviderID: 5, SelectedDate: "2024-03-10", Time: "09:30", Status: "Confirmado",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if appt.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", appt.Status)
	}
}

func TestCreateAppointment_UnknownParticipants(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	repo.addPatient(1)
	svc := newTestService(repo, passLocker{})

	if _, err := svc.CreateAppointment(context.Background(), booking(42, 5, "2024-03-10", "09:30")); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
	if _, err := svc.CreateAppointment(context.Background(), booking(1, 42, "2024-03-10", "09:30")); !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestCreateAppointment_LockBusy(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	repo.addPatient(1)
	svc := newTestService(repo, failLocker{err: redisclient.ErrLockNotAcquired})

	_, err := svc.CreateAppointment(context.Background(), booking(1, 5, "2024-03-10", "09:30"))
	if !errors.Is(err, ErrSlotBeingBooked) {
		t.Fatalf("expected ErrSlotBeingBooked, got %v", err)
	}
	if repo.appointmentCount() != 0 {
		t.Fatal("no row should be written when the lock is busy")
	}
}

func TestCreateAppointment_LockStoreDown(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	repo.addPatient(1)
	repo.addPatient(2)
	down := fmt.Errorf("%w: dial tcp 127.0.0.1:1: i/o timeout", redisclient.ErrLockUnavailable)
	svc := newTestService(repo, failLocker{err: down})

	appt, err := svc.CreateAppointment(context.Background(), booking(1, 5, "2024-03-10", "09:30"))
	if err != nil {
		t.Fatalf("booking should fall back to the storage guard: %v", err)
	}
	if appt.ID == 0 || repo.appointmentCount() != 1 {
		t.Fatalf("expected one stored appointment, got id=%d count=%d", appt.ID, repo.appointmentCount())
	}

	// the occupancy rule still holds without the lock
	if _, err := svc.CreateAppointment(context.Background(), booking(2, 5, "2024-03-10", "09:30")); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if repo.appointmentCount() != 1 {
		t.Fatalf("expected 1 appointment, got %d", repo.appointmentCount())
	}
}

func TestCreateAppointment_StorageError(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	repo.addPatient(1)
	repo.insertErr = errStorage
	svc := newTestService(repo, passLocker{})

	_, err := svc.CreateAppointment(context.Background(), booking(1, 5, "2024-03-10", "09:30"))
	if !errors.Is(err, errStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if errors.Is(err, ErrSlotUnavailable) {
		t.Fatal("storage error must not be reported as a conflict")
	}
}

func TestCreateAppointment_ConcurrentSameSlot(t *testing.T) {
	lockers := map[string]func() redisclient.Locker{
		"local lock":    redisclient.NewLocalSlotLocker,
		"storage guard": func() redisclient.Locker { return passLocker{} },
	}

	for name, newLocker := range lockers {
		t.Run(name, func(t *testing.T) {
			repo := newMemRepo()
			repo.addProvider(5, nil)
			const n = 25
			for i := int64(1); i <= n; i++ {
				repo.addPatient(i)
			}
			svc := newTestService(repo, newLocker())

			var success, conflict, other int32
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := int64(1); i <= n; i++ {
				wg.Add(1)
				go func(patientID int64) {
					defer wg.Done()
					<-start
					_, err := svc.CreateAppointment(context.Background(), booking(patientID, 5, "2024-03-10", "09:30"))
					switch {
					case err == nil:
						atomic.AddInt32(&success, 1)
					case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrSlotBeingBooked):
						atomic.AddInt32(&conflict, 1)
					default:
						atomic.AddInt32(&other, 1)
					}
				}(i)
			}
			close(start)
			wg.Wait()

			if success != 1 {
				t.Fatalf("expected exactly 1 successful booking, got %d", success)
			}
			if conflict != n-1 || other != 0 {
				t.Fatalf("expected %d conflicts and no other errors, got %d conflicts %d other", n-1, conflict, other)
			}
			if repo.appointmentCount() != 1 {
				t.Fatalf("expected 1 row, got %d", repo.appointmentCount())
			}
		})
	}
}

// ----- status transitions -----

func TestConfirmAndCancelTransitions(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	repo.addPatient(1)
	svc := newTestService(repo, passLocker{})
	ctx := context.Background()

	appt, err := svc.CreateAppointment(ctx, booking(1, 5, "2024-03-10", "09:30"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	confirmed, err := svc.ConfirmAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}

	if _, err := svc.ConfirmAppointment(ctx, appt.ID); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("confirming twice should fail, got %v", err)
	}

	// a confirmed appointment still blocks the slot
	repo.addPatient(2)
	if _, err := svc.CreateAppointment(ctx, booking(2, 5, "2024-03-10", "09:30")); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected confirmed appointment to block slot, got %v", err)
	}

	if _, err := svc.CancelAppointment(ctx, appt.ID); err != nil {
		t.Fatalf("cancel confirmed: %v", err)
	}
	if _, err := svc.CancelAppointment(ctx, appt.ID); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("cancelling twice should fail, got %v", err)
	}
	if _, err := svc.ConfirmAppointment(ctx, appt.ID); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("cancelled appointment cannot be revived, got %v", err)
	}
}

func TestTransitions_UnknownAppointment(t *testing.T) {
	svc := newTestService(newMemRepo(), passLocker{})

	if _, err := svc.CancelAppointment(context.Background(), 404); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
	if _, err := svc.GetAppointment(context.Background(), 404); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestCancelStalePending(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	repo.addPatient(1)
	svc := NewService(repo, passLocker{}, config.Config{PendingTTL: time.Hour}, zerolog.Nop())
	ctx := context.Background()

	stale, _ := svc.CreateAppointment(ctx, booking(1, 5, "2024-03-10", "09:00"))
	fresh, _ := svc.CreateAppointment(ctx, booking(1, 5, "2024-03-10", "10:00"))
	confirmed, _ := svc.CreateAppointment(ctx, booking(1, 5, "2024-03-10", "11:00"))
	if _, err := svc.ConfirmAppointment(ctx, confirmed.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	repo.mu.Lock()
	repo.appointments[stale.ID].CreatedAt = time.Now().Add(-2 * time.Hour)
	repo.appointments[confirmed.ID].CreatedAt = time.Now().Add(-2 * time.Hour)
	repo.mu.Unlock()

	n, err := svc.CancelStalePending(ctx)
	if err != nil {
		t.Fatalf("cancel stale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 cancelled, got %d", n)
	}

	check := map[int64]AppointmentStatus{stale.ID: StatusCancelled, fresh.ID: StatusPending, confirmed.ID: StatusConfirmed}
	for id, want := range check {
		got, _ := svc.GetAppointment(ctx, id)
		if got.Status != want {
			t.Errorf("appointment %d: expected %s, got %s", id, want, got.Status)
		}
	}
}

func TestCancelStalePending_DisabledByDefault(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, passLocker{})

	n, err := svc.CancelStalePending(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected no-op, got %d %v", n, err)
	}
}

// ----- provider configuration -----

func TestSetAppointmentDuration(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	svc := newTestService(repo, passLocker{})
	ctx := context.Background()

	if _, err := svc.RegisterWindow(ctx, window(5, 2024, 3, 10, "09:00", "12:00")); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.SetAppointmentDuration(ctx, 5, 50); err != nil {
			t.Fatalf("set duration (run %d): %v", i, err)
		}
	}

	windows, _ := svc.ListWindows(ctx, 5)
	if len(windows) != 1 || windows[0].DurationMinutes != 50 {
		t.Fatalf("expected duration 50 in listing, got %+v", windows)
	}
}

func TestSetAppointmentDuration_Errors(t *testing.T) {
	repo := newMemRepo()
	repo.addProvider(5, nil)
	svc := newTestService(repo, passLocker{})

	tests := []struct {
		name       string
		providerID int64
		minutes    int
		want       error
	}{
		{"missing provider", 0, 30, ErrInvalidInput},
		{"zero minutes", 5, 0, ErrInvalidInput},
		{"too long", 5, MaxAppointmentMinutes + 1, ErrInvalidInput},
		{"unknown provider", 9, 30, ErrProviderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SetAppointmentDuration(context.Background(), tt.providerID, tt.minutes)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
