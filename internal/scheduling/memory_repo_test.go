package scheduling

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// -- In-memory repository --

type memRepo struct {
	mu sync.Mutex

	providers    map[int64]*Provider
	patients     map[int64]*Patient
	windows      []AvailabilityWindow
	appointments map[int64]*Appointment
	events       []EventLog
	nextID       int64

	// failures injected by tests
	insertErr error
	listErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{
		providers:    make(map[int64]*Provider),
		patients:     make(map[int64]*Patient),
		appointments: make(map[int64]*Appointment),
	}
}

func (m *memRepo) addProvider(id int64, minutes *int) {
	m.providers[id] = &Provider{ID: id, Name: "Provider", AppointmentMinutes: minutes}
}

func (m *memRepo) addPatient(id int64) {
	m.patients[id] = &Patient{ID: id, Name: "Patient"}
}

func (m *memRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memRepo) GetProviderByID(_ context.Context, id int64) (*Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) GetPatientByID(_ context.Context, id int64) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) InsertWindow(_ context.Context, w *AvailabilityWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, existing := range m.windows {
		if existing.ProviderID == w.ProviderID && existing.Year == w.Year && existing.Month == w.Month &&
			existing.Day == w.Day && existing.StartTime == w.StartTime && existing.EndTime == w.EndTime {
			return ErrWindowExists
		}
	}
	w.ID = m.id()
	w.CreatedAt = time.Now()
	m.windows = append(m.windows, *w)
	return nil
}

func (m *memRepo) ListWindowsByProvider(_ context.Context, providerID int64) ([]ProviderWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	minutes := DefaultAppointmentMinutes
	if p, ok := m.providers[providerID]; ok && p.AppointmentMinutes != nil {
		minutes = *p.AppointmentMinutes
	}

	var result []ProviderWindow
	for _, w := range m.windows {
		if w.ProviderID == providerID {
			result = append(result, ProviderWindow{AvailabilityWindow: w, DurationMinutes: minutes})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.StartTime < b.StartTime
	})
	return result, nil
}

func (m *memRepo) ListOccupiedSlots(_ context.Context, providerID int64) ([]OccupiedSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []OccupiedSlot
	for _, a := range m.appointments {
		if a.ProviderID == providerID && a.Status.Live() {
			result = append(result, OccupiedSlot{Day: a.Day, Month: a.Month, Year: a.Year, Time: a.Time})
		}
	}
	return result, nil
}

// InsertAppointment mirrors the partial unique index: check and insert under one lock.
func (m *memRepo) InsertAppointment(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, existing := range m.appointments {
		if existing.Status.Live() && existing.SlotKey() == a.SlotKey() {
			return ErrSlotUnavailable
		}
	}
	a.ID = m.id()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id int64) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) UpdateAppointmentStatus(_ context.Context, id int64, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || !statusIn(a.Status, from) {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) FindStalePending(_ context.Context, createdBefore time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Appointment
	for _, a := range m.appointments {
		if a.Status == StatusPending && a.CreatedAt.Before(createdBefore) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *memRepo) SetAppointmentMinutes(_ context.Context, providerID int64, minutes int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[providerID]
	if !ok {
		return 0, nil
	}
	p.AppointmentMinutes = &minutes
	return 1, nil
}

func (m *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memRepo) appointmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appointments)
}

func (m *memRepo) windowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func (m *memRepo) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, ev := range m.events {
		out = append(out, ev.EventType)
	}
	return out
}

// -- Lockers --

// passLocker never contends, leaving the repository as the only guard.
type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type failLocker struct{ err error }

func (l failLocker) WithSlotLock(context.Context, string, func(ctx context.Context) error) error {
	return l.err
}

var errStorage = errors.New("connection reset")
