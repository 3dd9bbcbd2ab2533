package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/nutri-scheduling/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentCols = `id, patient_id, provider_id, year, month, day, slot_time, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProviderID,
		&a.Year,
		&a.Month,
		&a.Day,
		&a.Time,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

// fkTarget maps a foreign key failure to the missing entity.
func fkTarget(err error) error {
	if strings.Contains(db.ConstraintName(err), "patient") {
		return ErrPatientNotFound
	}
	return ErrProviderNotFound
}

func (r *PgRepository) GetProviderByID(ctx context.Context, id int64) (*Provider, error) {
	var p Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, appointment_minutes
		FROM providers
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.AppointmentMinutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	err := r.pool.QueryRow(ctx, `
		SELECT id, name
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) InsertWindow(ctx context.Context, w *AvailabilityWindow) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO availability_windows (provider_id, year, month, day, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_id, year, month, day, start_time, end_time) DO NOTHING
		RETURNING id, created_at
	`, w.ProviderID, w.Year, w.Month, w.Day, w.StartTime, w.EndTime).Scan(&w.ID, &w.CreatedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrWindowExists
	case db.IsForeignKeyViolation(err):
		return ErrProviderNotFound
	default:
		return err
	}
}

func (r *PgRepository) ListWindowsByProvider(ctx context.Context, providerID int64) ([]ProviderWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT w.id, w.provider_id, w.year, w.month, w.day, w.start_time, w.end_time, w.created_at,
		       COALESCE(p.appointment_minutes, $2)
		FROM availability_windows w
		JOIN providers p ON p.id = w.provider_id
		WHERE w.provider_id = $1
		ORDER BY w.year, w.month, w.day, w.start_time
	`, providerID, DefaultAppointmentMinutes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []ProviderWindow{}
	for rows.Next() {
		var pw ProviderWindow
		if err := rows.Scan(
			&pw.ID,
			&pw.ProviderID,
			&pw.Year,
			&pw.Month,
			&pw.Day,
			&pw.StartTime,
			&pw.EndTime,
			&pw.CreatedAt,
			&pw.DurationMinutes,
		); err != nil {
			return nil, err
		}
		result = append(result, pw)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListOccupiedSlots(ctx context.Context, providerID int64) ([]OccupiedSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day, month, year, slot_time
		FROM appointments
		WHERE provider_id = $1
		  AND status <> 'cancelled'
		ORDER BY year, month, day, slot_time
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []OccupiedSlot{}
	for rows.Next() {
		var s OccupiedSlot
		if err := rows.Scan(&s.Day, &s.Month, &s.Year, &s.Time); err != nil {
			return nil, err
		}
		result = append(result, s)
	}

	return result, rows.Err()
}

// InsertAppointment relies on the appointments_live_slot partial index: the
// insert and the occupancy check are the same statement, so two racing
// requests cannot both succeed.
func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, provider_id, year, month, day, slot_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider_id, year, month, day, slot_time) WHERE status <> 'cancelled' DO NOTHING
		RETURNING id, created_at, updated_at
	`, a.PatientID, a.ProviderID, a.Year, a.Month, a.Day, a.Time, a.Status).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrSlotUnavailable
	case db.IsUniqueViolation(err):
		return ErrSlotUnavailable
	case db.IsForeignKeyViolation(err):
		return fkTarget(err)
	default:
		return err
	}
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id int64, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	var updated *Appointment
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2,
			    updated_at = now()
			WHERE id = $1
			  AND status = ANY($3)
			RETURNING `+appointmentCols+`
		`, id, string(to), allowed)

		a, err := scanAppointment(row)
		if err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) FindStalePending(ctx context.Context, createdBefore time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE status = 'pending'
		  AND created_at < $1
		ORDER BY created_at
	`, createdBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}

func (r *PgRepository) SetAppointmentMinutes(ctx context.Context, providerID int64, minutes int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE providers
		SET appointment_minutes = $2,
		    updated_at = now()
		WHERE id = $1
	`, providerID, minutes)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
