package account

import (
	"context"
	"errors"
	"strings"

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

const patientCols = `id, name, COALESCE(phone, ''), COALESCE(sex, ''), birth_date, email,
	COALESCE(password_hash, ''), COALESCE(google_id, ''), created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.Sex,
		&p.BirthDate,
		&p.Email,
		&p.PasswordHash,
		&p.GoogleID,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &p, nil
}

// duplicateTarget tells an email clash from a license clash by constraint name.
func duplicateTarget(err error) error {
	if strings.Contains(db.ConstraintName(err), "license") {
		return ErrLicenseTaken
	}
	return ErrEmailTaken
}

func (r *PgRepository) CreateProvider(ctx context.Context, p *Provider) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO providers (name, phone, email, password_hash, license_number, license_region, document_ref, appointment_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, p.Name, p.Phone, p.Email, p.PasswordHash, p.LicenseNumber, p.LicenseRegion, p.DocumentRef, p.AppointmentMinutes).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return duplicateTarget(err)
		}
		return err
	}
	return nil
}

func (r *PgRepository) GetProviderByEmail(ctx context.Context, email string) (*Provider, error) {
	var p Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, password_hash, license_number, license_region,
		       document_ref, appointment_minutes, created_at
		FROM providers
		WHERE email = $1
	`, email).Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.Email,
		&p.PasswordHash,
		&p.LicenseNumber,
		&p.LicenseRegion,
		&p.DocumentRef,
		&p.AppointmentMinutes,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) ListProviders(ctx context.Context) ([]ProviderSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, license_region || '-' || license_number, phone
		FROM providers
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []ProviderSummary{}
	for rows.Next() {
		var s ProviderSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.License, &s.Phone); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO patients (name, phone, sex, birth_date, email, password_hash, google_id)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''))
		RETURNING id, created_at
	`, p.Name, p.Phone, p.Sex, p.BirthDate, p.Email, p.PasswordHash, p.GoogleID).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *PgRepository) GetPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+patientCols+`
		FROM patients
		WHERE email = $1
	`, email)
	return scanPatient(row)
}

func (r *PgRepository) UpsertGooglePatient(ctx context.Context, profile GoogleProfile) (*Patient, bool, error) {
	var (
		patient *Patient
		created bool
	)

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		existing, err := scanPatient(tx.QueryRow(ctx, `
			SELECT `+patientCols+`
			FROM patients
			WHERE google_id = $1
			FOR UPDATE
		`, profile.GoogleID))
		if err == nil {
			patient = existing
			return nil
		}
		if !errors.Is(err, ErrAccountNotFound) {
			return err
		}

		existing, err = scanPatient(tx.QueryRow(ctx, `
			SELECT `+patientCols+`
			FROM patients
			WHERE email = $1
			FOR UPDATE
		`, profile.Email))
		switch {
		case err == nil:
			if existing.GoogleID != "" {
				return ErrGoogleIDMismatch
			}
			tag, err := tx.Exec(ctx, `
				UPDATE patients
				SET google_id = $2,
				    updated_at = now()
				WHERE id = $1 AND google_id IS NULL
			`, existing.ID, profile.GoogleID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return ErrGoogleIDMismatch
			}
			existing.GoogleID = profile.GoogleID
			patient = existing
			return nil
		case !errors.Is(err, ErrAccountNotFound):
			return err
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO patients (name, email, phone, google_id)
			VALUES ($1, $2, NULLIF($3, ''), $4)
			RETURNING `+patientCols+`
		`, profile.Name, profile.Email, profile.Phone, profile.GoogleID)
		fresh, err := scanPatient(row)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return err
		}
		patient = fresh
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return patient, created, nil
}
