package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPgErrorClassification(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "patients_email_key"}
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "appointments_patient_id_fkey"}

	tests := []struct {
		name       string
		err        error
		unique     bool
		foreignKey bool
		constraint string
	}{
		{"unique", unique, true, false, "patients_email_key"},
		{"wrapped unique", fmt.Errorf("insert: %w", unique), true, false, "patients_email_key"},
		{"foreign key", fk, false, true, "appointments_patient_id_fkey"},
		{"plain error", errors.New("boom"), false, false, ""},
		{"nil", nil, false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.unique {
				t.Errorf("IsUniqueViolation = %v, want %v", got, tt.unique)
			}
			if got := IsForeignKeyViolation(tt.err); got != tt.foreignKey {
				t.Errorf("IsForeignKeyViolation = %v, want %v", got, tt.foreignKey)
			}
			if got := ConstraintName(tt.err); got != tt.constraint {
				t.Errorf("ConstraintName = %q, want %q", got, tt.constraint)
			}
		})
	}
}
