package account

import (
	"io"
	"time"
)

type Role string

const (
	RoleProvider Role = "nutricionista"
	RolePatient  Role = "paciente"
)

type Provider struct {
	ID                 int64
	Name               string
	Phone              string
	Email              string
	PasswordHash       string
	LicenseNumber      string
	LicenseRegion      string
	DocumentRef        string
	AppointmentMinutes *int
	CreatedAt          time.Time
}

// License renders the professional registration as REGION-NUMBER.
func (p Provider) License() string {
	return p.LicenseRegion + "-" + p.LicenseNumber
}

// ProviderSummary is the public listing entry for a provider.
type ProviderSummary struct {
	ID      int64
	Name    string
	License string
	Phone   string
}

type Patient struct {
	ID           int64
	Name         string
	Phone        string
	Sex          string
	BirthDate    *time.Time
	Email        string
	PasswordHash string // empty for accounts created through Google
	GoogleID     string
	CreatedAt    time.Time
}

// Session is returned by every successful login or sign-in.
type Session struct {
	UserID    int64
	Name      string
	Email     string
	Phone     string
	Role      Role
	License   string // providers only
	Token     string
	ExpiresAt time.Time
}

type ProviderRegistration struct {
	Name            string
	Phone           string
	LicenseNumber   string
	LicenseRegion   string
	Email           string
	Password        string
	DurationMinutes *int
	DocumentName    string
	Document        io.Reader
}

type PatientRegistration struct {
	Name      string
	Phone     string
	Sex       string
	BirthDate string // YYYY-MM-DD
	Email     string
	Password  string
}

type Credentials struct {
	Email    string
	Password string
}

// GoogleProfile carries the identity asserted by the Google sign-in flow.
// GoogleID may be empty when the frontend only forwards email and name.
type GoogleProfile struct {
	GoogleID string
	Email    string
	Name     string
	Phone    string
}
