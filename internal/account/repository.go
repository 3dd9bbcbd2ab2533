package account

import (
	"context"
	"errors"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email already registered")
	ErrLicenseTaken       = errors.New("license already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotFound    = errors.New("account not found")
	ErrGoogleIDMismatch   = errors.New("email is linked to a different google account")
)

type Repository interface {
	CreateProvider(ctx context.Context, p *Provider) error
	GetProviderByEmail(ctx context.Context, email string) (*Provider, error)
	ListProviders(ctx context.Context) ([]ProviderSummary, error)

	CreatePatient(ctx context.Context, p *Patient) error
	GetPatientByEmail(ctx context.Context, email string) (*Patient, error)

	// UpsertGooglePatient finds the patient by Google id, then by email. An
	// email match is linked only when it carries no Google id yet, otherwise
	// ErrGoogleIDMismatch. With no match a patient is created and created is true.
	UpsertGooglePatient(ctx context.Context, profile GoogleProfile) (p *Patient, created bool, err error)
}
