package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/nutri-scheduling/internal/scheduling"
)

type Service struct {
	repo   Repository
	docs   DocumentStore
	tokens *TokenIssuer
	log    zerolog.Logger
}

func NewService(repo Repository, docs DocumentStore, tokens *TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		docs:   docs,
		tokens: tokens,
		log:    logger.With().Str("component", "account").Logger(),
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: email %q is malformed", ErrInvalidInput, raw)
	}
	return email, nil
}

func required(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
}

// RegisterProvider stores the license document and creates the provider.
// The document is removed again when the insert fails.
func (s *Service) RegisterProvider(ctx context.Context, in ProviderRegistration) (*Provider, error) {
	if err := required(map[string]string{
		"name":          in.Name,
		"phone":         in.Phone,
		"licenseNumber": in.LicenseNumber,
		"licenseRegion": in.LicenseRegion,
		"email":         in.Email,
		"password":      in.Password,
	}); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.Document == nil {
		return nil, fmt.Errorf("%w: license document is required", ErrInvalidInput)
	}
	if d := in.DurationMinutes; d != nil && (*d <= 0 || *d > scheduling.MaxAppointmentMinutes) {
		return nil, fmt.Errorf("%w: durationMinutes must be between 1 and %d", ErrInvalidInput, scheduling.MaxAppointmentMinutes)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ref, err := s.docs.Save(ctx, in.DocumentName, in.Document)
	if err != nil {
		return nil, fmt.Errorf("save license document: %w", err)
	}

	p := &Provider{
		Name:               strings.TrimSpace(in.Name),
		Phone:              strings.TrimSpace(in.Phone),
		Email:              email,
		PasswordHash:       hash,
		LicenseNumber:      strings.TrimSpace(in.LicenseNumber),
		LicenseRegion:      strings.ToUpper(strings.TrimSpace(in.LicenseRegion)),
		DocumentRef:        ref,
		AppointmentMinutes: in.DurationMinutes,
	}

	if err := s.repo.CreateProvider(ctx, p); err != nil {
		if rmErr := s.docs.Remove(ctx, ref); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("document", ref).Msg("failed to remove orphaned license document")
		}
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrLicenseTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create provider: %w", err)
	}

	s.log.Info().Int64("provider_id", p.ID).Str("license", p.License()).Msg("provider registered")
	return p, nil
}

func (s *Service) RegisterPatient(ctx context.Context, in PatientRegistration) (*Patient, error) {
	if err := required(map[string]string{
		"name":      in.Name,
		"phone":     in.Phone,
		"sex":       in.Sex,
		"birthDate": in.BirthDate,
		"email":     in.Email,
		"password":  in.Password,
	}); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	birth, err := time.Parse("2006-01-02", strings.TrimSpace(in.BirthDate))
	if err != nil {
		return nil, fmt.Errorf("%w: birthDate must be YYYY-MM-DD", ErrInvalidInput)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p := &Patient{
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		Sex:          strings.TrimSpace(in.Sex),
		BirthDate:    &birth,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.CreatePatient(ctx, p); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create patient: %w", err)
	}

	s.log.Info().Int64("patient_id", p.ID).Msg("patient registered")
	return p, nil
}

func (s *Service) LoginProvider(ctx context.Context, c Credentials) (*Session, error) {
	email, err := loginEmail(c)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.GetProviderByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if !CheckPassword(p.PasswordHash, c.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.session(p.ID, RoleProvider, p.Name, p.Email, p.Phone, p.License())
}

func (s *Service) LoginPatient(ctx context.Context, c Credentials) (*Session, error) {
	email, err := loginEmail(c)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.GetPatientByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if !CheckPassword(p.PasswordHash, c.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.session(p.ID, RolePatient, p.Name, p.Email, p.Phone, "")
}

func loginEmail(c Credentials) (string, error) {
	if strings.TrimSpace(c.Email) == "" || c.Password == "" {
		return "", fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	return strings.ToLower(strings.TrimSpace(c.Email)), nil
}

// GoogleSignIn logs a patient in from a Google identity, creating the account
// on first use. created is true when a new patient was inserted.
func (s *Service) GoogleSignIn(ctx context.Context, profile GoogleProfile) (sess *Session, created bool, err error) {
	if err := required(map[string]string{
		"googleId": profile.GoogleID,
		"email":    profile.Email,
		"name":     profile.Name,
	}); err != nil {
		return nil, false, err
	}
	email, err := normalizeEmail(profile.Email)
	if err != nil {
		return nil, false, err
	}
	profile.Email = email
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Phone = strings.TrimSpace(profile.Phone)
	profile.GoogleID = strings.TrimSpace(profile.GoogleID)

	p, created, err := s.repo.UpsertGooglePatient(ctx, profile)
	if err != nil {
		if errors.Is(err, ErrGoogleIDMismatch) {
			s.log.Warn().Str("email", profile.Email).Msg("google sign-in for an email linked to another google account")
			return nil, false, err
		}
		return nil, false, fmt.Errorf("upsert google patient: %w", err)
	}
	if created {
		s.log.Info().Int64("patient_id", p.ID).Msg("patient created from google sign-in")
	}

	sess, err = s.session(p.ID, RolePatient, p.Name, p.Email, p.Phone, "")
	if err != nil {
		return nil, false, err
	}
	return sess, created, nil
}

func (s *Service) ListProviders(ctx context.Context) ([]ProviderSummary, error) {
	providers, err := s.repo.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	if providers == nil {
		providers = []ProviderSummary{}
	}
	return providers, nil
}

func (s *Service) session(id int64, role Role, name, email, phone, license string) (*Session, error) {
	token, exp, err := s.tokens.Issue(id, role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{
		UserID:    id,
		Name:      name,
		Email:     email,
		Phone:     phone,
		Role:      role,
		License:   license,
		Token:     token,
		ExpiresAt: exp,
	}, nil
}
