package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/nutri-scheduling/internal/account"
	"github.com/hackgods/nutri-scheduling/internal/scheduling"
)

type SchedulingService interface {
	RegisterWindow(ctx context.Context, in scheduling.WindowInput) (*scheduling.AvailabilityWindow, error)
	ListWindows(ctx context.Context, providerID int64) ([]scheduling.ProviderWindow, error)
	ListOccupiedSlots(ctx context.Context, providerID int64) ([]scheduling.OccupiedSlot, error)
	SetAppointmentDuration(ctx context.Context, providerID int64, minutes int) error
	CreateAppointment(ctx context.Context, in scheduling.BookingInput) (*scheduling.Appointment, error)
	GetAppointment(ctx context.Context, id int64) (*scheduling.Appointment, error)
	ConfirmAppointment(ctx context.Context, id int64) (*scheduling.Appointment, error)
	CancelAppointment(ctx context.Context, id int64) (*scheduling.Appointment, error)
}

type AccountService interface {
	RegisterProvider(ctx context.Context, in account.ProviderRegistration) (*account.Provider, error)
	RegisterPatient(ctx context.Context, in account.PatientRegistration) (*account.Patient, error)
	LoginProvider(ctx context.Context, c account.Credentials) (*account.Session, error)
	LoginPatient(ctx context.Context, c account.Credentials) (*account.Session, error)
	GoogleSignIn(ctx context.Context, profile account.GoogleProfile) (*account.Session, bool, error)
	ListProviders(ctx context.Context) ([]account.ProviderSummary, error)
}

const defaultMaxUpload = 10 << 20

type RouterConfig struct {
	Scheduling SchedulingService
	Accounts   AccountService
	Health     *HealthHandler
	Logger     zerolog.Logger

	// login and registration limits per client IP
	RateLimitRPS   float64
	RateLimitBurst int
	MaxUploadBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoverMiddleware)

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	// Agenda endpoints
	r.Route("/agenda", func(r chi.Router) {
		r.Post("/salvar-data", saveWindowHandler(cfg.Scheduling))
		r.Get("/dias-disponiveis", listWindowsHandler(cfg.Scheduling))
		r.Get("/horarios-ocupados", listOccupiedHandler(cfg.Scheduling))
		r.Post("/tempo-atendimento", setDurationHandler(cfg.Scheduling))
	})

	// Appointment endpoints
	r.Route("/agendamento", func(r chi.Router) {
		r.Post("/novo", createAppointmentHandler(cfg.Scheduling))
		r.Get("/{id}", getAppointmentHandler(cfg.Scheduling))
		r.Post("/{id}/confirmar", confirmAppointmentHandler(cfg.Scheduling))
		r.Post("/{id}/cancelar", cancelAppointmentHandler(cfg.Scheduling))
	})

	// Account endpoints
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	r.Get("/nutricionistas/listar", listProvidersHandler(cfg.Accounts))
	r.Group(func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			r.Use(NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware)
		}
		r.Post("/nutricionista/cadastro", registerProviderHandler(cfg.Accounts, maxUpload))
		r.Post("/nutricionista/login", loginProviderHandler(cfg.Accounts))
		r.Post("/paciente/cadastro", registerPatientHandler(cfg.Accounts))
		r.Post("/paciente/login", loginPatientHandler(cfg.Accounts))
		r.Post("/paciente/google-auth", googleAuthHandler(cfg.Accounts))
	})

	return r
}
