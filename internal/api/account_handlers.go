package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/hackgods/nutri-scheduling/internal/account"
	"github.com/hackgods/nutri-scheduling/internal/scheduling"
)

const documentField = "document"

func registerProviderHandler(svc AccountService, maxUpload int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, "upload_too_large", "license document is too large")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_request_body", "expected multipart/form-data")
			return
		}
		defer r.MultipartForm.RemoveAll()

		in := account.ProviderRegistration{
			Name:          r.FormValue("name"),
			Phone:         r.FormValue("phone"),
			LicenseNumber: r.FormValue("licenseNumber"),
			LicenseRegion: r.FormValue("licenseRegion"),
			Email:         r.FormValue("email"),
			Password:      r.FormValue("password"),
		}

		if raw := strings.TrimSpace(r.FormValue("durationMinutes")); raw != "" {
			minutes, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_input", "durationMinutes must be an integer")
				return
			}
			in.DurationMinutes = &minutes
		}

		file, header, err := r.FormFile(documentField)
		switch {
		case err == nil:
			defer file.Close()
			in.Document = file
			in.DocumentName = header.Filename
		case errors.Is(err, http.ErrMissingFile):
			// service reports the missing document
		default:
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not read license document")
			return
		}

		p, err := svc.RegisterProvider(r.Context(), in)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}

		minutes := scheduling.DefaultAppointmentMinutes
		if p.AppointmentMinutes != nil {
			minutes = *p.AppointmentMinutes
		}
		writeJSON(w, http.StatusCreated, ProviderResponse{
			ID:                 p.ID,
			Name:               p.Name,
			Email:              p.Email,
			Phone:              p.Phone,
			License:            p.License(),
			AppointmentMinutes: minutes,
		})
	}
}

func registerPatientHandler(svc AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterPatientRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		p, err := svc.RegisterPatient(r.Context(), account.PatientRegistration{
			Name:      req.Name,
			Phone:     req.Phone,
			Sex:       req.Sex,
			BirthDate: req.BirthDate,
			Email:     req.Email,
			Password:  req.Password,
		})
		if err != nil {
			handleAccountError(w, r, err)
			return
		}

		resp := PatientResponse{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone, Sex: p.Sex}
		if p.BirthDate != nil {
			resp.BirthDate = p.BirthDate.Format("2006-01-02")
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func loginProviderHandler(svc AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		sess, err := svc.LoginProvider(r.Context(), account.Credentials{Email: req.Email, Password: req.Password})
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(sess))
	}
}

func loginPatientHandler(svc AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		sess, err := svc.LoginPatient(r.Context(), account.Credentials{Email: req.Email, Password: req.Password})
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(sess))
	}
}

func googleAuthHandler(svc AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GoogleAuthRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		sess, created, err := svc.GoogleSignIn(r.Context(), account.GoogleProfile{
			GoogleID: req.GoogleID,
			Email:    req.Email,
			Name:     req.Name,
			Phone:    req.Phone,
		})
		if err != nil {
			handleAccountError(w, r, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, newSessionResponse(sess))
	}
}

func listProvidersHandler(svc AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers, err := svc.ListProviders(r.Context())
		if err != nil {
			handleAccountError(w, r, err)
			return
		}

		resp := make([]ProviderSummaryResponse, 0, len(providers))
		for _, p := range providers {
			resp = append(resp, ProviderSummaryResponse{ID: p.ID, Name: p.Name, License: p.License, Phone: p.Phone})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleAccountError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, account.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, account.ErrLicenseTaken):
		writeError(w, http.StatusConflict, "license_taken", err.Error())
	case errors.Is(err, account.ErrGoogleIDMismatch):
		writeError(w, http.StatusConflict, "google_account_mismatch", err.Error())
	default:
		writeInternal(w, r, err)
	}
}
