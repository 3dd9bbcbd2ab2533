package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/nutri-scheduling/internal/scheduling"
)

func saveWindowHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveWindowRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		win, err := svc.RegisterWindow(r.Context(), scheduling.WindowInput{
			ProviderID: int64(req.ProviderID),
			Year:       int(req.Year),
			Month:      scheduling.Month(req.Month),
			Day:        int(req.Day),
			StartTime:  req.StartTime,
			EndTime:    req.EndTime,
		})
		if err != nil {
			handleSchedulingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, CreatedResponse{ID: win.ID, Message: "availability saved"})
	}
}

func listWindowsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := queryID(w, r, "providerId")
		if !ok {
			return
		}

		windows, err := svc.ListWindows(r.Context(), providerID)
		if err != nil {
			handleSchedulingError(w, r, err)
			return
		}

		resp := make([]WindowResponse, 0, len(windows))
		for _, win := range windows {
			resp = append(resp, newWindowResponse(win))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listOccupiedHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := queryID(w, r, "providerId")
		if !ok {
			return
		}

		slots, err := svc.ListOccupiedSlots(r.Context(), providerID)
		if err != nil {
			handleSchedulingError(w, r, err)
			return
		}

		resp := make([]OccupiedSlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, newOccupiedSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func setDurationHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetDurationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		if err := svc.SetAppointmentDuration(r.Context(), int64(req.ProviderID), int(req.Minutes)); err != nil {
			handleSchedulingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, MessageResponse{Message: "appointment duration updated"})
	}
}

func createAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), scheduling.BookingInput{
			PatientID:    int64(req.PatientID),
			ProviderID:   int64(req.ProviderID),
			SelectedDate: req.SelectedDate,
			Time:         req.Time,
			Status:       req.Status,
		})
		if err != nil {
			handleSchedulingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, newAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func confirmAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		appt, err := svc.ConfirmAppointment(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_"+name, name+" query parameter is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func handleSchedulingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, scheduling.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrWindowExists):
		writeError(w, http.StatusConflict, "window_exists", err.Error())
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, scheduling.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeInternal(w, r, err)
	}
}
