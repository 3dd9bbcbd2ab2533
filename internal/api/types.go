package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hackgods/nutri-scheduling/internal/account"
	"github.com/hackgods/nutri-scheduling/internal/scheduling"
)

// FlexInt accepts a JSON number or a numeric string. Form-based frontends
// send ids as strings. Empty and null decode to zero.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("expected an integer, got %s", b)
	}
	*f = FlexInt(n)
	return nil
}

// FlexMonth accepts 3, "3", "03", "Março" or "marco".
type FlexMonth scheduling.Month

func (m *FlexMonth) UnmarshalJSON(b []byte) error {
	var n FlexInt
	if err := n.UnmarshalJSON(b); err == nil {
		*m = FlexMonth(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected a month number or name, got %s", b)
	}
	parsed, err := scheduling.ParseMonth(s)
	if err != nil {
		return err
	}
	*m = FlexMonth(parsed)
	return nil
}

// -- requests --

type SaveWindowRequest struct {
	ProviderID FlexInt   `json:"providerId"`
	Month      FlexMonth `json:"month"`
	Day        FlexInt   `json:"day"`
	Year       FlexInt   `json:"year"`
	StartTime  string    `json:"startTime"`
	EndTime    string    `json:"endTime"`
}

type CreateAppointmentRequest struct {
	PatientID    FlexInt `json:"patientId"`
	ProviderID   FlexInt `json:"providerId"`
	SelectedDate string  `json:"selectedDate"`
	Time         string  `json:"time"`
	Status       string  `json:"status"`
}

type SetDurationRequest struct {
	ProviderID FlexInt `json:"providerId"`
	Minutes    FlexInt `json:"minutes"`
}

type RegisterPatientRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Sex       string `json:"sex"`
	BirthDate string `json:"birthDate"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GoogleAuthRequest struct {
	GoogleID string `json:"googleId"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// -- responses --

type CreatedResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type WindowResponse struct {
	ID              int64  `json:"id"`
	ProviderID      int64  `json:"providerId"`
	Year            int    `json:"year"`
	Month           int    `json:"month"`
	MonthName       string `json:"monthName"`
	Day             int    `json:"day"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	DurationMinutes int    `json:"durationMinutes"`
}

func newWindowResponse(w scheduling.ProviderWindow) WindowResponse {
	return WindowResponse{
		ID:              w.ID,
		ProviderID:      w.ProviderID,
		Year:            w.Year,
		Month:           int(w.Month),
		MonthName:       w.Month.Name(),
		Day:             w.Day,
		StartTime:       w.StartTime,
		EndTime:         w.EndTime,
		DurationMinutes: w.DurationMinutes,
	}
}

type OccupiedSlotResponse struct {
	Day       int    `json:"day"`
	Month     int    `json:"month"`
	MonthName string `json:"monthName"`
	Year      int    `json:"year"`
	Time      string `json:"time"`
}

func newOccupiedSlotResponse(s scheduling.OccupiedSlot) OccupiedSlotResponse {
	return OccupiedSlotResponse{
		Day:       s.Day,
		Month:     int(s.Month),
		MonthName: s.Month.Name(),
		Year:      s.Year,
		Time:      s.Time,
	}
}

type AppointmentResponse struct {
	ID         int64     `json:"id"`
	PatientID  int64     `json:"patientId"`
	ProviderID int64     `json:"providerId"`
	Date       string    `json:"date"`
	MonthName  string    `json:"monthName"`
	Time       string    `json:"time"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func newAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		PatientID:  a.PatientID,
		ProviderID: a.ProviderID,
		Date:       fmt.Sprintf("%04d-%02d-%02d", a.Year, int(a.Month), a.Day),
		MonthName:  a.Month.Name(),
		Time:       a.Time,
		Status:     string(a.Status),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

type UserResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Role    string `json:"role"`
	License string `json:"license,omitempty"`
}

type SessionResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

func newSessionResponse(s *account.Session) SessionResponse {
	return SessionResponse{
		User: UserResponse{
			ID:      s.UserID,
			Name:    s.Name,
			Email:   s.Email,
			Phone:   s.Phone,
			Role:    string(s.Role),
			License: s.License,
		},
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
	}
}

type ProviderResponse struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	License            string `json:"license"`
	AppointmentMinutes int    `json:"appointmentMinutes"`
}

type PatientResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Sex       string `json:"sex"`
	BirthDate string `json:"birthDate,omitempty"`
}

type ProviderSummaryResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	License string `json:"license"`
	Phone   string `json:"phone"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
