package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"medibook/internal/metrics"
	"medibook/internal/models"
)

// pathID splits "/{id}" or "/{id}/{action}" off a route prefix.
func pathID(path, prefix string) (int64, string, error) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return 0, "", fmt.Errorf("id is required")
	}
	parts := strings.SplitN(rest, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid id %q", parts[0])
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action, nil
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func (s *HTTPServer) handleLocations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("locations")
	switch r.Method {
	case http.MethodGet:
		locations, err := s.schedule.ListLocations(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"locations": locations})
	case http.MethodPost:
		var location models.Location
		if err := decodeBody(r, &location); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(location.Name) == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if err := s.schedule.CreateLocation(r.Context(), &location); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, location)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleLocation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("location")
	id, action, err := pathID(r.URL.Path, "/api/v1/locations/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if action == "days" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		days, err := s.schedule.ListServiceDays(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"service_days": days})
		return
	}
	if action != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		location, err := s.schedule.GetLocation(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, location)
	case http.MethodPut:
		var location models.Location
		if err := decodeBody(r, &location); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		location.ID = id
		if err := s.schedule.UpdateLocation(r.Context(), &location); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, location)
	case http.MethodDelete:
		if err := s.schedule.DeleteLocation(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type serviceDayRequest struct {
	LocationID  int64  `json:"location_id"`
	Date        string `json:"date"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	SlotMinutes int    `json:"slot_minutes"`
	Notes       string `json:"notes"`
}

func (req *serviceDayRequest) toModel() (*models.ServiceDay, error) {
	date, err := time.Parse(models.DateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return nil, fmt.Errorf("invalid date format; expected YYYY-MM-DD")
	}
	return &models.ServiceDay{
		LocationID:  req.LocationID,
		Date:        date,
		WindowStart: strings.TrimSpace(req.WindowStart),
		WindowEnd:   strings.TrimSpace(req.WindowEnd),
		SlotMinutes: req.SlotMinutes,
		Notes:       req.Notes,
	}, nil
}

func (s *HTTPServer) handleServiceDays(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("service_days")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req serviceDayRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	day, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.schedule.CreateServiceDay(r.Context(), day); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, day)
}

func (s *HTTPServer) handleServiceDay(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("service_day")
	id, action, err := pathID(r.URL.Path, "/api/v1/service-days/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch action {
	case "":
		s.serviceDayCRUD(w, r, id)
	case "slots":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		openOnly := r.URL.Query().Get("open") == "true"
		slots, err := s.schedule.ListSlots(r.Context(), id, openOnly)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
	case "generate":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		inserted, err := s.schedule.GenerateSlots(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"inserted": inserted})
	case "regenerate":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		inserted, err := s.schedule.RegenerateSlots(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"inserted": inserted})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) serviceDayCRUD(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		day, err := s.schedule.GetServiceDay(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, day)
	case http.MethodPut:
		var req serviceDayRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		day, err := req.toModel()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		day.ID = id
		if err := s.schedule.UpdateServiceDay(r.Context(), day); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, day)
	case http.MethodDelete:
		if err := s.schedule.DeleteServiceDay(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type claimRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Organization string `json:"organization"`
	Attendees    int    `json:"attendees"`
	ConfirmNow   bool   `json:"confirm_now"`
}

func (s *HTTPServer) handleSlot(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slot")
	id, action, err := pathID(r.URL.Path, "/api/v1/slots/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if action != "claim" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	details := models.BookingDetails{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		Organization: strings.TrimSpace(req.Organization),
		Attendees:    req.Attendees,
	}
	booking, err := s.reservations.ClaimSlot(r.Context(), id, details, req.ConfirmNow)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start, end, err := dateRange(r, models.DefaultExportRangeDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.reservations.ListBookings(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

type rescheduleRequest struct {
	NewSlotID int64 `json:"new_slot_id"`
}

func (s *HTTPServer) handleBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking")
	id, action, err := pathID(r.URL.Path, "/api/v1/bookings/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if action == "" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		booking, err := s.reservations.GetBooking(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	switch action {
	case "confirm":
		if err := s.reservations.ConfirmBooking(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": models.StatusConfirmed})
	case "cancel":
		if err := s.reservations.CancelBooking(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": models.StatusCancelled})
	case "reschedule":
		var req rescheduleRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.NewSlotID <= 0 {
			writeError(w, http.StatusBadRequest, "new_slot_id is required")
			return
		}
		if err := s.reservations.RescheduleBooking(r.Context(), id, req.NewSlotID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"slot_id": req.NewSlotID})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_bookings")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "exports are disabled")
		return
	}

	start, end, err := dateRange(r, models.DefaultExportRangeDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filePath, err := s.exporter.BookingsToFile(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file_path": filePath})
}

func (s *HTTPServer) handleSweep(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sweep")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	expired, err := s.reservations.SweepExpiredHolds(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expired": expired})
}

// dateRange reads from/to query params, defaulting to today through today
// plus rangeDays.
func dateRange(r *http.Request, rangeDays int) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := now.Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, rangeDays)

	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date; expected YYYY-MM-DD")
		}
		start = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date; expected YYYY-MM-DD")
		}
		end = parsed.AddDate(0, 0, 1)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("to must not precede from")
	}
	return start, end, nil
}
