package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"planora-backend/internal/domain"
	"planora-backend/internal/service"
)

type SessionHandler struct {
	Sessions service.SessionService
}

// RegisterAdminRoutes holds schedule management.
func (h SessionHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/sessions", h.create)
	r.Put("/sessions/{id}", h.update)
	r.Put("/sessions/{id}/status", h.setStatus)
	r.Delete("/sessions/{id}", h.delete)
	r.Get("/sessions/{id}/roster.xlsx", h.exportRoster)
}

func (h SessionHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/sessions", h.list)
	r.Put("/sessions/{id}/attendance", h.attendance)
}

// RegisterRosterRoutes is open to staff and clients; the service checks who may act for which client.
func (h SessionHandler) RegisterRosterRoutes(r chi.Router) {
	r.Get("/sessions/{id}", h.get)
	r.Post("/sessions/{id}/enroll", h.enroll)
	r.Post("/sessions/{id}/cancel", h.cancel)
	r.Post("/sessions/{id}/waitlist/leave", h.leaveWaitlist)
}

type sessionRequest struct {
	ClassID      int64   `json:"classId"`
	InstructorID *int64  `json:"instructorId"`
	Date         *string `json:"date"`
	StartTime    *string `json:"startTime"`
	EndTime      *string `json:"endTime"`
	DayOfWeek    *string `json:"dayOfWeek"`
	IsRecurring  *bool   `json:"isRecurring"`
	Notes        *string `json:"notes"`
}

func (req sessionRequest) schedule() (*time.Time, *time.Weekday, error) {
	var date *time.Time
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			return nil, nil, domain.BadRequestf("date must be YYYY-MM-DD")
		}
		date = d
	}
	var day *time.Weekday
	if req.DayOfWeek != nil && strings.TrimSpace(*req.DayOfWeek) != "" {
		d, err := domain.ParseWeekday(*req.DayOfWeek)
		if err != nil {
			return nil, nil, err
		}
		day = &d
	}
	return date, day, nil
}

func (h SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	var req sessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, day, err := req.schedule()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	in := service.SessionInput{
		ClassID:   req.ClassID,
		Date:      date,
		DayOfWeek: day,
		StartTime: deref(req.StartTime),
		EndTime:   deref(req.EndTime),
		Notes:     deref(req.Notes),
	}
	if req.InstructorID != nil {
		in.InstructorID = *req.InstructorID
	}
	if req.IsRecurring != nil {
		in.IsRecurring = *req.IsRecurring
	}
	sess, err := h.Sessions.CreateSession(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(sess))
}

func (h SessionHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req sessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, day, err := req.schedule()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sess, err := h.Sessions.UpdateSession(r.Context(), id, sessionID, service.SessionUpdate{
		InstructorID: req.InstructorID,
		Date:         date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		DayOfWeek:    day,
		IsRecurring:  req.IsRecurring,
		Notes:        req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (h SessionHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.Sessions.SetStatus(r.Context(), id, sessionID, domain.SessionStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (h SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Sessions.DeleteSession(r.Context(), id, sessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Session deleted", nil)
}

func (h SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	from, err := parseDateQuery(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}
	to, err := parseDateQuery(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to")
		return
	}
	if from != nil && to != nil && from.After(*to) {
		writeError(w, http.StatusBadRequest, "from must be before to")
		return
	}
	instructorID, err := parseIDQuery(r, "instructorId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid instructorId")
		return
	}
	classID, err := parseIDQuery(r, "classId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid classId")
		return
	}
	f := domain.SessionFilter{From: from, To: to, InstructorID: instructorID, ClassID: classID}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.SessionStatus(raw)
		f.Status = &status
	}
	items, err := h.Sessions.ListSessions(r.Context(), id, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for i := range items {
		resp = append(resp, sessionResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sess, err := h.Sessions.GetSession(r.Context(), id, sessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

type rosterRequest struct {
	ClientID int64  `json:"clientId"`
	Status   string `json:"status"`
}

func decodeRoster(w http.ResponseWriter, r *http.Request) (int64, rosterRequest, bool) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return 0, rosterRequest{}, false
	}
	var req rosterRequest
	if !decodeJSON(w, r, &req) {
		return 0, rosterRequest{}, false
	}
	if req.ClientID <= 0 {
		writeError(w, http.StatusBadRequest, "clientId is required")
		return 0, rosterRequest{}, false
	}
	return sessionID, req, true
}

func (h SessionHandler) enroll(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	sessionID, req, ok := decodeRoster(w, r)
	if !ok {
		return
	}
	res, err := h.Sessions.EnrollClient(r.Context(), id, sessionID, req.ClientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	data := sessionResponse(res.Session)
	data["outcome"] = res.Outcome
	writeMessage(w, http.StatusOK, res.Message, data)
}

func (h SessionHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	sessionID, req, ok := decodeRoster(w, r)
	if !ok {
		return
	}
	res, err := h.Sessions.CancelEnrollment(r.Context(), id, sessionID, req.ClientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	data := sessionResponse(res.Session)
	if res.Promoted != nil {
		data["promotedClientId"] = res.Promoted.ClientID
	}
	writeMessage(w, http.StatusOK, "Enrollment cancelled", data)
}

func (h SessionHandler) leaveWaitlist(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	sessionID, req, ok := decodeRoster(w, r)
	if !ok {
		return
	}
	sess, err := h.Sessions.LeaveWaitlist(r.Context(), id, sessionID, req.ClientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Removed from waitlist", sessionResponse(sess))
}

func (h SessionHandler) attendance(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	sessionID, req, ok := decodeRoster(w, r)
	if !ok {
		return
	}
	sess, err := h.Sessions.MarkAttendance(r.Context(), id, sessionID, req.ClientID, domain.EnrollmentStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}
