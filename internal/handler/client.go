package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"planora-backend/internal/domain"
	"planora-backend/internal/service"
)

type ClientHandler struct {
	Clients  service.ClientService
	CatchUps service.CatchUpService
}

// RegisterStaffRoutes holds the admin-only client operations.
func (h ClientHandler) RegisterStaffRoutes(r chi.Router) {
	r.Post("/clients", h.create)
	r.Get("/clients/catchup-requests", h.catchUpRequests)
	r.Put("/clients/{id}/catchup-approve", h.approveCatchUp)
	r.Put("/clients/{id}/catchup-reject", h.rejectCatchUp)
}

// RegisterMemberRoutes holds the routes a client uses for their own household.
func (h ClientHandler) RegisterMemberRoutes(r chi.Router) {
	r.Get("/members", h.listMembers)
	r.Post("/members", h.addMember)
	r.Put("/members/{id}", h.updateMember)
	r.Delete("/members/{id}", h.removeMember)
	r.Get("/catchup", h.catchUpOverview)
	r.Post("/sessions/{id}/catchup", h.bookCatchUp)
}

// memberRequest has no slot for ownership fields; stripImmutable drops them first.
type memberRequest struct {
	FirstName        *string                  `json:"firstName"`
	LastName         *string                  `json:"lastName"`
	Phone            *string                  `json:"phone"`
	DateOfBirth      *string                  `json:"dateOfBirth"`
	Relationship     *string                  `json:"relationship"`
	EmergencyContact *domain.EmergencyContact `json:"emergencyContact"`
	Address          *domain.Address          `json:"address"`
	Notes            *string                  `json:"notes"`
}

var immutableMemberFields = []string{"isPrimary", "addedBy", "userId", "businessId", "id"}

// stripImmutable removes ownership fields from a member payload and reports which were present.
func stripImmutable(payload map[string]json.RawMessage) []string {
	var stripped []string
	for _, key := range immutableMemberFields {
		if _, ok := payload[key]; ok {
			delete(payload, key)
			stripped = append(stripped, key)
		}
	}
	sort.Strings(stripped)
	return stripped
}

func decodeMember(w http.ResponseWriter, r *http.Request) (*memberRequest, bool) {
	var raw map[string]json.RawMessage
	if !decodeJSON(w, r, &raw) {
		return nil, false
	}
	if stripped := stripImmutable(raw); len(stripped) > 0 {
		slog.DebugContext(r.Context(), "ignored immutable member fields", "fields", stripped)
	}
	clean, err := json.Marshal(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return nil, false
	}
	var req memberRequest
	if err := json.Unmarshal(clean, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return nil, false
	}
	return &req, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h ClientHandler) create(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	var req struct {
		UserID int64 `json:"userId"`
		memberRequest
		IsPrimary *bool `json:"isPrimary"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	dob, err := parseDate(deref(req.DateOfBirth))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dateOfBirth")
		return
	}
	in := service.ClientInput{
		UserID:       req.UserID,
		FirstName:    deref(req.FirstName),
		LastName:     deref(req.LastName),
		Phone:        deref(req.Phone),
		DateOfBirth:  dob,
		Notes:        deref(req.Notes),
		IsPrimary:    req.IsPrimary,
		Relationship: domain.Relationship(deref(req.Relationship)),
	}
	if req.EmergencyContact != nil {
		in.EmergencyContact = *req.EmergencyContact
	}
	if req.Address != nil {
		in.Address = *req.Address
	}
	c, err := h.Clients.CreateClient(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, clientResponse(*c))
}

func (h ClientHandler) listMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	household, err := h.Clients.ListMembers(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var primary any
	if household.Primary != nil {
		primary = clientResponse(*household.Primary)
	}
	members := make([]map[string]any, 0, len(household.Members))
	for _, m := range household.Members {
		members = append(members, clientResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"primary": primary,
		"members": members,
	})
}

func (h ClientHandler) addMember(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	req, ok := decodeMember(w, r)
	if !ok {
		return
	}
	dob, err := parseDate(deref(req.DateOfBirth))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dateOfBirth")
		return
	}
	in := service.ClientInput{
		FirstName:    deref(req.FirstName),
		LastName:     deref(req.LastName),
		Phone:        deref(req.Phone),
		DateOfBirth:  dob,
		Notes:        deref(req.Notes),
		Relationship: domain.Relationship(deref(req.Relationship)),
	}
	if req.EmergencyContact != nil {
		in.EmergencyContact = *req.EmergencyContact
	}
	if req.Address != nil {
		in.Address = *req.Address
	}
	m, err := h.Clients.AddMember(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Member added", clientResponse(*m))
}

func (h ClientHandler) updateMember(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	memberID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := decodeMember(w, r)
	if !ok {
		return
	}
	patch := service.MemberPatch{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Phone:            req.Phone,
		EmergencyContact: req.EmergencyContact,
		Address:          req.Address,
		Notes:            req.Notes,
	}
	if req.DateOfBirth != nil {
		dob, err := parseDate(*req.DateOfBirth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid dateOfBirth")
			return
		}
		patch.DateOfBirth = dob
	}
	if req.Relationship != nil {
		rel := domain.Relationship(*req.Relationship)
		patch.Relationship = &rel
	}
	m, err := h.Clients.UpdateMember(r.Context(), id, memberID, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Member updated", clientResponse(*m))
}

func (h ClientHandler) removeMember(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	memberID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Clients.RemoveMember(r.Context(), id, memberID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Member removed", nil)
}

func (h ClientHandler) approveCatchUp(w http.ResponseWriter, r *http.Request) {
	h.decideCatchUp(w, r, true)
}

func (h ClientHandler) rejectCatchUp(w http.ResponseWriter, r *http.Request) {
	h.decideCatchUp(w, r, false)
}

func (h ClientHandler) decideCatchUp(w http.ResponseWriter, r *http.Request, approve bool) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	clientID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.CatchUps.SetClientApproval(r.Context(), id, clientID, approve)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clientResponse(*c))
}

func (h ClientHandler) catchUpRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	items, err := h.CatchUps.ListRequests(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, item := range items {
		cancellations := make([]map[string]any, 0, len(item.Cancellations))
		for _, n := range item.Cancellations {
			cancellations = append(cancellations, notificationResponse(n))
		}
		resp = append(resp, map[string]any{
			"client":              clientResponse(item.Client),
			"recentCancellations": cancellations,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h ClientHandler) catchUpOverview(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	ov, err := h.CatchUps.Overview(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	opportunities := make([]map[string]any, 0, len(ov.Opportunities))
	for i := range ov.Opportunities {
		op := ov.Opportunities[i]
		entry := sessionResponse(&op.Session)
		entry["nextOccurrence"] = formatDate(op.NextOccurrence)
		opportunities = append(opportunities, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"approvalStatus": ov.ApprovalStatus,
		"credits":        ov.Credits,
		"opportunities":  opportunities,
	})
}

func (h ClientHandler) bookCatchUp(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		ClientID int64 `json:"clientId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ClientID <= 0 {
		writeError(w, http.StatusBadRequest, "clientId is required")
		return
	}
	sess, err := h.CatchUps.BookCatchUp(r.Context(), id, sessionID, req.ClientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Catch-up session booked", sessionResponse(sess))
}
