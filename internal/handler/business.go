package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"planora-backend/internal/domain"
	"planora-backend/internal/service"
)

// BusinessHandler covers the super-admin business lifecycle and each admin's join-request queue.
type BusinessHandler struct {
	Businesses   service.BusinessService
	Associations service.AssociationService
}

func (h BusinessHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/admin/businesses", h.list)
	r.Put("/admin/businesses/{id}/status", h.setStatus)
	r.Delete("/admin/businesses/{id}", h.deactivate)
	r.Delete("/admin/businesses/{id}/permanent", h.delete)
	r.Post("/admin/associations", h.addAssociation)
	r.Delete("/admin/associations", h.removeAssociation)
	r.Put("/admin/associations/role", h.updateRole)
	r.Get("/admin/businesses/{id}/users", h.businessUsers)
}

func (h BusinessHandler) RegisterOwnerRoutes(r chi.Router) {
	r.Get("/business/requests", h.requests)
	r.Post("/business/requests/{userId}/approve", h.approveRequest)
	r.Post("/business/requests/{userId}/reject", h.rejectRequest)
	r.Put("/clients/{id}/status", h.setClientStatus)
}

func (h BusinessHandler) list(w http.ResponseWriter, r *http.Request) {
	var status *domain.BusinessStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		s := domain.BusinessStatus(raw)
		status = &s
	}
	items, err := h.Businesses.List(r.Context(), status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for i := range items {
		resp = append(resp, businessResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h BusinessHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.Businesses.SetStatus(r.Context(), id, domain.BusinessStatus(strings.TrimSpace(req.Status)), req.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Business status updated", businessResponse(b))
}

func (h BusinessHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.Businesses.Deactivate(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Business deactivated", businessResponse(b))
}

func (h BusinessHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Businesses.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Business permanently deleted", nil)
}

type associationRequest struct {
	UserID     int64  `json:"userId"`
	BusinessID int64  `json:"businessId"`
	Role       string `json:"role"`
	IsActive   *bool  `json:"isActive"`
}

func (h BusinessHandler) addAssociation(w http.ResponseWriter, r *http.Request) {
	var req associationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID <= 0 || req.BusinessID <= 0 {
		writeError(w, http.StatusBadRequest, "userId and businessId are required")
		return
	}
	ub, err := h.Associations.AddUserToBusiness(r.Context(), req.UserID, req.BusinessID, domain.BusinessRole(req.Role), req.IsActive)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, associationResponse(*ub))
}

func (h BusinessHandler) removeAssociation(w http.ResponseWriter, r *http.Request) {
	var req associationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ub, err := h.Associations.RemoveUserFromBusiness(r.Context(), req.UserID, req.BusinessID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "User removed from business", associationResponse(*ub))
}

func (h BusinessHandler) updateRole(w http.ResponseWriter, r *http.Request) {
	var req associationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ub, err := h.Associations.UpdateUserRole(r.Context(), req.UserID, req.BusinessID, domain.BusinessRole(req.Role))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, associationResponse(*ub))
}

func (h BusinessHandler) businessUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	items, err := h.Associations.ListBusinessUsers(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, associationsResponse(items))
}

func (h BusinessHandler) requests(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	businessID, ok := requireBusiness(w, id)
	if !ok {
		return
	}
	items, err := h.Associations.ListPendingRequests(r.Context(), businessID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, associationsResponse(items))
}

func (h BusinessHandler) approveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	businessID, ok := requireBusiness(w, id)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	ub, err := h.Associations.ApproveRequest(r.Context(), businessID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Request approved", associationResponse(*ub))
}

func (h BusinessHandler) rejectRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	businessID, ok := requireBusiness(w, id)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	if err := h.Associations.RejectRequest(r.Context(), businessID, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Request rejected", nil)
}

func (h BusinessHandler) setClientStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	businessID, ok := requireBusiness(w, id)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ub, err := h.Associations.SetClientStatus(r.Context(), businessID, userID, domain.ClientStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Client status updated", associationResponse(*ub))
}
