package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"planora-backend/internal/domain"
	"planora-backend/internal/service"
)

type EmployeeHandler struct {
	Service service.EmployeeService
}

func (h EmployeeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/employees", h.list)
	r.Put("/employees/{id}/approve", h.approve)
	r.Put("/employees/{id}/reject", h.reject)
	r.Put("/employees/{id}/suspend", h.suspend)
}

func (h EmployeeHandler) list(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	var status *domain.EmployeeStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.EmployeeStatus(raw)
		status = &s
	}
	items, err := h.Service.List(r.Context(), id, status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, e := range items {
		resp = append(resp, employeeResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h EmployeeHandler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	employeeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	e, err := h.Service.Approve(r.Context(), id, employeeID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Employee approved", employeeResponse(*e))
}

func (h EmployeeHandler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	employeeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	// An empty body is a rejection without a reason.
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.Service.Reject(r.Context(), id, employeeID, req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Employee rejected", employeeResponse(*e))
}

func (h EmployeeHandler) suspend(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	employeeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	e, err := h.Service.Suspend(r.Context(), id, employeeID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Employee suspended", employeeResponse(*e))
}
