package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"planora-backend/internal/domain"
	"planora-backend/internal/ports"
)

type ClassHandler struct {
	Repo ports.ClassStore
}

func (h ClassHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/classes", h.create)
}

func (h ClassHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/classes", h.list)
}

func (h ClassHandler) list(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	businessID, ok := requireBusiness(w, id)
	if !ok {
		return
	}
	items, err := h.Repo.ListClasses(r.Context(), businessID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, c := range items {
		resp = append(resp, classResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h ClassHandler) create(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	businessID, ok := requireBusiness(w, id)
	if !ok {
		return
	}
	var req struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		ClassType    string `json:"classType"`
		MaxCapacity  int    `json:"maxCapacity"`
		InstructorID *int64 `json:"instructorId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	classType := domain.ClassType(req.ClassType)
	switch classType {
	case "":
		classType = domain.ClassTypeGroup
	case domain.ClassTypeGroup, domain.ClassTypePrivate:
	default:
		writeError(w, http.StatusBadRequest, "classType must be private or group")
		return
	}
	if req.MaxCapacity <= 0 {
		writeError(w, http.StatusBadRequest, "maxCapacity must be positive")
		return
	}
	c := &domain.Class{
		BusinessID:   businessID,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		ClassType:    classType,
		MaxCapacity:  req.MaxCapacity,
		InstructorID: req.InstructorID,
		IsActive:     true,
	}
	if err := h.Repo.CreateClass(r.Context(), c); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, classResponse(*c))
}
