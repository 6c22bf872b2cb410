package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"planora-backend/internal/service"
)

type AuthHandler struct {
	Auth         service.AuthService
	Associations service.AssociationService
}

func (h AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.login)
}

func (h AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/auth/me", h.me)
	r.Get("/auth/businesses", h.businesses)
	r.Post("/auth/switch-business", h.switchBusiness)
	r.Post("/auth/change-password", h.changePassword)
}

func (h AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.Auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var current any
	if res.CurrentBusiness != nil {
		current = associationResponse(*res.CurrentBusiness)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":     res.AccessToken,
		"expiresAt":       res.ExpiresAt.Format(time.RFC3339),
		"user":            userResponse(res.User),
		"businesses":      associationsResponse(res.Associations),
		"currentBusiness": current,
	})
}

func (h AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	user, assocs, err := h.Auth.Me(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var current any
	if id.CurrentBusiness != nil {
		current = associationResponse(*id.CurrentBusiness)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":              userResponse(*user),
		"businesses":        associationsResponse(assocs),
		"currentBusiness":   current,
		"effectiveBusiness": id.BusinessID,
	})
}

func (h AuthHandler) businesses(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	items, err := h.Associations.ListUserBusinesses(r.Context(), id.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, associationsResponse(items))
}

func (h AuthHandler) switchBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	var req struct {
		BusinessID int64 `json:"businessId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BusinessID <= 0 {
		writeError(w, http.StatusBadRequest, "businessId is required")
		return
	}
	ub, err := h.Associations.SwitchUserBusiness(r.Context(), id.UserID, req.BusinessID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Business switched", associationResponse(*ub))
}

func (h AuthHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Auth.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password updated", nil)
}
