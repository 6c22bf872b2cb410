package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"planora-backend/internal/domain"
	"planora-backend/internal/ports"
	"planora-backend/internal/service"
)

type NotificationHandler struct {
	Repo     ports.NotificationStore
	CatchUps service.CatchUpService
}

func (h NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/notifications", h.list)
	r.Put("/notifications/{id}/read", h.markRead)
	r.Put("/notifications/{id}/catchup-approve", h.approve)
	r.Put("/notifications/{id}/catchup-reject", h.reject)
}

func (h NotificationHandler) list(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	businessID, ok := requireBusiness(w, id)
	if !ok {
		return
	}
	f := domain.NotificationFilter{
		BusinessID: businessID,
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Limit:      200,
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		t := domain.NotificationType(raw)
		f.Type = &t
	}
	clientID, err := parseIDQuery(r, "clientId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid clientId")
		return
	}
	f.ClientID = clientID

	items, err := h.Repo.ListNotifications(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, n := range items {
		resp = append(resp, notificationResponse(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h NotificationHandler) markRead(w http.ResponseWriter, r *http.Request) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	businessID, ok := requireBusiness(w, id)
	if !ok {
		return
	}
	notificationID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Repo.MarkNotificationRead(r.Context(), businessID, notificationID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Notification marked as read", nil)
}

func (h NotificationHandler) approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h NotificationHandler) reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h NotificationHandler) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	id, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	notificationID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	n, err := h.CatchUps.SetCancellationApproval(r.Context(), id, notificationID, approve)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationResponse(*n))
}
