package service

import (
	"context"
	"fmt"
	"log/slog"

	"planora-backend/internal/domain"
	"planora-backend/internal/ports"
)

// BusinessService holds the super-admin lifecycle operations.
type BusinessService struct {
	Businesses ports.BusinessStore
	Users      ports.UserStore
	Notifier   ports.Notifier
	Logger     *slog.Logger
}

func (s BusinessService) List(ctx context.Context, status *domain.BusinessStatus) ([]domain.Business, error) {
	return s.Businesses.ListBusinesses(ctx, status)
}

// SetStatus moves a business between pending, active and suspended. Any status
// change also clears the soft-delete flag.
func (s BusinessService) SetStatus(ctx context.Context, businessID int64, status domain.BusinessStatus, notes string) (*domain.Business, error) {
	switch status {
	case domain.BusinessStatusPending, domain.BusinessStatusActive, domain.BusinessStatusSuspended:
	default:
		return nil, domain.BadRequestf("invalid business status %q", status)
	}
	b, err := s.Businesses.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if b.Status == status && b.IsActive {
		return b, nil
	}
	previous := b.Status
	b.Status = status
	b.StatusNotes = notes
	b.IsActive = true
	if err := s.Businesses.UpdateBusinessStatus(ctx, b); err != nil {
		return nil, err
	}
	s.Logger.Info("business status changed", "business_id", b.ID, "from", previous, "to", status)

	if previous != status {
		s.notifyStatus(ctx, b)
	}
	return b, nil
}

func (s BusinessService) notifyStatus(ctx context.Context, b *domain.Business) {
	var subject, body string
	switch b.Status {
	case domain.BusinessStatusActive:
		subject = "Your business has been activated"
		body = fmt.Sprintf("<p>%s is now active. Your team and clients can start booking sessions.</p>", b.Name)
	case domain.BusinessStatusSuspended:
		subject = "Your business account has been suspended"
		body = fmt.Sprintf("<p>%s has been suspended.</p>", b.Name)
		if b.StatusNotes != "" {
			body += fmt.Sprintf("<p>Reason: %s</p>", b.StatusNotes)
		}
	default:
		return
	}

	to := b.Email
	if b.AdminUserID != nil {
		if admin, err := s.Users.GetUser(ctx, *b.AdminUserID); err == nil {
			to = admin.Email
		} else {
			s.Logger.Warn("business admin lookup failed", "business_id", b.ID, "err", err)
		}
	}
	s.Notifier.Notify(ctx, domain.Email{To: to, Subject: subject, Body: body})
}

// Deactivate hides the business without deleting its data.
func (s BusinessService) Deactivate(ctx context.Context, businessID int64) (*domain.Business, error) {
	b, err := s.Businesses.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !b.IsActive {
		return b, nil
	}
	b.IsActive = false
	if err := s.Businesses.UpdateBusinessStatus(ctx, b); err != nil {
		return nil, err
	}
	s.Logger.Info("business deactivated", "business_id", b.ID)
	return b, nil
}

// Delete permanently removes the business and everything scoped to it.
func (s BusinessService) Delete(ctx context.Context, businessID int64) error {
	if err := s.Businesses.DeleteBusiness(ctx, businessID); err != nil {
		return err
	}
	s.Logger.Warn("business permanently deleted", "business_id", businessID)
	return nil
}
