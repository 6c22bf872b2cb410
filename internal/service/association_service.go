package service

import (
	"context"
	"fmt"
	"log/slog"

	"planora-backend/internal/domain"
	"planora-backend/internal/ports"
)

// AssociationService owns every write to user_businesses.
type AssociationService struct {
	Tx           ports.Transactor
	Users        ports.UserStore
	Businesses   ports.BusinessStore
	Associations ports.AssociationStore
	Clients      ports.ClientStore
	Notifier     ports.Notifier
	Logger       *slog.Logger
}

// AddUserToBusiness creates the association, or reactivates an inactive one in
// place with the new role. isActive overrides the role's default activation.
func (s AssociationService) AddUserToBusiness(ctx context.Context, userID, businessID int64, role domain.BusinessRole, isActive *bool) (*domain.UserBusiness, error) {
	if !role.Valid() {
		return nil, domain.BadRequestf("invalid role %q", role)
	}
	active := domain.DefaultActivation(role)
	if isActive != nil {
		active = *isActive
	}

	var out *domain.UserBusiness
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.Users.GetUser(ctx, userID); err != nil {
			return err
		}
		biz, err := s.Businesses.GetBusiness(ctx, businessID)
		if err != nil {
			return err
		}

		existing, err := s.Associations.GetAssociation(ctx, userID, businessID)
		switch {
		case err == nil:
			if existing.IsActive {
				return domain.Conflictf("user is already associated with this business")
			}
			existing.Role = role
			existing.IsActive = active
			existing.Permissions = domain.DefaultPermissions(role)
			if err := s.Associations.UpdateAssociation(ctx, existing); err != nil {
				return err
			}
			out = existing
		case isNotFound(err):
			ub := &domain.UserBusiness{
				UserID:      userID,
				BusinessID:  businessID,
				Role:        role,
				IsActive:    active,
				Permissions: domain.DefaultPermissions(role),
			}
			if err := s.Associations.CreateAssociation(ctx, ub); err != nil {
				return err
			}
			out = ub
		default:
			return err
		}
		out.Business = biz
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("user added to business", "user_id", userID, "business_id", businessID, "role", role, "active", out.IsActive)
	return out, nil
}

// RemoveUserFromBusiness deactivates the association and clears the user's
// current business when it pointed there.
func (s AssociationService) RemoveUserFromBusiness(ctx context.Context, userID, businessID int64) (*domain.UserBusiness, error) {
	var out *domain.UserBusiness
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		ub, err := s.Associations.GetAssociation(ctx, userID, businessID)
		if err != nil {
			return err
		}
		if !ub.IsActive {
			return domain.NotFoundf("active association not found")
		}
		ub.IsActive = false
		if err := s.Associations.UpdateAssociation(ctx, ub); err != nil {
			return err
		}
		user, err := s.Users.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user.CurrentBusinessID != nil && *user.CurrentBusinessID == businessID {
			if err := s.Users.SetCurrentBusiness(ctx, userID, nil); err != nil {
				return err
			}
		}
		out = ub
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("user removed from business", "user_id", userID, "business_id", businessID)
	return out, nil
}

func (s AssociationService) SwitchUserBusiness(ctx context.Context, userID, businessID int64) (*domain.UserBusiness, error) {
	ub, err := s.Associations.GetAssociation(ctx, userID, businessID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if ub == nil || !ub.IsActive {
		return nil, domain.Forbiddenf("you do not have access to this business")
	}
	if err := s.Users.SetCurrentBusiness(ctx, userID, &businessID); err != nil {
		return nil, err
	}
	biz, err := s.Businesses.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	ub.Business = biz
	return ub, nil
}

func (s AssociationService) ListUserBusinesses(ctx context.Context, userID int64) ([]domain.UserBusiness, error) {
	return s.Associations.ListUserAssociations(ctx, userID, true)
}

func (s AssociationService) ListBusinessUsers(ctx context.Context, businessID int64) ([]domain.UserBusiness, error) {
	return s.Associations.ListBusinessAssociations(ctx, businessID, ptr(true))
}

// UpdateUserRole changes the role of an active association and re-derives its permissions.
func (s AssociationService) UpdateUserRole(ctx context.Context, userID, businessID int64, role domain.BusinessRole) (*domain.UserBusiness, error) {
	if !role.Valid() {
		return nil, domain.BadRequestf("invalid role %q", role)
	}
	ub, err := s.Associations.GetAssociation(ctx, userID, businessID)
	if err != nil {
		return nil, err
	}
	if !ub.IsActive {
		return nil, domain.NotFoundf("active association not found")
	}
	ub.Role = role
	ub.Permissions = domain.DefaultPermissions(role)
	if err := s.Associations.UpdateAssociation(ctx, ub); err != nil {
		return nil, err
	}
	return ub, nil
}

// ListPendingRequests returns client join requests still awaiting a decision.
func (s AssociationService) ListPendingRequests(ctx context.Context, businessID int64) ([]domain.UserBusiness, error) {
	items, err := s.Associations.ListBusinessAssociations(ctx, businessID, ptr(false))
	if err != nil {
		return nil, err
	}
	pending := make([]domain.UserBusiness, 0, len(items))
	for _, ub := range items {
		if ub.Role == domain.BusinessRoleClient {
			pending = append(pending, ub)
		}
	}
	return pending, nil
}

// ApproveRequest activates a pending client association, marks the user
// approved and makes sure a primary client record exists.
func (s AssociationService) ApproveRequest(ctx context.Context, businessID, userID int64) (*domain.UserBusiness, error) {
	var (
		out  *domain.UserBusiness
		user *domain.User
	)
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		ub, err := s.pendingRequest(ctx, businessID, userID)
		if err != nil {
			return err
		}
		ub.IsActive = true
		if err := s.Associations.UpdateAssociation(ctx, ub); err != nil {
			return err
		}
		if err := s.Users.SetClientStatus(ctx, userID, domain.ClientStatusApproved); err != nil {
			return err
		}
		user, err = s.Users.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		records, err := s.Clients.ListClientsForUser(ctx, userID, businessID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			primary := &domain.Client{
				UserID:       userID,
				BusinessID:   businessID,
				FirstName:    user.FirstName,
				LastName:     user.LastName,
				Phone:        user.Phone,
				IsPrimary:    true,
				Relationship: domain.RelationshipSelf,
				IsActive:     true,
			}
			if err := s.Clients.CreateClient(ctx, primary); err != nil {
				return err
			}
		}
		out = ub
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Notifier.Notify(ctx, domain.Email{
		To:      user.Email,
		Subject: "Your membership request has been approved",
		Body:    fmt.Sprintf("<p>Hi %s,</p><p>Your request to join has been approved. You can now book sessions.</p>", user.FirstName),
	})
	s.Logger.Info("client request approved", "user_id", userID, "business_id", businessID)
	return out, nil
}

// RejectRequest drops the pending association entirely.
func (s AssociationService) RejectRequest(ctx context.Context, businessID, userID int64) error {
	var user *domain.User
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		ub, err := s.pendingRequest(ctx, businessID, userID)
		if err != nil {
			return err
		}
		user, err = s.Users.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		return s.Associations.DeleteAssociation(ctx, ub.ID)
	})
	if err != nil {
		return err
	}
	s.Notifier.Notify(ctx, domain.Email{
		To:      user.Email,
		Subject: "Your membership request was declined",
		Body:    fmt.Sprintf("<p>Hi %s,</p><p>Unfortunately your request to join was not approved.</p>", user.FirstName),
	})
	s.Logger.Info("client request rejected", "user_id", userID, "business_id", businessID)
	return nil
}

func (s AssociationService) pendingRequest(ctx context.Context, businessID, userID int64) (*domain.UserBusiness, error) {
	ub, err := s.Associations.GetAssociation(ctx, userID, businessID)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NotFoundf("join request not found")
		}
		return nil, err
	}
	if ub.Role != domain.BusinessRoleClient {
		return nil, domain.NotFoundf("join request not found")
	}
	if ub.IsActive {
		return nil, domain.Conflictf("join request was already approved")
	}
	return ub, nil
}

// SetClientStatus approves or suspends a client and toggles their association to match.
func (s AssociationService) SetClientStatus(ctx context.Context, businessID, userID int64, status domain.ClientStatus) (*domain.UserBusiness, error) {
	if status != domain.ClientStatusApproved && status != domain.ClientStatusSuspended {
		return nil, domain.BadRequestf("status must be approved or suspended")
	}
	var out *domain.UserBusiness
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		ub, err := s.Associations.GetAssociation(ctx, userID, businessID)
		if err != nil {
			return err
		}
		if ub.Role != domain.BusinessRoleClient {
			return domain.NotFoundf("client not found in this business")
		}
		if err := s.Users.SetClientStatus(ctx, userID, status); err != nil {
			return err
		}
		ub.IsActive = status == domain.ClientStatusApproved
		if err := s.Associations.UpdateAssociation(ctx, ub); err != nil {
			return err
		}
		out = ub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
