package service

import (
	"context"
	"log/slog"

	"planora-backend/internal/domain"
	"planora-backend/internal/ports"
)

// GateService turns a bearer token and optional business selector into an Identity.
type GateService struct {
	Tokens       ports.TokenIssuer
	Users        ports.UserStore
	Associations ports.AssociationStore
	Logger       *slog.Logger
}

func (g GateService) Resolve(ctx context.Context, token string, requestedBusinessID *int64) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.Unauthenticatedf("missing bearer token")
	}
	claims, err := g.Tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := g.Users.GetUser(ctx, claims.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.Unauthenticatedf("user no longer exists")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.Unauthenticatedf("account is deactivated")
	}

	id := &domain.Identity{
		UserID:            user.ID,
		Email:             user.Email,
		Role:              user.Role,
		ClientStatus:      user.ClientStatus,
		CurrentBusinessID: user.CurrentBusinessID,
	}
	if user.Role == domain.RoleSuperAdmin {
		// Super-admins act inside whichever business the header names.
		if requestedBusinessID != nil {
			id.BusinessID = ptr(*requestedBusinessID)
		}
		return id, nil
	}

	assocs, err := g.Associations.ListUserAssociations(ctx, user.ID, true)
	if err != nil {
		return nil, err
	}
	id.Associations = assocs

	current := pickAssociation(assocs, requestedBusinessID)
	if current == nil {
		current = pickAssociation(assocs, user.CurrentBusinessID)
	}
	if current == nil && len(assocs) > 0 {
		current = &assocs[0]
		if err := g.Users.SetCurrentBusiness(ctx, user.ID, &current.BusinessID); err != nil {
			return nil, err
		}
		id.CurrentBusinessID = &current.BusinessID
		g.Logger.Info("default business selected", "user_id", user.ID, "business_id", current.BusinessID)
	}
	if current != nil {
		id.CurrentBusiness = current
		id.BusinessID = ptr(current.BusinessID)
	} else if user.BusinessID != nil && user.Role != domain.RoleClient {
		// Accounts created before associations existed only carry the legacy column.
		id.BusinessID = ptr(*user.BusinessID)
	}
	return id, nil
}

func pickAssociation(assocs []domain.UserBusiness, businessID *int64) *domain.UserBusiness {
	if businessID == nil {
		return nil
	}
	for i := range assocs {
		if assocs[i].BusinessID == *businessID {
			return &assocs[i]
		}
	}
	return nil
}

// Authorize checks a resolved identity against a route's allowed roles.
func Authorize(id *domain.Identity, allowed ...domain.UserRole) error {
	if id == nil {
		return domain.Unauthenticatedf("authentication required")
	}
	if len(allowed) > 0 && !id.HasRole(allowed...) {
		return domain.Forbiddenf("role %s may not access this resource", id.Role)
	}
	if id.Role == domain.RoleClient && id.BusinessID == nil {
		return domain.Forbiddenf("no active business association")
	}
	return nil
}
