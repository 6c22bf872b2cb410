package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"planora-backend/internal/domain"
	"planora-backend/internal/ports"
)

var ErrInvalidCredentials = domain.Unauthenticatedf("invalid credentials")

type AuthService struct {
	Users        ports.UserStore
	Associations ports.AssociationStore
	Businesses   ports.BusinessStore
	Employees    ports.EmployeeStore
	Tokens       ports.TokenIssuer
	Logger       *slog.Logger
}

type AuthResult struct {
	AccessToken     string
	ExpiresAt       time.Time
	User            domain.User
	Associations    []domain.UserBusiness
	CurrentBusiness *domain.UserBusiness
}

type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials, selects a default business when none is stored,
// and refuses accounts whose business or approval state blocks access.
func (s AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.Users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.Forbiddenf("account is deactivated")
	}

	res := &AuthResult{User: *user}
	if user.Role != domain.RoleSuperAdmin {
		assocs, err := s.Associations.ListUserAssociations(ctx, user.ID, true)
		if err != nil {
			return nil, err
		}
		res.Associations = assocs
		res.CurrentBusiness = pickAssociation(assocs, user.CurrentBusinessID)
		if res.CurrentBusiness == nil && len(assocs) > 0 {
			res.CurrentBusiness = &assocs[0]
			if err := s.Users.SetCurrentBusiness(ctx, user.ID, &assocs[0].BusinessID); err != nil {
				return nil, err
			}
			res.User.CurrentBusinessID = ptr(assocs[0].BusinessID)
		}
		if err := s.checkAccess(ctx, user, res.CurrentBusiness); err != nil {
			return nil, err
		}
	}

	token, exp, err := s.Tokens.Issue(res.User)
	if err != nil {
		return nil, err
	}
	res.AccessToken = token
	res.ExpiresAt = exp
	s.Logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	return res, nil
}

func (s AuthService) checkAccess(ctx context.Context, user *domain.User, current *domain.UserBusiness) error {
	if current == nil {
		if user.Role == domain.RoleClient {
			return domain.Forbiddenf("your membership request is awaiting approval")
		}
		return nil
	}
	biz := current.Business
	if biz == nil {
		b, err := s.Businesses.GetBusiness(ctx, current.BusinessID)
		if err != nil {
			return err
		}
		biz = b
	}
	if !biz.IsActive {
		return domain.Forbiddenf("business is no longer available")
	}
	switch user.Role {
	case domain.RoleAdmin:
		if biz.Status == domain.BusinessStatusSuspended {
			return domain.Forbiddenf("business account is suspended")
		}
		// Pending admins may log in to finish setup.
	case domain.RoleEmployee:
		if biz.Status != domain.BusinessStatusActive {
			return domain.Forbiddenf("business is not active")
		}
		emp, err := s.Employees.FindEmployeeByUser(ctx, biz.ID, user.ID)
		if err != nil {
			if isNotFound(err) {
				return domain.Forbiddenf("employee profile not found")
			}
			return err
		}
		switch emp.Status {
		case domain.EmployeeStatusPending:
			return domain.Forbiddenf("your employee account is awaiting approval")
		case domain.EmployeeStatusRejected:
			return domain.Forbiddenf("your employee application was rejected")
		case domain.EmployeeStatusSuspended:
			return domain.Forbiddenf("your employee account is suspended")
		}
	case domain.RoleClient:
		if biz.Status != domain.BusinessStatusActive {
			return domain.Forbiddenf("business is not active")
		}
		if user.ClientStatus == domain.ClientStatusSuspended {
			return domain.Forbiddenf("your client account is suspended")
		}
	}
	return nil
}

// Me returns the caller's user record and active associations.
func (s AuthService) Me(ctx context.Context, id *domain.Identity) (*domain.User, []domain.UserBusiness, error) {
	user, err := s.Users.GetUser(ctx, id.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, id.Associations, nil
}

func (s AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if len(next) < 8 {
		return domain.BadRequestf("new password must be at least 8 characters")
	}
	user, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == nil || bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(current)) != nil {
		return domain.BadRequestf("current password is incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Users.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return err
	}
	return nil
}
