package ports

import (
	"context"
	"time"

	"planora-backend/internal/domain"
)

// HealthChecker is used to probe dependencies.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Transactor runs fn inside one database transaction. Stores called with the
// ctx handed to fn join that transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserStore interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	SetCurrentBusiness(ctx context.Context, userID int64, businessID *int64) error
	SetClientStatus(ctx context.Context, userID int64, status domain.ClientStatus) error
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
}

type BusinessStore interface {
	GetBusiness(ctx context.Context, id int64) (*domain.Business, error)
	ListBusinesses(ctx context.Context, status *domain.BusinessStatus) ([]domain.Business, error)
	UpdateBusinessStatus(ctx context.Context, b *domain.Business) error
	DeleteBusiness(ctx context.Context, id int64) error
}

type AssociationStore interface {
	// GetAssociation returns the row for (user, business) regardless of IsActive.
	GetAssociation(ctx context.Context, userID, businessID int64) (*domain.UserBusiness, error)
	CreateAssociation(ctx context.Context, ub *domain.UserBusiness) error
	UpdateAssociation(ctx context.Context, ub *domain.UserBusiness) error
	DeleteAssociation(ctx context.Context, id int64) error
	// ListUserAssociations orders by join time, oldest first, with Business populated.
	ListUserAssociations(ctx context.Context, userID int64, activeOnly bool) ([]domain.UserBusiness, error)
	ListBusinessAssociations(ctx context.Context, businessID int64, active *bool) ([]domain.UserBusiness, error)
}

type ClientStore interface {
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
	// ListClientsForUser returns every record, active or not, oldest first.
	ListClientsForUser(ctx context.Context, userID, businessID int64) ([]domain.Client, error)
	CreateClient(ctx context.Context, c *domain.Client) error
	UpdateClient(ctx context.Context, c *domain.Client) error
	RecordCancellation(ctx context.Context, clientID int64) error
	ListClientsWithCancellations(ctx context.Context, businessID int64) ([]domain.Client, error)
}

type EmployeeStore interface {
	GetEmployee(ctx context.Context, id int64) (*domain.Employee, error)
	FindEmployeeByUser(ctx context.Context, businessID, userID int64) (*domain.Employee, error)
	UpdateEmployee(ctx context.Context, e *domain.Employee) error
	ListEmployees(ctx context.Context, businessID int64, status *domain.EmployeeStatus) ([]domain.Employee, error)
}

type ClassStore interface {
	GetClass(ctx context.Context, id int64) (*domain.Class, error)
	CreateClass(ctx context.Context, c *domain.Class) error
	ListClasses(ctx context.Context, businessID int64) ([]domain.Class, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, id int64) (*domain.Session, error)
	ListSessions(ctx context.Context, f domain.SessionFilter) ([]domain.Session, error)
	// UpdateSession writes every mutable field when s.Version still matches the
	// stored row, then bumps s.Version. A mismatch returns domain.ErrStale.
	UpdateSession(ctx context.Context, s *domain.Session) error
	// DeleteSession removes the row only while it has the given version and an empty roster.
	DeleteSession(ctx context.Context, id, version int64) error
	ListSessionsWithClient(ctx context.Context, businessID, clientID int64) ([]domain.Session, error)
	ListCatchUpSessions(ctx context.Context, businessID int64, from time.Time) ([]domain.Session, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	GetNotification(ctx context.Context, id int64) (*domain.Notification, error)
	UpdateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, f domain.NotificationFilter) ([]domain.Notification, error)
	CountCredits(ctx context.Context, businessID, clientID int64) (int, error)
	// ConsumeOldestCredit marks the oldest approved unconsumed credit as used by sessionID.
	ConsumeOldestCredit(ctx context.Context, businessID, clientID, sessionID int64, at time.Time) (*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, businessID, id int64) error
}

// TokenClaims is what a verified bearer token asserts.
type TokenClaims struct {
	UserID int64
	Role   domain.UserRole
}

type TokenIssuer interface {
	Issue(user domain.User) (token string, expiresAt time.Time, err error)
	Verify(token string) (*TokenClaims, error)
}

// Notifier delivers email without blocking or failing the caller.
type Notifier interface {
	Notify(ctx context.Context, msg domain.Email)
}
