package service

import (
	"context"
	"log/slog"
	"time"

	"planora-backend/internal/domain"
	"planora-backend/internal/observability/metrics"
	"planora-backend/internal/ports"
)

const (
	maxCatchUpOpportunities = 10
	recentCancellations     = 5
)

// CatchUpService runs the two approval gates in front of catch-up credits.
type CatchUpService struct {
	Tx            ports.Transactor
	Clients       ports.ClientStore
	Sessions      ports.SessionStore
	Classes       ports.ClassStore
	Notifications ports.NotificationStore
	Logger        *slog.Logger
	Now           func() time.Time
}

type Opportunity struct {
	Session        domain.Session
	NextOccurrence *time.Time
}

type CatchUpOverview struct {
	ApprovalStatus domain.CatchUpStatus
	Credits        int
	Opportunities  []Opportunity
}

type CatchUpRequest struct {
	Client        domain.Client
	Cancellations []domain.Notification
}

// SetClientApproval is the client-level gate. Approval needs at least one past cancellation.
func (s CatchUpService) SetClientApproval(ctx context.Context, id *domain.Identity, clientID int64, approve bool) (*domain.Client, error) {
	businessID, err := businessOf(id)
	if err != nil {
		return nil, err
	}
	c, err := s.Clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if c.BusinessID != businessID {
		return nil, domain.NotFoundf("client not found")
	}
	status := domain.CatchUpRejected
	if approve {
		if !c.HasCancelledBefore {
			return nil, domain.BadRequestf("client has no cancellations to catch up on")
		}
		status = domain.CatchUpApproved
	}
	c.CatchUpApprovalStatus = status
	c.CatchUpApprovedBy = ptr(id.UserID)
	c.CatchUpApprovedAt = ptr(clock(s.Now).now())
	if err := s.Clients.UpdateClient(ctx, c); err != nil {
		return nil, err
	}
	metrics.ObserveCatchUpDecision("client", string(status))
	s.Logger.Info("client catch-up decision", "client_id", c.ID, "status", status, "by", id.UserID)
	return c, nil
}

// SetCancellationApproval is the notification-level gate. Repeating the same
// decision is a no-op; a spent credit can no longer be rejected.
func (s CatchUpService) SetCancellationApproval(ctx context.Context, id *domain.Identity, notificationID int64, approve bool) (*domain.Notification, error) {
	businessID, err := businessOf(id)
	if err != nil {
		return nil, err
	}
	n, err := s.Notifications.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.BusinessID != businessID || n.Type != domain.NotificationCancellation {
		return nil, domain.NotFoundf("cancellation notification not found")
	}
	status := domain.CatchUpRejected
	if approve {
		status = domain.CatchUpApproved
	}
	if n.CatchUpApprovalStatus == status {
		return n, nil
	}
	if n.ConsumedAt != nil {
		return nil, domain.Conflictf("catch-up credit has already been used")
	}
	n.CatchUpApprovalStatus = status
	n.CatchUpApprovedBy = ptr(id.UserID)
	n.CatchUpApprovedAt = ptr(clock(s.Now).now())
	n.IsRead = true
	if err := s.Notifications.UpdateNotification(ctx, n); err != nil {
		return nil, err
	}
	metrics.ObserveCatchUpDecision("session", string(status))
	s.Logger.Info("cancellation catch-up decision", "notification_id", n.ID, "status", status, "by", id.UserID)
	return n, nil
}

// Overview reports the caller's credits and, only once the account's primary
// client is approved, the sessions they could catch up in.
func (s CatchUpService) Overview(ctx context.Context, id *domain.Identity) (*CatchUpOverview, error) {
	businessID, err := businessOf(id)
	if err != nil {
		return nil, err
	}
	records, err := s.Clients.ListClientsForUser(ctx, id.UserID, businessID)
	if err != nil {
		return nil, err
	}
	primary := findPrimary(records)
	if primary == nil {
		return nil, domain.NotFoundf("client profile not found")
	}

	out := &CatchUpOverview{ApprovalStatus: primary.CatchUpApprovalStatus, Opportunities: []Opportunity{}}
	for _, c := range records {
		if !c.IsActive {
			continue
		}
		n, err := s.Notifications.CountCredits(ctx, businessID, c.ID)
		if err != nil {
			return nil, err
		}
		out.Credits += n
	}
	if primary.CatchUpApprovalStatus != domain.CatchUpApproved {
		return out, nil
	}

	today := clock(s.Now).now()
	sessions, err := s.Sessions.ListCatchUpSessions(ctx, businessID, today)
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if householdEnrolled(sess, records) {
			continue
		}
		op := Opportunity{Session: sess}
		if next, ok := sess.NextOccurrence(today); ok {
			op.NextOccurrence = &next
		} else {
			s.Logger.Warn("recurring session has no weekday", "session_id", sess.ID)
		}
		out.Opportunities = append(out.Opportunities, op)
		if len(out.Opportunities) == maxCatchUpOpportunities {
			break
		}
	}
	return out, nil
}

// BookCatchUp spends one approved credit of clientID on an advertised slot.
// Both gates must be open; the credit and the seat change in one transaction.
func (s CatchUpService) BookCatchUp(ctx context.Context, id *domain.Identity, sessionID, clientID int64) (*domain.Session, error) {
	businessID, err := businessOf(id)
	if err != nil {
		return nil, err
	}
	client, err := s.Clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if client.BusinessID != businessID || !client.IsActive {
		return nil, domain.NotFoundf("client not found")
	}
	if id.Role == domain.RoleClient && client.UserID != id.UserID {
		return nil, domain.Forbiddenf("you can only book catch-ups for your own account")
	}

	records, err := s.Clients.ListClientsForUser(ctx, client.UserID, businessID)
	if err != nil {
		return nil, err
	}
	primary := findPrimary(records)
	if primary == nil || primary.CatchUpApprovalStatus != domain.CatchUpApproved {
		return nil, domain.Forbiddenf("catch-up access has not been approved for this account")
	}

	now := clock(s.Now).now()
	sess, err := mutateSession(ctx, s.Tx, s.Sessions, s.Logger, sessionID,
		func(ctx context.Context, sess *domain.Session) error {
			if sess.BusinessID != businessID {
				return domain.NotFoundf("session not found")
			}
			cls, err := s.Classes.GetClass(ctx, sess.ClassID)
			if err != nil {
				return err
			}
			if err := sess.CanBookCatchUp(client.ID, cls.MaxCapacity); err != nil {
				return err
			}
			credit, err := s.Notifications.ConsumeOldestCredit(ctx, businessID, client.ID, sess.ID, now)
			if err != nil {
				if isNotFound(err) {
					return domain.BadRequestf("no approved catch-up credits available")
				}
				return err
			}
			return sess.BookCatchUp(client.ID, cls.MaxCapacity, credit.ID, now)
		}, nil)
	if err != nil {
		return nil, err
	}
	metrics.ObserveEnrollment("catch_up")
	s.Logger.Info("catch-up booked", "session_id", sessionID, "client_id", clientID)
	return sess, nil
}

// ListRequests returns clients with cancellations and their most recent ones.
func (s CatchUpService) ListRequests(ctx context.Context, id *domain.Identity) ([]CatchUpRequest, error) {
	businessID, err := businessOf(id)
	if err != nil {
		return nil, err
	}
	clients, err := s.Clients.ListClientsWithCancellations(ctx, businessID)
	if err != nil {
		return nil, err
	}
	kind := domain.NotificationCancellation
	out := make([]CatchUpRequest, 0, len(clients))
	for _, c := range clients {
		notes, err := s.Notifications.ListNotifications(ctx, domain.NotificationFilter{
			BusinessID: businessID,
			Type:       &kind,
			ClientID:   ptr(c.ID),
			Limit:      recentCancellations,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, CatchUpRequest{Client: c, Cancellations: notes})
	}
	return out, nil
}

func householdEnrolled(sess domain.Session, records []domain.Client) bool {
	for _, c := range records {
		if c.IsActive && sess.IsEnrolled(c.ID) {
			return true
		}
	}
	return false
}
