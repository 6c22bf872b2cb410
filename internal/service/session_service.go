package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"planora-backend/internal/domain"
	"planora-backend/internal/observability/metrics"
	"planora-backend/internal/ports"
)

const maxRosterAttempts = 3

type SessionService struct {
	Tx            ports.Transactor
	Sessions      ports.SessionStore
	Classes       ports.ClassStore
	Clients       ports.ClientStore
	Employees     ports.EmployeeStore
	Notifications ports.NotificationStore
	Logger        *slog.Logger
	Now           func() time.Time
}

type EnrollResult struct {
	Session *domain.Session
	Outcome domain.EnrollOutcome
	Message string
}

type CancelResult struct {
	Session      *domain.Session
	Promoted     *domain.Enrollment
	Notification *domain.Notification
}

type SessionInput struct {
	ClassID      int64
	InstructorID int64
	Date         *time.Time
	StartTime    string
	EndTime      string
	DayOfWeek    *time.Weekday
	IsRecurring  bool
	Notes        string
}

type SessionUpdate struct {
	InstructorID *int64
	Date         *time.Time
	StartTime    *string
	EndTime      *string
	DayOfWeek    *time.Weekday
	IsRecurring  *bool
	Notes        *string
}

// mutateSession reads the session, applies the change and writes it back with a
// version check, all in one transaction. after runs in the same transaction once
// the write has succeeded. Lost races are retried from a fresh read.
func mutateSession(
	ctx context.Context,
	tx ports.Transactor,
	sessions ports.SessionStore,
	log *slog.Logger,
	sessionID int64,
	apply func(ctx context.Context, sess *domain.Session) error,
	after func(ctx context.Context, sess *domain.Session) error,
) (*domain.Session, error) {
	for attempt := 1; ; attempt++ {
		var out *domain.Session
		err := tx.InTx(ctx, func(ctx context.Context) error {
			sess, err := sessions.GetSession(ctx, sessionID)
			if err != nil {
				return err
			}
			if err := apply(ctx, sess); err != nil {
				return err
			}
			if err := sessions.UpdateSession(ctx, sess); err != nil {
				return err
			}
			if after != nil {
				if err := after(ctx, sess); err != nil {
					return err
				}
			}
			out = sess
			return nil
		})
		if errors.Is(err, domain.ErrStale) && attempt < maxRosterAttempts {
			metrics.ObserveRosterConflict()
			log.Debug("session version conflict, retrying", "session_id", sessionID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// authorizeRoster lets staff act inside their business and clients act on
// their own records only.
func authorizeRoster(id *domain.Identity, sess *domain.Session, client *domain.Client) error {
	switch {
	case id.IsSuperAdmin():
		return nil
	case id.IsStaff():
		if id.InBusiness(sess.BusinessID) {
			return nil
		}
	case id.Role == domain.RoleClient:
		if client.UserID == id.UserID && id.InBusiness(sess.BusinessID) {
			return nil
		}
	}
	return domain.Forbiddenf("you are not allowed to change enrollments for this client")
}

func (s SessionService) activeClient(ctx context.Context, clientID int64) (*domain.Client, error) {
	c, err := s.Clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, domain.NotFoundf("client not found")
	}
	return c, nil
}

func (s SessionService) capacity(ctx context.Context, sess *domain.Session) (int, error) {
	cls, err := s.Classes.GetClass(ctx, sess.ClassID)
	if err != nil {
		return 0, err
	}
	return cls.MaxCapacity, nil
}

// EnrollClient enrolls the client, or waitlists them when the class is full.
func (s SessionService) EnrollClient(ctx context.Context, id *domain.Identity, sessionID, clientID int64) (*EnrollResult, error) {
	client, err := s.activeClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	var outcome domain.EnrollOutcome
	sess, err := mutateSession(ctx, s.Tx, s.Sessions, s.Logger, sessionID,
		func(ctx context.Context, sess *domain.Session) error {
			if err := authorizeRoster(id, sess, client); err != nil {
				return err
			}
			if client.BusinessID != sess.BusinessID {
				return domain.BadRequestf("client does not belong to this business")
			}
			capacity, err := s.capacity(ctx, sess)
			if err != nil {
				return err
			}
			outcome, err = sess.Enroll(client.ID, capacity, clock(s.Now).now())
			return err
		}, nil)
	if err != nil {
		return nil, err
	}

	metrics.ObserveEnrollment(string(outcome))
	s.Logger.Info("client enrolled", "session_id", sessionID, "client_id", clientID, "outcome", outcome)
	res := &EnrollResult{Session: sess, Outcome: outcome, Message: "Client enrolled successfully"}
	if outcome == domain.OutcomeWaitlisted {
		res.Message = "Class is full. Client added to waitlist."
	}
	return res, nil
}

// CancelEnrollment frees the client's seat, promotes the waitlist head, and
// records the cancellation as a pending catch-up credit.
func (s SessionService) CancelEnrollment(ctx context.Context, id *domain.Identity, sessionID, clientID int64) (*CancelResult, error) {
	client, err := s.Clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	res := &CancelResult{}
	sess, err := mutateSession(ctx, s.Tx, s.Sessions, s.Logger, sessionID,
		func(ctx context.Context, sess *domain.Session) error {
			if err := authorizeRoster(id, sess, client); err != nil {
				return err
			}
			capacity, err := s.capacity(ctx, sess)
			if err != nil {
				return err
			}
			_, promoted, err := sess.CancelEnrollment(client.ID, capacity, clock(s.Now).now())
			res.Promoted = promoted
			return err
		},
		func(ctx context.Context, sess *domain.Session) error {
			if err := s.Clients.RecordCancellation(ctx, client.ID); err != nil {
				return err
			}
			n := &domain.Notification{
				BusinessID:            sess.BusinessID,
				Type:                  domain.NotificationCancellation,
				Title:                 "Lesson cancelled",
				Message:               fmt.Sprintf("%s cancelled %s", client.FullName(), describeSession(sess)),
				ClientID:              ptr(client.ID),
				SessionID:             ptr(sess.ID),
				CatchUpApprovalStatus: domain.CatchUpPending,
			}
			if err := s.Notifications.CreateNotification(ctx, n); err != nil {
				return err
			}
			res.Notification = n
			if res.Promoted != nil {
				if err := s.Notifications.CreateNotification(ctx, &domain.Notification{
					BusinessID: sess.BusinessID,
					Type:       domain.NotificationBooking,
					Title:      "Promoted from waitlist",
					Message:    fmt.Sprintf("A waitlisted client was moved into %s", describeSession(sess)),
					ClientID:   ptr(res.Promoted.ClientID),
					SessionID:  ptr(sess.ID),
				}); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	res.Session = sess

	metrics.ObserveCancellation(res.Promoted != nil)
	attrs := []any{"session_id", sessionID, "client_id", clientID}
	if res.Promoted != nil {
		attrs = append(attrs, "promoted_client_id", res.Promoted.ClientID)
	}
	s.Logger.Info("enrollment cancelled", attrs...)
	return res, nil
}

func (s SessionService) LeaveWaitlist(ctx context.Context, id *domain.Identity, sessionID, clientID int64) (*domain.Session, error) {
	client, err := s.Clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return mutateSession(ctx, s.Tx, s.Sessions, s.Logger, sessionID,
		func(_ context.Context, sess *domain.Session) error {
			if err := authorizeRoster(id, sess, client); err != nil {
				return err
			}
			return sess.LeaveWaitlist(client.ID)
		}, nil)
}

func (s SessionService) MarkAttendance(ctx context.Context, id *domain.Identity, sessionID, clientID int64, status domain.EnrollmentStatus) (*domain.Session, error) {
	return mutateSession(ctx, s.Tx, s.Sessions, s.Logger, sessionID,
		func(_ context.Context, sess *domain.Session) error {
			if !id.InBusiness(sess.BusinessID) {
				return domain.NotFoundf("session not found")
			}
			return sess.SetEnrollmentStatus(clientID, status)
		}, nil)
}

func (s SessionService) SetStatus(ctx context.Context, id *domain.Identity, sessionID int64, status domain.SessionStatus) (*domain.Session, error) {
	return mutateSession(ctx, s.Tx, s.Sessions, s.Logger, sessionID,
		func(_ context.Context, sess *domain.Session) error {
			if !id.InBusiness(sess.BusinessID) {
				return domain.NotFoundf("session not found")
			}
			return sess.TransitionTo(status)
		}, nil)
}

func (s SessionService) CreateSession(ctx context.Context, id *domain.Identity, in SessionInput) (*domain.Session, error) {
	businessID, err := businessOf(id)
	if err != nil {
		return nil, err
	}
	cls, err := s.Classes.GetClass(ctx, in.ClassID)
	if err != nil {
		return nil, err
	}
	if cls.BusinessID != businessID {
		return nil, domain.NotFoundf("class not found")
	}
	instructorID := in.InstructorID
	if instructorID == 0 && cls.InstructorID != nil {
		instructorID = *cls.InstructorID
	}
	instructor, err := s.resolveInstructor(ctx, businessID, instructorID)
	if err != nil {
		return nil, err
	}

	sess := &domain.Session{
		BusinessID:   businessID,
		ClassID:      cls.ID,
		InstructorID: instructor.ID,
		Date:         in.Date,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		DayOfWeek:    in.DayOfWeek,
		IsRecurring:  in.IsRecurring,
		Status:       domain.SessionScheduled,
		Notes:        in.Notes,
	}
	if err := sess.ValidateSchedule(); err != nil {
		return nil, err
	}
	if err := s.Sessions.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	s.Logger.Info("session created", "session_id", sess.ID, "business_id", businessID, "class_id", cls.ID)
	return sess, nil
}

func (s SessionService) UpdateSession(ctx context.Context, id *domain.Identity, sessionID int64, in SessionUpdate) (*domain.Session, error) {
	return mutateSession(ctx, s.Tx, s.Sessions, s.Logger, sessionID,
		func(ctx context.Context, sess *domain.Session) error {
			if !id.InBusiness(sess.BusinessID) {
				return domain.NotFoundf("session not found")
			}
			if in.InstructorID != nil {
				instructor, err := s.resolveInstructor(ctx, sess.BusinessID, *in.InstructorID)
				if err != nil {
					return err
				}
				sess.InstructorID = instructor.ID
			}
			if in.Date != nil {
				sess.Date = in.Date
			}
			if in.StartTime != nil {
				sess.StartTime = *in.StartTime
			}
			if in.EndTime != nil {
				sess.EndTime = *in.EndTime
			}
			if in.DayOfWeek != nil {
				sess.DayOfWeek = in.DayOfWeek
			}
			if in.IsRecurring != nil {
				sess.IsRecurring = *in.IsRecurring
			}
			if in.Notes != nil {
				sess.Notes = *in.Notes
			}
			return sess.ValidateSchedule()
		}, nil)
}

// resolveInstructor accepts either an employee id or the instructor's user id.
func (s SessionService) resolveInstructor(ctx context.Context, businessID, id int64) (*domain.Employee, error) {
	if id == 0 {
		return nil, domain.BadRequestf("instructorId is required")
	}
	emp, err := s.Employees.GetEmployee(ctx, id)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if emp == nil || emp.BusinessID != businessID {
		emp, err = s.Employees.FindEmployeeByUser(ctx, businessID, id)
		if err != nil {
			if isNotFound(err) {
				return nil, domain.BadRequestf("instructor not found in this business")
			}
			return nil, err
		}
	}
	if emp.Status != domain.EmployeeStatusApproved || !emp.IsActive {
		return nil, domain.BadRequestf("instructor is not an approved, active employee")
	}
	return emp, nil
}

// DeleteSession refuses while anyone is enrolled. The delete itself is
// conditional on the version read, so a concurrent enrollment wins.
func (s SessionService) DeleteSession(ctx context.Context, id *domain.Identity, sessionID int64) error {
	for attempt := 1; ; attempt++ {
		sess, err := s.Sessions.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if !id.InBusiness(sess.BusinessID) {
			return domain.NotFoundf("session not found")
		}
		if err := sess.CheckDeletable(); err != nil {
			return err
		}
		err = s.Sessions.DeleteSession(ctx, sess.ID, sess.Version)
		if errors.Is(err, domain.ErrStale) && attempt < maxRosterAttempts {
			metrics.ObserveRosterConflict()
			continue
		}
		if err != nil {
			return err
		}
		s.Logger.Info("session deleted", "session_id", sessionID)
		return nil
	}
}

// GetSession lets staff see any session in their business; clients only see
// sessions of the business they are acting in.
func (s SessionService) GetSession(ctx context.Context, id *domain.Identity, sessionID int64) (*domain.Session, error) {
	sess, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !id.InBusiness(sess.BusinessID) {
		return nil, domain.NotFoundf("session not found")
	}
	return sess, nil
}

func (s SessionService) ListSessions(ctx context.Context, id *domain.Identity, f domain.SessionFilter) ([]domain.Session, error) {
	businessID, err := businessOf(id)
	if err != nil {
		return nil, err
	}
	f.BusinessID = businessID
	return s.Sessions.ListSessions(ctx, f)
}

// Roster bundles a session with its class and client records for export.
type Roster struct {
	Session *domain.Session
	Class   *domain.Class
	Clients map[int64]*domain.Client
}

func (s SessionService) Roster(ctx context.Context, id *domain.Identity, sessionID int64) (*Roster, error) {
	sess, err := s.GetSession(ctx, id, sessionID)
	if err != nil {
		return nil, err
	}
	cls, err := s.Classes.GetClass(ctx, sess.ClassID)
	if err != nil {
		return nil, err
	}
	r := &Roster{Session: sess, Class: cls, Clients: map[int64]*domain.Client{}}
	ids := make([]int64, 0, len(sess.EnrolledClients)+len(sess.Waitlist))
	for _, e := range sess.EnrolledClients {
		ids = append(ids, e.ClientID)
	}
	for _, w := range sess.Waitlist {
		ids = append(ids, w.ClientID)
	}
	for _, cid := range ids {
		if _, ok := r.Clients[cid]; ok {
			continue
		}
		c, err := s.Clients.GetClient(ctx, cid)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		r.Clients[cid] = c
	}
	return r, nil
}

func describeSession(sess *domain.Session) string {
	switch {
	case sess.Date != nil:
		return fmt.Sprintf("the session on %s at %s", sess.Date.Format("2006-01-02"), sess.StartTime)
	case sess.DayOfWeek != nil:
		return fmt.Sprintf("the %s session at %s", domain.WeekdayName(*sess.DayOfWeek), sess.StartTime)
	default:
		return fmt.Sprintf("session %d", sess.ID)
	}
}
