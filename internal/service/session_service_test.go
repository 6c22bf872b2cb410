package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"planora-backend/internal/domain"
)

type world struct {
	store      *memStore
	biz        *domain.Business
	class      *domain.Class
	instructor *domain.Employee
	admin      *domain.Identity
	sessions   SessionService
}

func newWorld(t *testing.T, capacity int) *world {
	t.Helper()
	m := newMemStore()
	biz := m.addBusiness(domain.Business{Name: "Harbour Swim"})
	adminUser := m.addUser(domain.User{Email: "owner@harbour.test", Role: domain.RoleAdmin})
	m.associate(adminUser.ID, biz.ID, domain.BusinessRoleAdmin, true)
	instructorUser := m.addUser(domain.User{Email: "coach@harbour.test", Role: domain.RoleEmployee})
	instructor := m.addEmployee(domain.Employee{UserID: instructorUser.ID, BusinessID: biz.ID, FirstName: "Coach"})
	class := m.addClass(domain.Class{BusinessID: biz.ID, Title: "Squad", ClassType: domain.ClassTypeGroup, MaxCapacity: capacity})

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &world{
		store:      m,
		biz:        biz,
		class:      class,
		instructor: instructor,
		admin:      &domain.Identity{UserID: adminUser.ID, Role: domain.RoleAdmin, BusinessID: ptr(biz.ID)},
		sessions:   SessionService{
			Tx:            m,
			Sessions:      m,
			Classes:       m,
			Clients:       m,
			Employees:     m,
			Notifications: m,
			Logger:        discardLogger(),
			Now:           func() time.Time { return now },
		},
	}
}

// newClient registers an approved client login with a primary record.
func (w *world) newClient(t *testing.T, email string) (*domain.Identity, *domain.Client) {
	t.Helper()
	u := w.store.addUser(domain.User{Email: email, FirstName: email, Role: domain.RoleClient, ClientStatus: domain.ClientStatusApproved})
	w.store.associate(u.ID, w.biz.ID, domain.BusinessRoleClient, true)
	c := w.store.addClient(domain.Client{UserID: u.ID, BusinessID: w.biz.ID, FirstName: email, IsPrimary: true})
	return &domain.Identity{UserID: u.ID, Role: domain.RoleClient, BusinessID: ptr(w.biz.ID)}, c
}

func (w *world) newSession(t *testing.T, date time.Time) *domain.Session {
	t.Helper()
	return w.store.addSession(domain.Session{
		BusinessID:   w.biz.ID,
		ClassID:      w.class.ID,
		InstructorID: w.instructor.ID,
		Date:         &date,
		StartTime:    "17:00",
		EndTime:      "17:45",
	})
}

func TestEnrollClient_FillsThenWaitlists(t *testing.T) {
	w := newWorld(t, 2)
	sess := w.newSession(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var clients []*domain.Client
	for _, email := range []string{"a@x.test", "b@x.test", "c@x.test"} {
		_, c := w.newClient(t, email)
		clients = append(clients, c)
	}
	for _, c := range clients[:2] {
		res, err := w.sessions.EnrollClient(ctx, w.admin, sess.ID, c.ID)
		if err != nil {
			t.Fatalf("enroll %d: %v", c.ID, err)
		}
		if res.Outcome != domain.OutcomeEnrolled {
			t.Fatalf("outcome = %q, want enrolled", res.Outcome)
		}
	}
	res, err := w.sessions.EnrollClient(ctx, w.admin, sess.ID, clients[2].ID)
	if err != nil {
		t.Fatalf("enroll third: %v", err)
	}
	if res.Outcome != domain.OutcomeWaitlisted {
		t.Errorf("outcome = %q, want waitlisted", res.Outcome)
	}
	if res.Message != "Class is full. Client added to waitlist." {
		t.Errorf("message = %q", res.Message)
	}

	stored := w.store.session(sess.ID)
	if len(stored.EnrolledClients) != 2 || len(stored.Waitlist) != 1 {
		t.Errorf("roster = %d enrolled, %d waitlisted", len(stored.EnrolledClients), len(stored.Waitlist))
	}
	if stored.Version != sess.Version+3 {
		t.Errorf("version = %d, want %d", stored.Version, sess.Version+3)
	}
}

func TestEnrollClient_ClientCannotEnrollSomeoneElse(t *testing.T) {
	w := newWorld(t, 5)
	sess := w.newSession(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	alice, _ := w.newClient(t, "alice@x.test")
	_, bob := w.newClient(t, "bob@x.test")

	_, err := w.sessions.EnrollClient(context.Background(), alice, sess.ID, bob.ID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	if got := w.store.session(sess.ID); len(got.EnrolledClients) != 0 {
		t.Errorf("roster changed: %+v", got.EnrolledClients)
	}
}

func TestEnrollClient_OtherTenantStaffForbidden(t *testing.T) {
	w := newWorld(t, 5)
	sess := w.newSession(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	_, c := w.newClient(t, "alice@x.test")
	outsider := &domain.Identity{UserID: 999, Role: domain.RoleAdmin, BusinessID: ptr(int64(4242))}

	_, err := w.sessions.EnrollClient(context.Background(), outsider, sess.ID, c.ID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestCancelEnrollment_PromotesWaitlistHead(t *testing.T) {
	w := newWorld(t, 1)
	sess := w.newSession(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	aliceID, alice := w.newClient(t, "alice@x.test")
	_, bob := w.newClient(t, "bob@x.test")
	_, carol := w.newClient(t, "carol@x.test")

	for _, c := range []*domain.Client{alice, bob, carol} {
		if _, err := w.sessions.EnrollClient(ctx, w.admin, sess.ID, c.ID); err != nil {
			t.Fatalf("enroll %d: %v", c.ID, err)
		}
	}

	res, err := w.sessions.CancelEnrollment(ctx, aliceID, sess.ID, alice.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res.Promoted == nil || res.Promoted.ClientID != bob.ID {
		t.Fatalf("promoted = %+v, want bob", res.Promoted)
	}
	if !res.Promoted.IsCatchUp {
		t.Error("promoted enrollment should be flagged as catch-up")
	}

	stored := w.store.session(sess.ID)
	if len(stored.EnrolledClients) != 1 || stored.EnrolledClients[0].ClientID != bob.ID {
		t.Errorf("enrolled = %+v, want [bob]", stored.EnrolledClients)
	}
	if len(stored.Waitlist) != 1 || stored.Waitlist[0].ClientID != carol.ID {
		t.Errorf("waitlist = %+v, want [carol]", stored.Waitlist)
	}
	if stored.IsAvailableForCatchUp {
		t.Error("slot was filled from the waitlist and should not be advertised")
	}

	if res.Notification == nil || res.Notification.CatchUpApprovalStatus != domain.CatchUpPending {
		t.Fatalf("cancellation notification = %+v", res.Notification)
	}
	client, _ := w.store.GetClient(ctx, alice.ID)
	if client.CancellationCount != 1 || !client.HasCancelledBefore {
		t.Errorf("client counters = %d/%v", client.CancellationCount, client.HasCancelledBefore)
	}
	if client.CatchUpApprovalStatus != domain.CatchUpPending {
		t.Errorf("client catch-up status = %q, want pending", client.CatchUpApprovalStatus)
	}

	booking := domain.NotificationBooking
	notes, _ := w.store.ListNotifications(ctx, domain.NotificationFilter{BusinessID: w.biz.ID, Type: &booking})
	if len(notes) != 1 || *notes[0].ClientID != bob.ID {
		t.Errorf("booking notifications = %+v", notes)
	}
}

func TestCancelEnrollment_OpensCatchUpSlot(t *testing.T) {
	w := newWorld(t, 2)
	sess := w.newSession(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	_, alice := w.newClient(t, "alice@x.test")

	if _, err := w.sessions.EnrollClient(ctx, w.admin, sess.ID, alice.ID); err != nil {
		t.Fatal(err)
	}
	res, err := w.sessions.CancelEnrollment(ctx, w.admin, sess.ID, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Promoted != nil {
		t.Errorf("promoted = %+v, want none", res.Promoted)
	}
	if !w.store.session(sess.ID).IsAvailableForCatchUp {
		t.Error("freed slot should be advertised for catch-up")
	}

	if _, err := w.sessions.CancelEnrollment(ctx, w.admin, sess.ID, alice.ID); !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("second cancel err = %v, want bad request", err)
	}
}

// staleStore loses the version race a fixed number of times before writing.
type staleStore struct {
	*memStore
	losses int
}

func (s *staleStore) UpdateSession(ctx context.Context, sess *domain.Session) error {
	if s.losses > 0 {
		s.losses--
		return domain.ErrStale
	}
	return s.memStore.UpdateSession(ctx, sess)
}

func TestEnrollClient_RetriesLostVersionRace(t *testing.T) {
	w := newWorld(t, 2)
	sess := w.newSession(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	_, alice := w.newClient(t, "alice@x.test")

	svc := w.sessions
	svc.Sessions = &staleStore{memStore: w.store, losses: maxRosterAttempts - 1}
	res, err := svc.EnrollClient(context.Background(), w.admin, sess.ID, alice.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if res.Outcome != domain.OutcomeEnrolled {
		t.Errorf("outcome = %q", res.Outcome)
	}
	if got := w.store.session(sess.ID); len(got.EnrolledClients) != 1 {
		t.Errorf("enrolled = %d, want 1", len(got.EnrolledClients))
	}
}

func TestEnrollClient_GivesUpAfterRepeatedConflicts(t *testing.T) {
	w := newWorld(t, 2)
	sess := w.newSession(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	_, alice := w.newClient(t, "alice@x.test")

	svc := w.sessions
	svc.Sessions = &staleStore{memStore: w.store, losses: maxRosterAttempts}
	_, err := svc.EnrollClient(context.Background(), w.admin, sess.ID, alice.ID)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if got := w.store.session(sess.ID); len(got.EnrolledClients) != 0 {
		t.Errorf("enrolled = %d, want 0", len(got.EnrolledClients))
	}
}

func TestRoster_NeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	w := newWorld(t, capacity)
	sess := w.newSession(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var clients []*domain.Client
	for _, email := range []string{"a@x.test", "b@x.test", "c@x.test", "d@x.test", "e@x.test", "f@x.test"} {
		_, c := w.newClient(t, email)
		clients = append(clients, c)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		c := clients[rng.Intn(len(clients))]
		if rng.Intn(2) == 0 {
			_, _ = w.sessions.EnrollClient(ctx, w.admin, sess.ID, c.ID)
		} else {
			_, _ = w.sessions.CancelEnrollment(ctx, w.admin, sess.ID, c.ID)
		}

		got := w.store.session(sess.ID)
		if len(got.EnrolledClients) > capacity {
			t.Fatalf("step %d: %d enrolled, capacity %d", i, len(got.EnrolledClients), capacity)
		}
		seen := map[int64]bool{}
		for _, e := range got.EnrolledClients {
			if seen[e.ClientID] {
				t.Fatalf("step %d: client %d enrolled twice", i, e.ClientID)
			}
			seen[e.ClientID] = true
		}
		for _, wl := range got.Waitlist {
			if seen[wl.ClientID] {
				t.Fatalf("step %d: client %d both enrolled and waitlisted", i, wl.ClientID)
			}
			seen[wl.ClientID] = true
		}
		if len(got.Waitlist) > 0 && len(got.EnrolledClients) < capacity {
			t.Fatalf("step %d: waitlist not drained into free seats", i)
		}
	}
}

func TestLeaveWaitlist(t *testing.T) {
	w := newWorld(t, 1)
	sess := w.newSession(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	_, alice := w.newClient(t, "alice@x.test")
	bobID, bob := w.newClient(t, "bob@x.test")

	for _, c := range []*domain.Client{alice, bob} {
		if _, err := w.sessions.EnrollClient(ctx, w.admin, sess.ID, c.ID); err != nil {
			t.Fatal(err)
		}
	}
	got, err := w.sessions.LeaveWaitlist(ctx, bobID, sess.ID, bob.ID)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if len(got.Waitlist) != 0 {
		t.Errorf("waitlist = %+v, want empty", got.Waitlist)
	}
	if _, err := w.sessions.LeaveWaitlist(ctx, bobID, sess.ID, bob.ID); !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("second leave err = %v, want bad request", err)
	}
}

func TestDeleteSession_RefusesWhileEnrolled(t *testing.T) {
	w := newWorld(t, 2)
	sess := w.newSession(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	_, alice := w.newClient(t, "alice@x.test")

	if _, err := w.sessions.EnrollClient(ctx, w.admin, sess.ID, alice.ID); err != nil {
		t.Fatal(err)
	}
	if err := w.sessions.DeleteSession(ctx, w.admin, sess.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("delete err = %v, want conflict", err)
	}
	if _, err := w.sessions.CancelEnrollment(ctx, w.admin, sess.ID, alice.ID); err != nil {
		t.Fatal(err)
	}
	if err := w.sessions.DeleteSession(ctx, w.admin, sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := w.store.GetSession(ctx, sess.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("session still present: %v", err)
	}
}

func TestCreateSession(t *testing.T) {
	w := newWorld(t, 4)
	ctx := context.Background()
	wednesday := time.Wednesday

	tests := []struct {
		name    string
		in      SessionInput
		wantErr error
	}{
		{
			name: "one-off by employee id",
			in:   SessionInput{ClassID: w.class.ID, InstructorID: w.instructor.ID, Date: ptr(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)), StartTime: "08:00", EndTime: "08:30"},
		},
		{
			name: "recurring by instructor user id",
			in:   SessionInput{ClassID: w.class.ID, InstructorID: w.instructor.UserID, DayOfWeek: &wednesday, IsRecurring: true, StartTime: "18:00", EndTime: "19:00"},
		},
		{
			name:    "recurring without weekday",
			in:      SessionInput{ClassID: w.class.ID, InstructorID: w.instructor.ID, IsRecurring: true, StartTime: "18:00", EndTime: "19:00"},
			wantErr: domain.ErrBadRequest,
		},
		{
			name:    "end before start",
			in:      SessionInput{ClassID: w.class.ID, InstructorID: w.instructor.ID, Date: ptr(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)), StartTime: "09:00", EndTime: "08:00"},
			wantErr: domain.ErrBadRequest,
		},
		{
			name:    "unknown instructor",
			in:      SessionInput{ClassID: w.class.ID, InstructorID: 9999, Date: ptr(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)), StartTime: "08:00", EndTime: "08:30"},
			wantErr: domain.ErrBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := w.sessions.CreateSession(ctx, w.admin, tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if sess.InstructorID != w.instructor.ID {
				t.Errorf("instructor = %d, want %d", sess.InstructorID, w.instructor.ID)
			}
			if sess.Status != domain.SessionScheduled {
				t.Errorf("status = %q", sess.Status)
			}
		})
	}
}

func TestSetStatus_ClosesCatchUpSlot(t *testing.T) {
	w := newWorld(t, 2)
	sess := w.newSession(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	_, alice := w.newClient(t, "alice@x.test")

	if _, err := w.sessions.EnrollClient(ctx, w.admin, sess.ID, alice.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := w.sessions.CancelEnrollment(ctx, w.admin, sess.ID, alice.ID); err != nil {
		t.Fatal(err)
	}
	got, err := w.sessions.SetStatus(ctx, w.admin, sess.ID, domain.SessionCancelled)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if got.IsAvailableForCatchUp {
		t.Error("cancelled session should not advertise catch-up")
	}
	if _, err := w.sessions.SetStatus(ctx, w.admin, sess.ID, domain.SessionConfirmed); !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("reopen err = %v, want bad request", err)
	}
}

func TestMarkAttendance(t *testing.T) {
	w := newWorld(t, 2)
	sess := w.newSession(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	_, alice := w.newClient(t, "alice@x.test")

	if _, err := w.sessions.EnrollClient(ctx, w.admin, sess.ID, alice.ID); err != nil {
		t.Fatal(err)
	}
	got, err := w.sessions.MarkAttendance(ctx, w.admin, sess.ID, alice.ID, domain.EnrollmentCompleted)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if got.EnrolledClients[0].Status != domain.EnrollmentCompleted {
		t.Errorf("status = %q", got.EnrolledClients[0].Status)
	}
	if _, err := w.sessions.MarkAttendance(ctx, w.admin, sess.ID, alice.ID, domain.EnrollmentCancelled); !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("err = %v, want bad request", err)
	}
}
