package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"planora-backend/internal/domain"
)

// memStore is an in-memory implementation of every store port plus Transactor.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	now    time.Time

	users         map[int64]*domain.User
	businesses    map[int64]*domain.Business
	associations  map[int64]*domain.UserBusiness
	clients       map[int64]*domain.Client
	employees     map[int64]*domain.Employee
	classes       map[int64]*domain.Class
	sessions      map[int64]*domain.Session
	notifications map[int64]*domain.Notification
}

func newMemStore() *memStore {
	return &memStore{
		now:           time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		users:         map[int64]*domain.User{},
		businesses:    map[int64]*domain.Business{},
		associations:  map[int64]*domain.UserBusiness{},
		clients:       map[int64]*domain.Client{},
		employees:     map[int64]*domain.Employee{},
		classes:       map[int64]*domain.Class{},
		sessions:      map[int64]*domain.Session{},
		notifications: map[int64]*domain.Notification{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// tick returns strictly increasing timestamps so ordering by creation is stable.
func (m *memStore) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// users

func (m *memStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.NotFoundf("user not found")
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.NotFoundf("user not found")
}

func (m *memStore) SetCurrentBusiness(_ context.Context, userID int64, businessID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.NotFoundf("user not found")
	}
	if businessID == nil {
		u.CurrentBusinessID = nil
	} else {
		v := *businessID
		u.CurrentBusinessID = &v
	}
	return nil
}

func (m *memStore) SetClientStatus(_ context.Context, userID int64, status domain.ClientStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.NotFoundf("user not found")
	}
	u.ClientStatus = status
	return nil
}

func (m *memStore) UpdatePasswordHash(_ context.Context, userID int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.NotFoundf("user not found")
	}
	u.PasswordHash = &hash
	return nil
}

func (m *memStore) addUser(u domain.User) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.id()
	u.IsActive = true
	m.users[u.ID] = &u
	return &u
}

// businesses

func (m *memStore) GetBusiness(_ context.Context, id int64) (*domain.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.businesses[id]
	if !ok {
		return nil, domain.NotFoundf("business not found")
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) ListBusinesses(_ context.Context, status *domain.BusinessStatus) ([]domain.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Business{}
	for _, b := range m.businesses {
		if status == nil || b.Status == *status {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateBusinessStatus(_ context.Context, b *domain.Business) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.businesses[b.ID]; !ok {
		return domain.NotFoundf("business not found")
	}
	cp := *b
	m.businesses[b.ID] = &cp
	return nil
}

func (m *memStore) DeleteBusiness(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.businesses[id]; !ok {
		return domain.NotFoundf("business not found")
	}
	delete(m.businesses, id)
	for k, ub := range m.associations {
		if ub.BusinessID == id {
			delete(m.associations, k)
		}
	}
	for k, c := range m.clients {
		if c.BusinessID == id {
			delete(m.clients, k)
		}
	}
	for k, s := range m.sessions {
		if s.BusinessID == id {
			delete(m.sessions, k)
		}
	}
	return nil
}

func (m *memStore) addBusiness(b domain.Business) *domain.Business {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.id()
	if b.Status == "" {
		b.Status = domain.BusinessStatusActive
	}
	b.IsActive = true
	m.businesses[b.ID] = &b
	return &b
}

// associations

func (m *memStore) withBusiness(ub domain.UserBusiness) domain.UserBusiness {
	if b, ok := m.businesses[ub.BusinessID]; ok {
		cp := *b
		ub.Business = &cp
	}
	return ub
}

func (m *memStore) GetAssociation(_ context.Context, userID, businessID int64) (*domain.UserBusiness, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ub := range m.associations {
		if ub.UserID == userID && ub.BusinessID == businessID {
			cp := m.withBusiness(*ub)
			return &cp, nil
		}
	}
	return nil, domain.NotFoundf("association not found")
}

func (m *memStore) CreateAssociation(_ context.Context, ub *domain.UserBusiness) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.associations {
		if existing.UserID == ub.UserID && existing.BusinessID == ub.BusinessID {
			return domain.Conflictf("association already exists")
		}
	}
	ub.ID = m.id()
	ub.JoinedAt = m.tick()
	cp := *ub
	cp.Business = nil
	m.associations[ub.ID] = &cp
	return nil
}

func (m *memStore) UpdateAssociation(_ context.Context, ub *domain.UserBusiness) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.associations[ub.ID]; !ok {
		return domain.NotFoundf("association not found")
	}
	cp := *ub
	cp.Business = nil
	m.associations[ub.ID] = &cp
	return nil
}

func (m *memStore) DeleteAssociation(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.associations, id)
	return nil
}

func (m *memStore) ListUserAssociations(_ context.Context, userID int64, activeOnly bool) ([]domain.UserBusiness, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.UserBusiness{}
	for _, ub := range m.associations {
		if ub.UserID == userID && (!activeOnly || ub.IsActive) {
			out = append(out, m.withBusiness(*ub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (m *memStore) ListBusinessAssociations(_ context.Context, businessID int64, active *bool) ([]domain.UserBusiness, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.UserBusiness{}
	for _, ub := range m.associations {
		if ub.BusinessID == businessID && (active == nil || ub.IsActive == *active) {
			out = append(out, m.withBusiness(*ub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (m *memStore) associate(userID, businessID int64, role domain.BusinessRole, active bool) *domain.UserBusiness {
	ub := &domain.UserBusiness{
		UserID:      userID,
		BusinessID:  businessID,
		Role:        role,
		IsActive:    active,
		Permissions: domain.DefaultPermissions(role),
	}
	if err := m.CreateAssociation(context.Background(), ub); err != nil {
		panic(err)
	}
	return ub
}

// clients

func (m *memStore) GetClient(_ context.Context, id int64) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, domain.NotFoundf("client not found")
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListClientsForUser(_ context.Context, userID, businessID int64) ([]domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Client{}
	for _, c := range m.clients {
		if c.UserID == userID && c.BusinessID == businessID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) CreateClient(_ context.Context, c *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.IsPrimary {
		for _, other := range m.clients {
			if other.IsPrimary && other.UserID == c.UserID && other.BusinessID == c.BusinessID {
				return domain.Conflictf("a primary client already exists for this account")
			}
		}
	}
	c.ID = m.id()
	c.CreatedAt = m.tick()
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *memStore) UpdateClient(_ context.Context, c *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[c.ID]; !ok {
		return domain.NotFoundf("client not found")
	}
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *memStore) RecordCancellation(_ context.Context, clientID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return domain.NotFoundf("client not found")
	}
	c.CancellationCount++
	c.HasCancelledBefore = true
	if c.CatchUpApprovalStatus == domain.CatchUpNone {
		c.CatchUpApprovalStatus = domain.CatchUpPending
	}
	return nil
}

func (m *memStore) ListClientsWithCancellations(_ context.Context, businessID int64) ([]domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Client{}
	for _, c := range m.clients {
		if c.BusinessID == businessID && c.HasCancelledBefore && c.IsActive {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CancellationCount != out[j].CancellationCount {
			return out[i].CancellationCount > out[j].CancellationCount
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) addClient(c domain.Client) *domain.Client {
	c.IsActive = true
	if c.IsPrimary {
		c.Relationship = domain.RelationshipSelf
	}
	if err := m.CreateClient(context.Background(), &c); err != nil {
		panic(err)
	}
	return &c
}

// employees

func (m *memStore) GetEmployee(_ context.Context, id int64) (*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, domain.NotFoundf("employee not found")
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) FindEmployeeByUser(_ context.Context, businessID, userID int64) (*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.employees {
		if e.BusinessID == businessID && e.UserID == userID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.NotFoundf("employee not found")
}

func (m *memStore) UpdateEmployee(_ context.Context, e *domain.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[e.ID]; !ok {
		return domain.NotFoundf("employee not found")
	}
	cp := *e
	m.employees[e.ID] = &cp
	return nil
}

func (m *memStore) ListEmployees(_ context.Context, businessID int64, status *domain.EmployeeStatus) ([]domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Employee{}
	for _, e := range m.employees {
		if e.BusinessID == businessID && (status == nil || e.Status == *status) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) addEmployee(e domain.Employee) *domain.Employee {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	if e.Status == "" {
		e.Status = domain.EmployeeStatusApproved
	}
	e.IsActive = true
	m.employees[e.ID] = &e
	return &e
}

// classes

func (m *memStore) GetClass(_ context.Context, id int64) (*domain.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[id]
	if !ok {
		return nil, domain.NotFoundf("class not found")
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) CreateClass(_ context.Context, c *domain.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	cp := *c
	m.classes[c.ID] = &cp
	return nil
}

func (m *memStore) ListClasses(_ context.Context, businessID int64) ([]domain.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Class{}
	for _, c := range m.classes {
		if c.BusinessID == businessID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) addClass(c domain.Class) *domain.Class {
	c.IsActive = true
	if err := m.CreateClass(context.Background(), &c); err != nil {
		panic(err)
	}
	return &c
}

// sessions

func cloneSession(s *domain.Session) *domain.Session {
	cp := *s
	cp.EnrolledClients = append([]domain.Enrollment(nil), s.EnrolledClients...)
	cp.Waitlist = append([]domain.WaitlistEntry(nil), s.Waitlist...)
	return &cp
}

func (m *memStore) CreateSession(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	s.Version = 1
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *memStore) GetSession(_ context.Context, id int64) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.NotFoundf("session not found")
	}
	return cloneSession(s), nil
}

func (m *memStore) ListSessions(_ context.Context, f domain.SessionFilter) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Session{}
	for _, s := range m.sessions {
		if s.BusinessID != f.BusinessID {
			continue
		}
		if f.Status != nil && s.Status != *f.Status {
			continue
		}
		if f.ClassID != nil && s.ClassID != *f.ClassID {
			continue
		}
		if f.InstructorID != nil && s.InstructorID != *f.InstructorID {
			continue
		}
		out = append(out, *cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateSession(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[s.ID]
	if !ok {
		return domain.NotFoundf("session not found")
	}
	if stored.Version != s.Version {
		return domain.ErrStale
	}
	s.Version++
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *memStore) DeleteSession(_ context.Context, id, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[id]
	if !ok {
		return domain.NotFoundf("session not found")
	}
	if stored.Version != version || len(stored.EnrolledClients) > 0 {
		return domain.ErrStale
	}
	delete(m.sessions, id)
	return nil
}

func (m *memStore) ListSessionsWithClient(_ context.Context, businessID, clientID int64) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Session{}
	for _, s := range m.sessions {
		if s.BusinessID == businessID && s.IsEnrolled(clientID) {
			out = append(out, *cloneSession(s))
		}
	}
	return out, nil
}

func (m *memStore) ListCatchUpSessions(_ context.Context, businessID int64, from time.Time) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	out := []domain.Session{}
	for _, s := range m.sessions {
		if s.BusinessID != businessID || !s.IsAvailableForCatchUp || !s.Status.Bookable() {
			continue
		}
		if s.Date != nil && s.Date.Before(day) {
			continue
		}
		if s.Date == nil && !s.IsRecurring {
			continue
		}
		out = append(out, *cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) addSession(s domain.Session) *domain.Session {
	if s.Status == "" {
		s.Status = domain.SessionScheduled
	}
	if err := m.CreateSession(context.Background(), &s); err != nil {
		panic(err)
	}
	return &s
}

func (m *memStore) session(id int64) *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSession(m.sessions[id])
}

// notifications

func (m *memStore) CreateNotification(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = m.id()
	n.CreatedAt = m.tick()
	cp := *n
	m.notifications[n.ID] = &cp
	return nil
}

func (m *memStore) GetNotification(_ context.Context, id int64) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, domain.NotFoundf("notification not found")
	}
	cp := *n
	return &cp, nil
}

func (m *memStore) UpdateNotification(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notifications[n.ID]; !ok {
		return domain.NotFoundf("notification not found")
	}
	cp := *n
	m.notifications[n.ID] = &cp
	return nil
}

func (m *memStore) ListNotifications(_ context.Context, f domain.NotificationFilter) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Notification{}
	for _, n := range m.notifications {
		if n.BusinessID != f.BusinessID {
			continue
		}
		if f.Type != nil && n.Type != *f.Type {
			continue
		}
		if f.ClientID != nil && (n.ClientID == nil || *n.ClientID != *f.ClientID) {
			continue
		}
		if f.UnreadOnly && n.IsRead {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) CountCredits(_ context.Context, businessID, clientID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notifications {
		if n.BusinessID == businessID && n.ClientID != nil && *n.ClientID == clientID && n.IsCredit() {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ConsumeOldestCredit(_ context.Context, businessID, clientID, sessionID int64, at time.Time) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *domain.Notification
	for _, n := range m.notifications {
		if n.BusinessID != businessID || n.ClientID == nil || *n.ClientID != clientID || !n.IsCredit() {
			continue
		}
		if oldest == nil || n.CreatedAt.Before(oldest.CreatedAt) {
			oldest = n
		}
	}
	if oldest == nil {
		return nil, domain.NotFoundf("no catch-up credit available")
	}
	oldest.ConsumedAt = &at
	oldest.ConsumedBySessionID = &sessionID
	cp := *oldest
	return &cp, nil
}

func (m *memStore) MarkNotificationRead(_ context.Context, businessID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.BusinessID != businessID {
		return domain.NotFoundf("notification not found")
	}
	n.IsRead = true
	return nil
}

// recordingNotifier captures outbound email.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Email
}

func (r *recordingNotifier) Notify(_ context.Context, msg domain.Email) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
}

func (r *recordingNotifier) emails() []domain.Email {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Email(nil), r.sent...)
}
