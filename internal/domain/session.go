package domain

import (
	"strings"
	"time"
)

type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionConfirmed SessionStatus = "confirmed"
	SessionCancelled SessionStatus = "cancelled"
	SessionCompleted SessionStatus = "completed"
	SessionNoShow    SessionStatus = "no-show"
)

// Bookable reports whether the session still takes enrollments.
func (s SessionStatus) Bookable() bool {
	return s == SessionScheduled || s == SessionConfirmed
}

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionScheduled: {SessionConfirmed, SessionCancelled},
	SessionConfirmed: {SessionCancelled, SessionCompleted, SessionNoShow},
}

func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type EnrollmentStatus string

const (
	EnrollmentEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentConfirmed EnrollmentStatus = "confirmed"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
	EnrollmentNoShow    EnrollmentStatus = "no-show"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

type Enrollment struct {
	ClientID       int64            `json:"clientId"`
	EnrollmentDate time.Time        `json:"enrollmentDate"`
	Status         EnrollmentStatus `json:"status"`
	IsCatchUp      bool             `json:"isCatchUp"`
	CreditID       *int64           `json:"creditId,omitempty"`
}

type WaitlistEntry struct {
	ClientID  int64     `json:"clientId"`
	AddedDate time.Time `json:"addedDate"`
}

type Session struct {
	ID                    int64
	BusinessID            int64
	ClassID               int64
	InstructorID          int64
	Date                  *time.Time
	StartTime             string
	EndTime               string
	DayOfWeek             *time.Weekday
	IsRecurring           bool
	Status                SessionStatus
	EnrolledClients       []Enrollment
	Waitlist              []WaitlistEntry
	IsAvailableForCatchUp bool
	Notes                 string
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type EnrollOutcome string

const (
	OutcomeEnrolled   EnrollOutcome = "enrolled"
	OutcomeWaitlisted EnrollOutcome = "waitlisted"
)

func (s *Session) enrolledIndex(clientID int64) int {
	for i, e := range s.EnrolledClients {
		if e.ClientID == clientID {
			return i
		}
	}
	return -1
}

func (s *Session) IsEnrolled(clientID int64) bool { return s.enrolledIndex(clientID) >= 0 }

func (s *Session) IsWaitlisted(clientID int64) bool {
	for _, w := range s.Waitlist {
		if w.ClientID == clientID {
			return true
		}
	}
	return false
}

// Enroll adds clientID to the roster, or to the waitlist tail when the roster is full.
func (s *Session) Enroll(clientID int64, capacity int, now time.Time) (EnrollOutcome, error) {
	if !s.Status.Bookable() {
		return "", BadRequestf("session is %s and no longer accepts enrollments", s.Status)
	}
	if s.IsEnrolled(clientID) {
		return "", Conflictf("client is already enrolled in this session")
	}
	if s.IsWaitlisted(clientID) {
		return "", Conflictf("client is already on the waitlist for this session")
	}
	if len(s.EnrolledClients) >= capacity {
		s.Waitlist = append(s.Waitlist, WaitlistEntry{ClientID: clientID, AddedDate: now})
		return OutcomeWaitlisted, nil
	}
	s.EnrolledClients = append(s.EnrolledClients, Enrollment{
		ClientID:       clientID,
		EnrollmentDate: now,
		Status:         EnrollmentEnrolled,
	})
	if len(s.EnrolledClients) >= capacity {
		s.IsAvailableForCatchUp = false
	}
	return OutcomeEnrolled, nil
}

// CancelEnrollment removes clientID from the roster and fills the freed slot from
// the waitlist head. The slot stays advertised for catch-up only while it is open.
func (s *Session) CancelEnrollment(clientID int64, capacity int, now time.Time) (removed Enrollment, promoted *Enrollment, err error) {
	idx := s.enrolledIndex(clientID)
	if idx < 0 {
		return Enrollment{}, nil, BadRequestf("client is not enrolled in this session")
	}
	removed = s.EnrolledClients[idx]
	s.EnrolledClients = append(s.EnrolledClients[:idx], s.EnrolledClients[idx+1:]...)
	s.IsAvailableForCatchUp = true

	if len(s.Waitlist) > 0 && len(s.EnrolledClients) < capacity {
		head := s.waitlistHead()
		entry := s.Waitlist[head]
		s.Waitlist = append(s.Waitlist[:head], s.Waitlist[head+1:]...)
		e := Enrollment{
			ClientID:       entry.ClientID,
			EnrollmentDate: now,
			Status:         EnrollmentEnrolled,
			IsCatchUp:      true,
		}
		s.EnrolledClients = append(s.EnrolledClients, e)
		promoted = &e
		s.IsAvailableForCatchUp = false
	}
	return removed, promoted, nil
}

// waitlistHead returns the earliest AddedDate entry, preferring list order on ties.
func (s *Session) waitlistHead() int {
	head := 0
	for i := 1; i < len(s.Waitlist); i++ {
		if s.Waitlist[i].AddedDate.Before(s.Waitlist[head].AddedDate) {
			head = i
		}
	}
	return head
}

func (s *Session) LeaveWaitlist(clientID int64) error {
	for i, w := range s.Waitlist {
		if w.ClientID == clientID {
			s.Waitlist = append(s.Waitlist[:i], s.Waitlist[i+1:]...)
			return nil
		}
	}
	return BadRequestf("client is not on the waitlist for this session")
}

// CanBookCatchUp checks that clientID could take the advertised catch-up slot.
func (s *Session) CanBookCatchUp(clientID int64, capacity int) error {
	if !s.Status.Bookable() {
		return BadRequestf("session is %s and no longer accepts enrollments", s.Status)
	}
	if !s.IsAvailableForCatchUp {
		return BadRequestf("session has no catch-up slot available")
	}
	if s.IsEnrolled(clientID) {
		return Conflictf("client is already enrolled in this session")
	}
	if len(s.EnrolledClients) >= capacity {
		return Conflictf("session is full")
	}
	return nil
}

// BookCatchUp places clientID into an advertised catch-up slot paid for by creditID.
func (s *Session) BookCatchUp(clientID int64, capacity int, creditID int64, now time.Time) error {
	if err := s.CanBookCatchUp(clientID, capacity); err != nil {
		return err
	}
	id := creditID
	s.EnrolledClients = append(s.EnrolledClients, Enrollment{
		ClientID:       clientID,
		EnrollmentDate: now,
		Status:         EnrollmentEnrolled,
		IsCatchUp:      true,
		CreditID:       &id,
	})
	if len(s.EnrolledClients) >= capacity {
		s.IsAvailableForCatchUp = false
	}
	for i, w := range s.Waitlist {
		if w.ClientID == clientID {
			s.Waitlist = append(s.Waitlist[:i], s.Waitlist[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Session) SetEnrollmentStatus(clientID int64, status EnrollmentStatus) error {
	switch status {
	case EnrollmentConfirmed, EnrollmentCompleted, EnrollmentNoShow:
	default:
		return BadRequestf("invalid attendance status %q", status)
	}
	idx := s.enrolledIndex(clientID)
	if idx < 0 {
		return BadRequestf("client is not enrolled in this session")
	}
	s.EnrolledClients[idx].Status = status
	return nil
}

func (s *Session) TransitionTo(next SessionStatus) error {
	if s.Status == next {
		return nil
	}
	if !s.Status.CanTransitionTo(next) {
		return BadRequestf("cannot change session status from %s to %s", s.Status, next)
	}
	s.Status = next
	if next != SessionScheduled && next != SessionConfirmed {
		s.IsAvailableForCatchUp = false
	}
	return nil
}

// CheckDeletable refuses deletion while anyone is enrolled.
func (s *Session) CheckDeletable() error {
	if len(s.EnrolledClients) > 0 {
		return Conflictf("cannot delete session with enrolled clients")
	}
	return nil
}

// ValidateSchedule requires either a concrete date or a weekday for recurring sessions.
func (s *Session) ValidateSchedule() error {
	if s.IsRecurring && s.DayOfWeek == nil {
		return BadRequestf("recurring sessions require dayOfWeek")
	}
	if !s.IsRecurring && s.Date == nil {
		return BadRequestf("date is required for one-off sessions")
	}
	if s.StartTime == "" || s.EndTime == "" {
		return BadRequestf("startTime and endTime are required")
	}
	if _, err := time.Parse("15:04", s.StartTime); err != nil {
		return BadRequestf("startTime must be HH:MM")
	}
	if _, err := time.Parse("15:04", s.EndTime); err != nil {
		return BadRequestf("endTime must be HH:MM")
	}
	if s.EndTime <= s.StartTime {
		return BadRequestf("endTime must be after startTime")
	}
	return nil
}

// NextOccurrence projects the session onto a calendar date. ok is false for a
// recurring session without a weekday, which cannot be projected.
func (s *Session) NextOccurrence(today time.Time) (time.Time, bool) {
	if s.Date != nil {
		return *s.Date, true
	}
	if s.DayOfWeek == nil {
		return time.Time{}, false
	}
	return NextWeekday(today, *s.DayOfWeek), true
}

// IsUpcoming reports whether the session happens today or later.
func (s *Session) IsUpcoming(today time.Time) bool {
	if s.IsRecurring && s.DayOfWeek != nil {
		return true
	}
	if s.Date == nil {
		return false
	}
	return !s.Date.Before(truncateDay(today))
}

// NextWeekday returns today when it already falls on target, else the next such day.
func NextWeekday(today time.Time, target time.Weekday) time.Time {
	day := truncateDay(today)
	days := (int(target) - int(day.Weekday()) + 7) % 7
	return day.AddDate(0, 0, days)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, BadRequestf("invalid dayOfWeek %q", s)
	}
	return d, nil
}

func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}
