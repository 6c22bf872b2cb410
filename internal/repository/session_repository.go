package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"planora-backend/internal/db"
	"planora-backend/internal/domain"
)

type SessionRepository struct {
	DB *db.Postgres
}

const sessionColumns = `id, business_id, class_id, instructor_id, session_date, start_time, end_time, day_of_week,
	is_recurring, status, enrolled_clients, waitlist, is_available_for_catch_up, notes, version, created_at, updated_at`

func (r SessionRepository) CreateSession(ctx context.Context, s *domain.Session) error {
	enrolled, waitlist, err := encodeRoster(s)
	if err != nil {
		return err
	}
	return r.DB.Q(ctx).QueryRow(ctx, `
		INSERT INTO sessions (business_id, class_id, instructor_id, session_date, start_time, end_time, day_of_week,
			is_recurring, status, enrolled_clients, waitlist, is_available_for_catch_up, notes, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, 1, now(), now())
		RETURNING id, version, created_at, updated_at
	`, s.BusinessID, s.ClassID, s.InstructorID, s.Date, s.StartTime, s.EndTime, weekdayParam(s.DayOfWeek),
		s.IsRecurring, s.Status, enrolled, waitlist, s.IsAvailableForCatchUp, s.Notes,
	).Scan(&s.ID, &s.Version, &s.CreatedAt, &s.UpdatedAt)
}

func (r SessionRepository) GetSession(ctx context.Context, id int64) (*domain.Session, error) {
	row := r.DB.Q(ctx).QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, id)
	s, err := scanSession(row)
	if err != nil {
		return nil, notFound(err, "session")
	}
	return s, nil
}

func (r SessionRepository) ListSessions(ctx context.Context, f domain.SessionFilter) ([]domain.Session, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE business_id=$1
			AND ($2::date IS NULL OR session_date >= $2 OR session_date IS NULL)
			AND ($3::date IS NULL OR session_date <= $3 OR session_date IS NULL)
			AND ($4::bigint IS NULL OR instructor_id = $4)
			AND ($5::bigint IS NULL OR class_id = $5)
			AND ($6::text IS NULL OR status = $6)
		ORDER BY session_date ASC NULLS LAST, day_of_week ASC NULLS LAST, start_time ASC, id ASC
	`, f.BusinessID, f.From, f.To, f.InstructorID, f.ClassID, f.Status)
}

// UpdateSession is the single conditional write for every session mutation.
func (r SessionRepository) UpdateSession(ctx context.Context, s *domain.Session) error {
	enrolled, waitlist, err := encodeRoster(s)
	if err != nil {
		return err
	}
	err = r.DB.Q(ctx).QueryRow(ctx, `
		UPDATE sessions SET
			class_id=$3, instructor_id=$4, session_date=$5, start_time=$6, end_time=$7, day_of_week=$8,
			is_recurring=$9, status=$10, enrolled_clients=$11, waitlist=$12, is_available_for_catch_up=$13,
			notes=$14, version = version + 1, updated_at=now()
		WHERE id=$1 AND version=$2
		RETURNING version, updated_at
	`, s.ID, s.Version, s.ClassID, s.InstructorID, s.Date, s.StartTime, s.EndTime, weekdayParam(s.DayOfWeek),
		s.IsRecurring, s.Status, enrolled, waitlist, s.IsAvailableForCatchUp, s.Notes,
	).Scan(&s.Version, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrStale
	}
	return err
}

func (r SessionRepository) DeleteSession(ctx context.Context, id, version int64) error {
	tag, err := r.DB.Q(ctx).Exec(ctx, `
		DELETE FROM sessions WHERE id=$1 AND version=$2 AND jsonb_array_length(enrolled_clients) = 0
	`, id, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStale
	}
	return nil
}

func (r SessionRepository) ListSessionsWithClient(ctx context.Context, businessID, clientID int64) ([]domain.Session, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE business_id=$1 AND enrolled_clients @> jsonb_build_array(jsonb_build_object('clientId', $2::bigint))
		ORDER BY session_date ASC NULLS LAST, id ASC
	`, businessID, clientID)
}

func (r SessionRepository) ListCatchUpSessions(ctx context.Context, businessID int64, from time.Time) ([]domain.Session, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE business_id=$1
			AND is_available_for_catch_up
			AND status IN ('scheduled', 'confirmed')
			AND (session_date >= $2::date OR (session_date IS NULL AND is_recurring))
		ORDER BY session_date ASC NULLS LAST, start_time ASC, id ASC
	`, businessID, from)
}

func (r SessionRepository) list(ctx context.Context, query string, args ...any) ([]domain.Session, error) {
	rows, err := r.DB.Q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

func encodeRoster(s *domain.Session) (enrolled, waitlist []byte, err error) {
	e := s.EnrolledClients
	if e == nil {
		e = []domain.Enrollment{}
	}
	w := s.Waitlist
	if w == nil {
		w = []domain.WaitlistEntry{}
	}
	if enrolled, err = marshalJSON(e); err != nil {
		return nil, nil, err
	}
	if waitlist, err = marshalJSON(w); err != nil {
		return nil, nil, err
	}
	return enrolled, waitlist, nil
}

func weekdayParam(d *time.Weekday) *int16 {
	if d == nil {
		return nil
	}
	v := int16(*d)
	return &v
}

func scanSession(row scanner) (*domain.Session, error) {
	var (
		s                  domain.Session
		day                *int16
		status             string
		enrolled, waitlist []byte
	)
	if err := row.Scan(&s.ID, &s.BusinessID, &s.ClassID, &s.InstructorID, &s.Date, &s.StartTime, &s.EndTime, &day,
		&s.IsRecurring, &status, &enrolled, &waitlist, &s.IsAvailableForCatchUp, &s.Notes, &s.Version,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if day != nil {
		wd := time.Weekday(*day)
		s.DayOfWeek = &wd
	}
	s.Status = domain.SessionStatus(status)
	if err := unmarshalJSON(enrolled, &s.EnrolledClients); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(waitlist, &s.Waitlist); err != nil {
		return nil, err
	}
	return &s, nil
}
