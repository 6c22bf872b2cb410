package repository

import (
	"context"
	"time"

	"planora-backend/internal/db"
	"planora-backend/internal/domain"
)

type NotificationRepository struct {
	DB *db.Postgres
}

const notificationColumns = `id, business_id, type, title, message, client_id, session_id, is_read, catch_up_approval_status,
	catch_up_approved_by, catch_up_approved_at, consumed_at, consumed_by_session_id, created_at`

func (r NotificationRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	return r.DB.Q(ctx).QueryRow(ctx, `
		INSERT INTO notifications (business_id, type, title, message, client_id, session_id, is_read, catch_up_approval_status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8, now())
		RETURNING id, created_at
	`, n.BusinessID, n.Type, n.Title, n.Message, n.ClientID, n.SessionID, n.IsRead, n.CatchUpApprovalStatus).Scan(&n.ID, &n.CreatedAt)
}

func (r NotificationRepository) GetNotification(ctx context.Context, id int64) (*domain.Notification, error) {
	row := r.DB.Q(ctx).QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, id)
	n, err := scanNotification(row)
	if err != nil {
		return nil, notFound(err, "notification")
	}
	return n, nil
}

// UpdateNotification only touches the catch-up decision fields.
func (r NotificationRepository) UpdateNotification(ctx context.Context, n *domain.Notification) error {
	tag, err := r.DB.Q(ctx).Exec(ctx, `
		UPDATE notifications SET catch_up_approval_status=$2, catch_up_approved_by=$3, catch_up_approved_at=$4, is_read=$5
		WHERE id=$1
	`, n.ID, n.CatchUpApprovalStatus, n.CatchUpApprovedBy, n.CatchUpApprovedAt, n.IsRead)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("notification not found")
	}
	return nil
}

func (r NotificationRepository) ListNotifications(ctx context.Context, f domain.NotificationFilter) ([]domain.Notification, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.DB.Q(ctx).Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE business_id=$1
			AND ($2::text IS NULL OR type = $2)
			AND ($3::bigint IS NULL OR client_id = $3)
			AND (NOT $4 OR NOT is_read)
		ORDER BY created_at DESC, id DESC
		LIMIT $5
	`, f.BusinessID, f.Type, f.ClientID, f.UnreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *n)
	}
	return items, rows.Err()
}

func (r NotificationRepository) CountCredits(ctx context.Context, businessID, clientID int64) (int, error) {
	var n int
	err := r.DB.Q(ctx).QueryRow(ctx, `
		SELECT count(*)
		FROM notifications
		WHERE business_id=$1 AND client_id=$2 AND type='cancellation'
			AND catch_up_approval_status='approved' AND consumed_at IS NULL
	`, businessID, clientID).Scan(&n)
	return n, err
}

// ConsumeOldestCredit locks the credit row so two bookings cannot spend it twice.
func (r NotificationRepository) ConsumeOldestCredit(ctx context.Context, businessID, clientID, sessionID int64, at time.Time) (*domain.Notification, error) {
	row := r.DB.Q(ctx).QueryRow(ctx, `
		UPDATE notifications SET consumed_at=$4, consumed_by_session_id=$3
		WHERE id = (
			SELECT id FROM notifications
			WHERE business_id=$1 AND client_id=$2 AND type='cancellation'
				AND catch_up_approval_status='approved' AND consumed_at IS NULL
			ORDER BY created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+notificationColumns, businessID, clientID, sessionID, at)
	n, err := scanNotification(row)
	if err != nil {
		return nil, notFound(err, "catch-up credit")
	}
	return n, nil
}

func (r NotificationRepository) MarkNotificationRead(ctx context.Context, businessID, id int64) error {
	tag, err := r.DB.Q(ctx).Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1 AND business_id=$2`, id, businessID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("notification not found")
	}
	return nil
}

func scanNotification(row scanner) (*domain.Notification, error) {
	var (
		n              domain.Notification
		kind, approval string
	)
	if err := row.Scan(&n.ID, &n.BusinessID, &kind, &n.Title, &n.Message, &n.ClientID, &n.SessionID, &n.IsRead, &approval,
		&n.CatchUpApprovedBy, &n.CatchUpApprovedAt, &n.ConsumedAt, &n.ConsumedBySessionID, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = domain.NotificationType(kind)
	n.CatchUpApprovalStatus = domain.CatchUpStatus(approval)
	return &n, nil
}
