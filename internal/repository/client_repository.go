package repository

import (
	"context"

	"planora-backend/internal/db"
	"planora-backend/internal/domain"
)

type ClientRepository struct {
	DB *db.Postgres
}

const clientColumns = `id, user_id, business_id, first_name, last_name, phone, date_of_birth, emergency_contact, address,
	notes, is_primary, relationship, added_by, is_active, cancellation_count, has_cancelled_before,
	catch_up_approval_status, catch_up_approved_by, catch_up_approved_at, created_at, updated_at`

func (r ClientRepository) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	row := r.DB.Q(ctx).QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=$1`, id)
	c, err := scanClient(row)
	if err != nil {
		return nil, notFound(err, "client")
	}
	return c, nil
}

func (r ClientRepository) ListClientsForUser(ctx context.Context, userID, businessID int64) ([]domain.Client, error) {
	return r.list(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE user_id=$1 AND business_id=$2
		ORDER BY created_at ASC, id ASC
	`, userID, businessID)
}

func (r ClientRepository) ListClientsWithCancellations(ctx context.Context, businessID int64) ([]domain.Client, error) {
	return r.list(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE business_id=$1 AND has_cancelled_before AND is_active
		ORDER BY cancellation_count DESC, id ASC
	`, businessID)
}

func (r ClientRepository) CreateClient(ctx context.Context, c *domain.Client) error {
	ec, err := marshalJSON(c.EmergencyContact)
	if err != nil {
		return err
	}
	addr, err := marshalJSON(c.Address)
	if err != nil {
		return err
	}
	err = r.DB.Q(ctx).QueryRow(ctx, `
		INSERT INTO clients (user_id, business_id, first_name, last_name, phone, date_of_birth, emergency_contact, address,
			notes, is_primary, relationship, added_by, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, now(), now())
		RETURNING id, created_at, updated_at
	`, c.UserID, c.BusinessID, c.FirstName, c.LastName, c.Phone, c.DateOfBirth, ec, addr,
		c.Notes, c.IsPrimary, c.Relationship, c.AddedBy, c.IsActive).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return conflictOr(err, "a primary client already exists for this account")
}

func (r ClientRepository) UpdateClient(ctx context.Context, c *domain.Client) error {
	ec, err := marshalJSON(c.EmergencyContact)
	if err != nil {
		return err
	}
	addr, err := marshalJSON(c.Address)
	if err != nil {
		return err
	}
	err = r.DB.Q(ctx).QueryRow(ctx, `
		UPDATE clients SET
			first_name=$2, last_name=$3, phone=$4, date_of_birth=$5, emergency_contact=$6, address=$7, notes=$8,
			is_primary=$9, relationship=$10, is_active=$11, catch_up_approval_status=$12,
			catch_up_approved_by=$13, catch_up_approved_at=$14, updated_at=now()
		WHERE id=$1
		RETURNING updated_at
	`, c.ID, c.FirstName, c.LastName, c.Phone, c.DateOfBirth, ec, addr, c.Notes,
		c.IsPrimary, c.Relationship, c.IsActive, c.CatchUpApprovalStatus,
		c.CatchUpApprovedBy, c.CatchUpApprovedAt).Scan(&c.UpdatedAt)
	if err != nil {
		return conflictOr(notFound(err, "client"), "a primary client already exists for this account")
	}
	return nil
}

// RecordCancellation bumps the counters in SQL so concurrent cancellations do not lose updates.
// The first cancellation opens a pending catch-up request.
func (r ClientRepository) RecordCancellation(ctx context.Context, clientID int64) error {
	tag, err := r.DB.Q(ctx).Exec(ctx, `
		UPDATE clients SET
			cancellation_count = cancellation_count + 1,
			has_cancelled_before = TRUE,
			catch_up_approval_status = CASE WHEN catch_up_approval_status = '' THEN 'pending' ELSE catch_up_approval_status END,
			updated_at = now()
		WHERE id=$1
	`, clientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("client not found")
	}
	return nil
}

func (r ClientRepository) list(ctx context.Context, query string, args ...any) ([]domain.Client, error) {
	rows, err := r.DB.Q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

func scanClient(row scanner) (*domain.Client, error) {
	var (
		c                    domain.Client
		ec, addr             []byte
		relationship, status string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.BusinessID, &c.FirstName, &c.LastName, &c.Phone, &c.DateOfBirth, &ec, &addr,
		&c.Notes, &c.IsPrimary, &relationship, &c.AddedBy, &c.IsActive, &c.CancellationCount, &c.HasCancelledBefore,
		&status, &c.CatchUpApprovedBy, &c.CatchUpApprovedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(ec, &c.EmergencyContact); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(addr, &c.Address); err != nil {
		return nil, err
	}
	c.Relationship = domain.Relationship(relationship)
	c.CatchUpApprovalStatus = domain.CatchUpStatus(status)
	return &c, nil
}
