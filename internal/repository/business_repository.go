package repository

import (
	"context"

	"planora-backend/internal/db"
	"planora-backend/internal/domain"
)

type BusinessRepository struct {
	DB *db.Postgres
}

const businessColumns = `id, name, email, phone, business_type, status, status_notes, is_active, admin_user_id, created_at, updated_at`

func (r BusinessRepository) GetBusiness(ctx context.Context, id int64) (*domain.Business, error) {
	row := r.DB.Q(ctx).QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id=$1`, id)
	b, err := scanBusiness(row)
	if err != nil {
		return nil, notFound(err, "business")
	}
	return b, nil
}

func (r BusinessRepository) ListBusinesses(ctx context.Context, status *domain.BusinessStatus) ([]domain.Business, error) {
	rows, err := r.DB.Q(ctx).Query(ctx, `
		SELECT `+businessColumns+`
		FROM businesses
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC, id DESC
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *b)
	}
	return items, rows.Err()
}

func (r BusinessRepository) UpdateBusinessStatus(ctx context.Context, b *domain.Business) error {
	err := r.DB.Q(ctx).QueryRow(ctx, `
		UPDATE businesses SET status=$2, status_notes=$3, is_active=$4, updated_at=now()
		WHERE id=$1
		RETURNING updated_at
	`, b.ID, b.Status, b.StatusNotes, b.IsActive).Scan(&b.UpdatedAt)
	return notFound(err, "business")
}

// DeleteBusiness removes the business; foreign keys cascade to its associations,
// clients, employees, classes, sessions and notifications.
func (r BusinessRepository) DeleteBusiness(ctx context.Context, id int64) error {
	tag, err := r.DB.Q(ctx).Exec(ctx, `DELETE FROM businesses WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("business not found")
	}
	return nil
}

func scanBusiness(row scanner) (*domain.Business, error) {
	var (
		b      domain.Business
		status string
	)
	if err := row.Scan(&b.ID, &b.Name, &b.Email, &b.Phone, &b.BusinessType, &status, &b.StatusNotes,
		&b.IsActive, &b.AdminUserID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Status = domain.BusinessStatus(status)
	return &b, nil
}
