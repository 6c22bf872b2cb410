package repository

import (
	"context"

	"planora-backend/internal/db"
	"planora-backend/internal/domain"
)

type UserBusinessRepository struct {
	DB *db.Postgres
}

const associationColumns = `ub.id, ub.user_id, ub.business_id, ub.role, ub.is_active, ub.permissions, ub.joined_at, ub.updated_at`

func (r UserBusinessRepository) GetAssociation(ctx context.Context, userID, businessID int64) (*domain.UserBusiness, error) {
	row := r.DB.Q(ctx).QueryRow(ctx, `
		SELECT `+associationColumns+`
		FROM user_businesses ub
		WHERE ub.user_id=$1 AND ub.business_id=$2
	`, userID, businessID)
	ub, err := scanAssociation(row)
	if err != nil {
		return nil, notFound(err, "association")
	}
	return ub, nil
}

func (r UserBusinessRepository) CreateAssociation(ctx context.Context, ub *domain.UserBusiness) error {
	perms, err := marshalJSON(ub.Permissions)
	if err != nil {
		return err
	}
	err = r.DB.Q(ctx).QueryRow(ctx, `
		INSERT INTO user_businesses (user_id, business_id, role, is_active, permissions, joined_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, joined_at, updated_at
	`, ub.UserID, ub.BusinessID, ub.Role, ub.IsActive, perms).Scan(&ub.ID, &ub.JoinedAt, &ub.UpdatedAt)
	return conflictOr(err, "user is already associated with this business")
}

func (r UserBusinessRepository) UpdateAssociation(ctx context.Context, ub *domain.UserBusiness) error {
	perms, err := marshalJSON(ub.Permissions)
	if err != nil {
		return err
	}
	err = r.DB.Q(ctx).QueryRow(ctx, `
		UPDATE user_businesses SET role=$2, is_active=$3, permissions=$4, updated_at=now()
		WHERE id=$1
		RETURNING updated_at
	`, ub.ID, ub.Role, ub.IsActive, perms).Scan(&ub.UpdatedAt)
	return notFound(err, "association")
}

func (r UserBusinessRepository) DeleteAssociation(ctx context.Context, id int64) error {
	_, err := r.DB.Q(ctx).Exec(ctx, `DELETE FROM user_businesses WHERE id=$1`, id)
	return err
}

func (r UserBusinessRepository) ListUserAssociations(ctx context.Context, userID int64, activeOnly bool) ([]domain.UserBusiness, error) {
	rows, err := r.DB.Q(ctx).Query(ctx, `
		SELECT `+associationColumns+`,
			b.id, b.name, b.email, b.phone, b.business_type, b.status, b.status_notes, b.is_active, b.admin_user_id, b.created_at, b.updated_at
		FROM user_businesses ub
		JOIN businesses b ON b.id = ub.business_id
		WHERE ub.user_id=$1 AND (NOT $2 OR ub.is_active)
		ORDER BY ub.joined_at ASC, ub.id ASC
	`, userID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.UserBusiness
	for rows.Next() {
		var (
			ub     domain.UserBusiness
			b      domain.Business
			role   string
			status string
			perms  []byte
		)
		if err := rows.Scan(&ub.ID, &ub.UserID, &ub.BusinessID, &role, &ub.IsActive, &perms, &ub.JoinedAt, &ub.UpdatedAt,
			&b.ID, &b.Name, &b.Email, &b.Phone, &b.BusinessType, &status, &b.StatusNotes, &b.IsActive, &b.AdminUserID,
			&b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(perms, &ub.Permissions); err != nil {
			return nil, err
		}
		ub.Role = domain.BusinessRole(role)
		b.Status = domain.BusinessStatus(status)
		ub.Business = &b
		items = append(items, ub)
	}
	return items, rows.Err()
}

func (r UserBusinessRepository) ListBusinessAssociations(ctx context.Context, businessID int64, active *bool) ([]domain.UserBusiness, error) {
	rows, err := r.DB.Q(ctx).Query(ctx, `
		SELECT `+associationColumns+`
		FROM user_businesses ub
		WHERE ub.business_id=$1 AND ($2::boolean IS NULL OR ub.is_active = $2)
		ORDER BY ub.joined_at ASC, ub.id ASC
	`, businessID, active)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.UserBusiness
	for rows.Next() {
		ub, err := scanAssociation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *ub)
	}
	return items, rows.Err()
}

func scanAssociation(row scanner) (*domain.UserBusiness, error) {
	var (
		ub    domain.UserBusiness
		role  string
		perms []byte
	)
	if err := row.Scan(&ub.ID, &ub.UserID, &ub.BusinessID, &role, &ub.IsActive, &perms, &ub.JoinedAt, &ub.UpdatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(perms, &ub.Permissions); err != nil {
		return nil, err
	}
	ub.Role = domain.BusinessRole(role)
	return &ub, nil
}
