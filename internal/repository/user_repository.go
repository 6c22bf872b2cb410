package repository

import (
	"context"

	"planora-backend/internal/db"
	"planora-backend/internal/domain"
)

type UserRepository struct {
	DB *db.Postgres
}

const userColumns = `id, email, first_name, last_name, phone, role, client_status, business_id,
	current_business_id, is_active, password_hash, created_at, updated_at`

func (r UserRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := r.DB.Q(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

func (r UserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.DB.Q(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email)=lower($1)`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

func (r UserRepository) SetCurrentBusiness(ctx context.Context, userID int64, businessID *int64) error {
	tag, err := r.DB.Q(ctx).Exec(ctx, `UPDATE users SET current_business_id=$2, updated_at=now() WHERE id=$1`, userID, businessID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("user not found")
	}
	return nil
}

func (r UserRepository) SetClientStatus(ctx context.Context, userID int64, status domain.ClientStatus) error {
	tag, err := r.DB.Q(ctx).Exec(ctx, `UPDATE users SET client_status=$2, updated_at=now() WHERE id=$1`, userID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("user not found")
	}
	return nil
}

func (r UserRepository) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	_, err := r.DB.Q(ctx).Exec(ctx, `UPDATE users SET password_hash=$2, updated_at=now() WHERE id=$1`, userID, hash)
	return err
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		u            domain.User
		role, status string
	)
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&role,
		&status,
		&u.BusinessID,
		&u.CurrentBusinessID,
		&u.IsActive,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = domain.UserRole(role)
	u.ClientStatus = domain.ClientStatus(status)
	return &u, nil
}
