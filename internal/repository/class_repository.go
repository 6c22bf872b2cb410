package repository

import (
	"context"

	"planora-backend/internal/db"
	"planora-backend/internal/domain"
)

type ClassRepository struct {
	DB *db.Postgres
}

const classColumns = `id, business_id, title, description, class_type, max_capacity, instructor_id, is_active, created_at, updated_at`

func (r ClassRepository) GetClass(ctx context.Context, id int64) (*domain.Class, error) {
	row := r.DB.Q(ctx).QueryRow(ctx, `SELECT `+classColumns+` FROM classes WHERE id=$1`, id)
	c, err := scanClass(row)
	if err != nil {
		return nil, notFound(err, "class")
	}
	return c, nil
}

func (r ClassRepository) CreateClass(ctx context.Context, c *domain.Class) error {
	return r.DB.Q(ctx).QueryRow(ctx, `
		INSERT INTO classes (business_id, title, description, class_type, max_capacity, instructor_id, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now(), now())
		RETURNING id, created_at, updated_at
	`, c.BusinessID, c.Title, c.Description, c.ClassType, c.MaxCapacity, c.InstructorID, c.IsActive).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r ClassRepository) ListClasses(ctx context.Context, businessID int64) ([]domain.Class, error) {
	rows, err := r.DB.Q(ctx).Query(ctx, `
		SELECT `+classColumns+` FROM classes WHERE business_id=$1 AND is_active ORDER BY title ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

func scanClass(row scanner) (*domain.Class, error) {
	var (
		c         domain.Class
		classType string
	)
	if err := row.Scan(&c.ID, &c.BusinessID, &c.Title, &c.Description, &classType, &c.MaxCapacity, &c.InstructorID,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ClassType = domain.ClassType(classType)
	return &c, nil
}
